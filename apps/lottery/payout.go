package lottery

import (
	"math/big"
)

// SelectWinner picks participants[words[0] mod len(participants)]. The
// modulo bias is accepted: the words come from a verifiable source that no
// participant can predict.
func SelectWinner(participants []Address, words []*big.Int) (Address, int, error) {
	if len(participants) == 0 {
		return "", 0, ErrNoParticipants
	}
	if len(words) == 0 || words[0] == nil {
		return "", 0, ErrNoRandomWords
	}
	n := big.NewInt(int64(len(participants)))
	idx := new(big.Int).Mod(words[0], n)
	i := int(idx.Int64())
	return participants[i], i, nil
}

// PayoutEngine executes the transfer of the pot.
type PayoutEngine struct {
	bank  Bank
	vault Address
}

// NewPayoutEngine pays winners from vault through bank.
func NewPayoutEngine(bank Bank, vault Address) *PayoutEngine {
	return &PayoutEngine{bank: bank, vault: vault}
}

// Payout transfers amount to winner. Failures are returned as a
// *TransferError and are never retried here.
func (p *PayoutEngine) Payout(winner Address, amount Amount) error {
	if err := p.bank.Transfer(p.vault, winner, amount); err != nil {
		return &TransferError{Winner: winner, Amount: amount, Err: err}
	}
	return nil
}
