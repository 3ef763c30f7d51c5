package lottery

import (
	"math"
)

// entryLedger tracks the participants and the pot of the active round. Only
// the Machine holds one, and only Machine.Enter and the payout reset touch it.
type entryLedger struct {
	round *Round
}

// check validates an entry without mutating anything.
func (l *entryLedger) check(amount Amount) error {
	if l.round.State != Open {
		return ErrRoundNotOpen
	}
	if amount < l.round.EntranceFee {
		return ErrInsufficientFee
	}
	if uint64(l.round.Pot) > math.MaxUint64-uint64(amount) {
		return ErrAmountOverflow
	}
	return nil
}

// record appends the payer and credits the pot. check must have succeeded.
func (l *entryLedger) record(payer Address, amount Amount) {
	l.round.Participants = append(l.round.Participants, payer)
	l.round.Pot += amount
}

// clear empties the ledger at payout time.
func (l *entryLedger) clear() {
	l.round.Participants = nil
	l.round.Pot = 0
}

func (l *entryLedger) count() int {
	return len(l.round.Participants)
}

func (l *entryLedger) at(i int) (Address, error) {
	if i < 0 || i >= len(l.round.Participants) {
		return "", ErrIndexOutOfRange
	}
	return l.round.Participants[i], nil
}
