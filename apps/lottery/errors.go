package lottery

import (
	"fmt"

	"golang.org/x/xerrors"
)

var (
	// ErrInsufficientFee is returned when an entry pays less than the fee.
	ErrInsufficientFee = xerrors.New("raffle: not enough funds sent to enter")
	// ErrRoundNotOpen is returned when entering a round that is drawing.
	ErrRoundNotOpen = xerrors.New("raffle: round is not open")
	// ErrUpkeepNotNeeded is matched by every *UpkeepNotNeededError.
	ErrUpkeepNotNeeded = xerrors.New("raffle: upkeep not needed")
	// ErrUnknownRequest is returned for fulfillments that do not match the
	// outstanding request of the current epoch.
	ErrUnknownRequest = xerrors.New("raffle: unknown randomness request")
	// ErrTransferFailed is returned when paying the winner fails.
	ErrTransferFailed = xerrors.New("raffle: transfer to winner failed")
	// ErrNoRandomWords is returned for fulfillments without random words.
	ErrNoRandomWords = xerrors.New("raffle: fulfillment carries no random words")
	// ErrNoParticipants is returned when selecting among nobody.
	ErrNoParticipants = xerrors.New("raffle: no participants")
	// ErrIndexOutOfRange is returned by participant lookups.
	ErrIndexOutOfRange = xerrors.New("raffle: participant index out of range")
	// ErrAmountOverflow is returned when the pot would overflow.
	ErrAmountOverflow = xerrors.New("raffle: amount overflows the pot")
	// ErrNotHalted is returned by RetryPayout when no payout is halted.
	ErrNotHalted = xerrors.New("raffle: no halted payout")
	// ErrInvalidConfig is returned for unusable configurations.
	ErrInvalidConfig = xerrors.New("raffle: invalid configuration")
)

// UpkeepNotNeededError reports why a draw cannot start.
type UpkeepNotNeededError struct {
	Status       UpkeepStatus
	Pot          Amount
	Participants int
	State        State
}

func (e *UpkeepNotNeededError) Error() string {
	return fmt.Sprintf("%v (timePassed=%t isOpen=%t hasBalance=%t hasPlayers=%t pot=%d players=%d state=%s)",
		ErrUpkeepNotNeeded, e.Status.TimePassed, e.Status.IsOpen, e.Status.HasBalance,
		e.Status.HasPlayers, e.Pot, e.Participants, e.State)
}

// Is makes xerrors.Is(err, ErrUpkeepNotNeeded) hold.
func (e *UpkeepNotNeededError) Is(target error) bool {
	return target == ErrUpkeepNotNeeded
}

// TransferError is returned when the pot could not be paid to the winner.
type TransferError struct {
	Winner Address
	Amount Amount
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%v: paying %d to %s: %v", ErrTransferFailed, e.Amount, e.Winner, e.Err)
}

// Is makes xerrors.Is(err, ErrTransferFailed) hold.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransferFailed
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
