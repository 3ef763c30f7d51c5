package lottery

import "time"

// Ether is the number of base units in one ether.
const Ether Amount = 1000000000000000000

// Address identifies a participant or an account holding funds.
type Address string

// Amount is a quantity of funds in base units.
type Amount uint64

// RequestID is the identifier the randomness oracle hands out for a request.
// Zero is never a valid identifier.
type RequestID uint64

// State of the active round.
type State int

const (
	// Open accepts entries.
	Open State = iota
	// Calculating waits for, or failed to pay out, a randomness fulfillment.
	Calculating
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Calculating:
		return "CALCULATING"
	default:
		return "UNKNOWN"
	}
}

// Round is the single active raffle round.
type Round struct {
	State        State
	Participants []Address
	EntranceFee  Amount
	Pot          Amount
	LastDraw     time.Time
	Interval     time.Duration
	Epoch        uint64
}

// PendingRequest binds an outstanding randomness request to the epoch of the
// round that issued it.
type PendingRequest struct {
	RequestID RequestID
	Epoch     uint64
}

// WinnerRecord describes the most recent completed payout.
type WinnerRecord struct {
	Address   Address
	Amount    Amount
	Epoch     uint64
	RequestID RequestID
	Time      time.Time
}

// HaltedPayout holds the outcome of a draw whose transfer failed. The winner
// is fixed once selected and only RetryPayout can release the pot.
type HaltedPayout struct {
	Winner    Address
	Amount    Amount
	Epoch     uint64
	RequestID RequestID
}

// UpkeepStatus carries the four conditions that must all hold before a draw
// can start.
type UpkeepStatus struct {
	TimePassed bool
	IsOpen     bool
	HasBalance bool
	HasPlayers bool
}

// Needed reports whether every condition holds.
func (u UpkeepStatus) Needed() bool {
	return u.TimePassed && u.IsOpen && u.HasBalance && u.HasPlayers
}

// Coordinator is the request side of the randomness oracle. It returns the
// request identifier synchronously and delivers the random words later
// through Machine.FulfillRandomness.
type Coordinator interface {
	RequestRandomness(seed []byte, numWords uint32) (RequestID, error)
}

// Bank moves funds between accounts.
type Bank interface {
	Transfer(from, to Address, amount Amount) error
}

// Config holds the immutable parameters of a raffle.
type Config struct {
	EntranceFee Amount
	Interval    time.Duration
	NumWords    uint32
	// Vault is the account holding the pot.
	Vault Address
	// Now defaults to time.Now.
	Now func() time.Time
}

// cloneParticipants returns a copy that does not alias the round.
func cloneParticipants(in []Address) []Address {
	out := make([]Address, len(in))
	copy(out, in)
	return out
}
