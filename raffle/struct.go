package raffle

import (
	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/state"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/network"
)

func init() {
	network.RegisterMessages(&InitRaffleRequest{}, &InitRaffleReply{},
		&DepositRequest{}, &DepositReply{}, &EnterRequest{}, &EnterReply{},
		&CheckUpkeepRequest{}, &CheckUpkeepReply{}, &PerformUpkeepRequest{},
		&PerformUpkeepReply{}, &RetryPayoutRequest{}, &RetryPayoutReply{},
		&GetStateRequest{}, &GetStateReply{}, &GetEventsRequest{},
		&GetEventsReply{})
}

// InitRaffleRequest starts the raffle of a node. When DBPath names a store
// that already holds a raffle, that raffle is resumed and the round
// parameters are ignored.
type InitRaffleRequest struct {
	EntranceFee uint64
	// Interval in nanoseconds.
	Interval int64
	NumWords uint32
	Vault    string
	// Oracle runs the easyrand service; OraclePublic is its BLS key.
	Oracle       *network.ServerIdentity
	OraclePublic []byte
	// Operator is allowed to retry halted payouts.
	Operator kyber.Point
	DBPath   string
}

// InitRaffleReply ...
type InitRaffleReply struct {
	Epoch    uint64
	Restored bool
}

// DepositRequest credits an account.
type DepositRequest struct {
	Address string
	Amount  uint64
}

// DepositReply ...
type DepositReply struct {
	Balance uint64
}

// EnterRequest is signed by the payer over sys.EntryMessage for the current
// epoch and number of players.
type EnterRequest struct {
	Public    kyber.Point
	Amount    uint64
	Signature []byte
}

// EnterReply ...
type EnterReply struct {
	Epoch   uint64
	Players int
}

// CheckUpkeepRequest ...
type CheckUpkeepRequest struct {
	CheckData []byte
}

// CheckUpkeepReply carries the decision and its four conditions.
type CheckUpkeepReply struct {
	Needed      bool
	PerformData []byte
	TimePassed  bool
	IsOpen      bool
	HasBalance  bool
	HasPlayers  bool
}

// PerformUpkeepRequest ...
type PerformUpkeepRequest struct {
	PerformData []byte
}

// PerformUpkeepReply ...
type PerformUpkeepReply struct {
	RequestID uint64
}

// RetryPayoutRequest is signed by the operator over sys.OperatorMessage.
type RetryPayoutRequest struct {
	Signature []byte
}

// RetryPayoutReply ...
type RetryPayoutReply struct {
	Winner string
}

// GetStateRequest ...
type GetStateRequest struct{}

// GetStateReply returns the raffle snapshot and the vault balance.
type GetStateReply struct {
	Snapshot     lottery.Snapshot
	VaultBalance uint64
}

// GetEventsRequest asks for the events above Since.
type GetEventsRequest struct {
	Since uint64
}

// GetEventsReply ...
type GetEventsReply struct {
	Events []state.EventRecord
}
