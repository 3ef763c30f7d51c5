// Package raffle ties the lottery state machine to the easyrand oracle, the
// fund ledger and the bbolt store, and exposes it as an onet service.
package raffle

import (
	"sync"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/easyrand/base"
	"github.com/dedis/raffle/state"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// ErrUnauthorizedOracle is returned for fulfillments that do not verify
// against the oracle key.
var ErrUnauthorizedOracle = xerrors.New("raffle: fulfillment not signed by the oracle")

// OracleCoordinator requests randomness from an in-process oracle.
type OracleCoordinator struct {
	Oracle *easyrand.Oracle
}

// RequestRandomness implements lottery.Coordinator.
func (c OracleCoordinator) RequestRandomness(seed []byte, numWords uint32) (lottery.RequestID, error) {
	id, err := c.Oracle.Request(seed, numWords)
	return lottery.RequestID(id), err
}

// Raffle is the machine plus its collaborators. It authenticates oracle
// callbacks and writes every transition to the store when one is set.
type Raffle struct {
	mu       sync.Mutex
	machine  *lottery.Machine
	oracle   kyber.Point
	accounts *state.Accounts
	store    *state.Store
	saved    uint64
}

// New starts a fresh raffle. store may be nil.
func New(cfg lottery.Config, coord lottery.Coordinator, oracle kyber.Point,
	accounts *state.Accounts, store *state.Store) (*Raffle, error) {
	if oracle == nil {
		return nil, xerrors.New("raffle: missing oracle key")
	}
	if accounts == nil {
		accounts = state.NewAccounts()
	}
	m, err := lottery.NewMachine(cfg, coord, accounts)
	if err != nil {
		return nil, err
	}
	r := &Raffle{machine: m, oracle: oracle, accounts: accounts, store: store}
	if err := r.persist(); err != nil {
		return nil, err
	}
	return r, nil
}

// Restore resumes the raffle saved in store. It returns state.ErrNotFound
// when the store is empty.
func Restore(store *state.Store, coord lottery.Coordinator, oracle kyber.Point,
	now func() time.Time) (*Raffle, error) {
	if oracle == nil {
		return nil, xerrors.New("raffle: missing oracle key")
	}
	snap, err := store.LoadSnapshot()
	if err != nil {
		return nil, err
	}
	accounts, err := store.LoadAccounts()
	if err != nil {
		return nil, err
	}
	m, err := lottery.Restore(snap, coord, accounts, now)
	if err != nil {
		return nil, err
	}
	log.Lvl2("raffle: restored epoch", snap.Epoch, "with", len(snap.Participants), "players")
	return &Raffle{
		machine:  m,
		oracle:   oracle,
		accounts: accounts,
		store:    store,
		saved:    snap.LastSeq,
	}, nil
}

// Machine gives read access to the state machine.
func (r *Raffle) Machine() *lottery.Machine {
	return r.machine
}

// Accounts returns the fund ledger.
func (r *Raffle) Accounts() *state.Accounts {
	return r.accounts
}

// Deposit credits addr and persists the balances.
func (r *Raffle) Deposit(addr lottery.Address, amount lottery.Amount) error {
	if err := r.accounts.Credit(addr, amount); err != nil {
		return err
	}
	return r.persist()
}

// Enter adds payer to the current round.
func (r *Raffle) Enter(payer lottery.Address, amount lottery.Amount) error {
	if err := r.machine.Enter(payer, amount); err != nil {
		return err
	}
	return r.persist()
}

// CheckUpkeep implements keeper.Upkeeper.
func (r *Raffle) CheckUpkeep() (bool, []byte, error) {
	needed, data := r.machine.CheckUpkeep(nil)
	return needed, data, nil
}

// PerformUpkeep implements keeper.Upkeeper.
func (r *Raffle) PerformUpkeep(performData []byte) error {
	_, err := r.PerformUpkeepID(performData)
	return err
}

// PerformUpkeepID is PerformUpkeep returning the request id.
func (r *Raffle) PerformUpkeepID(performData []byte) (lottery.RequestID, error) {
	id, err := r.machine.PerformUpkeep(performData)
	if err != nil {
		return 0, err
	}
	return id, r.persist()
}

// OnFulfillment authenticates an oracle output and completes the draw.
func (r *Raffle) OnFulfillment(out *base.RandomnessOutput) (lottery.Address, error) {
	if err := easyrand.Verify(r.oracle, out); err != nil {
		log.Warn("raffle: rejected randomness:", err)
		return "", xerrors.Errorf("%v: %w", err, ErrUnauthorizedOracle)
	}
	winner, err := r.machine.FulfillRandomness(lottery.RequestID(out.RequestID), out.BigWords())
	if err != nil && !xerrors.Is(err, lottery.ErrTransferFailed) {
		return "", err
	}
	if perr := r.persist(); perr != nil && err == nil {
		err = perr
	}
	return winner, err
}

// FulfillRandomness implements easyrand.Consumer. Outputs the machine has
// already consumed, or whose payout halted, are rejected for good so the
// oracle stops delivering them. Anything else may be delivered again.
func (r *Raffle) FulfillRandomness(out *base.RandomnessOutput) error {
	_, err := r.OnFulfillment(out)
	if xerrors.Is(err, lottery.ErrUnknownRequest) || xerrors.Is(err, lottery.ErrTransferFailed) {
		return xerrors.Errorf("%v: %w", err, easyrand.ErrRejected)
	}
	return err
}

// RetryPayout re-attempts a halted transfer.
func (r *Raffle) RetryPayout() (lottery.Address, error) {
	winner, err := r.machine.RetryPayout()
	if xerrors.Is(err, lottery.ErrNotHalted) {
		return "", err
	}
	if perr := r.persist(); perr != nil && err == nil {
		err = perr
	}
	return winner, err
}

// Events returns the events above since, from the store when there is one.
func (r *Raffle) Events(since uint64) ([]lottery.Event, error) {
	if r.store == nil {
		return r.machine.Events(since), nil
	}
	return r.store.Events(since)
}

// Close closes the store.
func (r *Raffle) Close() error {
	if r.store == nil {
		return nil
	}
	return r.store.Close()
}

// persist writes the snapshot, the events not yet stored and the balances.
// The in-memory transition has already happened when it fails.
func (r *Raffle) persist() error {
	if r.store == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.machine.Events(r.saved)
	if err := r.store.AppendEvents(events); err != nil {
		log.Error("raffle: storing events:", err)
		return xerrors.Errorf("storing events: %v", err)
	}
	if len(events) > 0 {
		r.saved = events[len(events)-1].Seq
	}
	if err := r.store.SaveSnapshot(r.machine.Snapshot()); err != nil {
		log.Error("raffle: storing snapshot:", err)
		return xerrors.Errorf("storing snapshot: %v", err)
	}
	if err := r.store.SaveAccounts(r.accounts); err != nil {
		log.Error("raffle: storing balances:", err)
		return xerrors.Errorf("storing balances: %v", err)
	}
	return nil
}
