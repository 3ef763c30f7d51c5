package raffle

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/easyrand/base"
	"github.com/dedis/raffle/state"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

const testFee = lottery.Amount(10)

type env struct {
	dir      string
	oracle   *easyrand.Oracle
	accounts *state.Accounts
	store    *state.Store
	r        *Raffle
}

func newEnv(t *testing.T) *env {
	dir, err := ioutil.TempDir("", "raffle")
	require.NoError(t, err)
	e := &env{dir: dir, oracle: easyrand.NewOracle(), accounts: state.NewAccounts()}
	e.store, err = state.Open(filepath.Join(dir, "raffle.db"))
	require.NoError(t, err)
	for _, p := range []lottery.Address{"alice", "bob"} {
		require.NoError(t, e.accounts.Credit(p, 10*testFee))
	}
	e.r, err = New(lottery.Config{EntranceFee: testFee, Vault: "vault"},
		OracleCoordinator{Oracle: e.oracle}, e.oracle.Public(), e.accounts, e.store)
	require.NoError(t, err)
	return e
}

func (e *env) close() {
	e.r.Close()
	os.RemoveAll(e.dir)
}

func (e *env) draw(t *testing.T, players ...lottery.Address) lottery.RequestID {
	for _, p := range players {
		require.NoError(t, e.r.Enter(p, testFee))
	}
	needed, data, err := e.r.CheckUpkeep()
	require.NoError(t, err)
	require.True(t, needed)
	id, err := e.r.PerformUpkeepID(data)
	require.NoError(t, err)
	return id
}

func TestRaffle_EndToEnd(t *testing.T) {
	e := newEnv(t)
	defer e.close()

	id := e.draw(t, "alice", "bob")
	require.Equal(t, lottery.RequestID(1), id)
	require.Equal(t, lottery.Calculating, e.r.Machine().State())
	require.Equal(t, 2*testFee, e.accounts.Balance("vault"))

	out, err := e.oracle.Fulfill(uint64(id))
	require.NoError(t, err)
	winner, err := e.r.OnFulfillment(out)
	require.NoError(t, err)
	require.Contains(t, []lottery.Address{"alice", "bob"}, winner)
	require.Equal(t, 11*testFee, e.accounts.Balance(winner))
	require.Equal(t, lottery.Amount(0), e.accounts.Balance("vault"))
	require.Equal(t, uint64(2), e.r.Machine().Epoch())
	require.Equal(t, lottery.Open, e.r.Machine().State())

	events, err := e.r.Events(0)
	require.NoError(t, err)
	var types []lottery.EventType
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	require.Equal(t, []lottery.EventType{lottery.EntryRecorded, lottery.EntryRecorded,
		lottery.DrawRequested, lottery.WinnerPicked}, types)
	require.Equal(t, winner, events[3].Winner)

	_, err = e.r.OnFulfillment(out)
	require.True(t, xerrors.Is(err, lottery.ErrUnknownRequest))
}

func TestRaffle_UnauthorizedOracle(t *testing.T) {
	e := newEnv(t)
	defer e.close()
	id := e.draw(t, "alice")

	impostor := easyrand.NewOracle()
	fid, err := impostor.Request([]byte("seed"), 1)
	require.NoError(t, err)
	require.Equal(t, uint64(id), fid)
	fake, err := impostor.Fulfill(fid)
	require.NoError(t, err)
	_, err = e.r.OnFulfillment(fake)
	require.True(t, xerrors.Is(err, ErrUnauthorizedOracle))
	require.Equal(t, lottery.Calculating, e.r.Machine().State())

	out, err := e.oracle.Fulfill(uint64(id))
	require.NoError(t, err)
	tampered := *out
	tampered.Words = [][]byte{make([]byte, 32)}
	_, err = e.r.OnFulfillment(&tampered)
	require.True(t, xerrors.Is(err, ErrUnauthorizedOracle))

	winner, err := e.r.OnFulfillment(out)
	require.NoError(t, err)
	require.Equal(t, lottery.Address("alice"), winner)
}

func TestRaffle_Restore(t *testing.T) {
	e := newEnv(t)
	defer os.RemoveAll(e.dir)
	id := e.draw(t, "alice")
	require.NoError(t, e.r.Close())

	store, err := state.Open(filepath.Join(e.dir, "raffle.db"))
	require.NoError(t, err)
	r, err := Restore(store, OracleCoordinator{Oracle: e.oracle}, e.oracle.Public(), nil)
	require.NoError(t, err)
	defer r.Close()

	m := r.Machine()
	require.Equal(t, lottery.Calculating, m.State())
	p, ok := m.Pending()
	require.True(t, ok)
	require.Equal(t, id, p.RequestID)
	require.Equal(t, 9*testFee, r.Accounts().Balance("alice"))
	require.Equal(t, testFee, r.Accounts().Balance("vault"))

	out, err := e.oracle.Fulfill(uint64(id))
	require.NoError(t, err)
	_, err = r.OnFulfillment(out)
	require.NoError(t, err)
	require.Equal(t, 10*testFee, r.Accounts().Balance("alice"))

	events, err := r.Events(0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, uint64(3), events[2].Seq)
	require.Equal(t, lottery.WinnerPicked, events[2].Type)
}

func TestRaffle_RestoreEmpty(t *testing.T) {
	dir, err := ioutil.TempDir("", "raffle")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	store, err := state.Open(filepath.Join(dir, "raffle.db"))
	require.NoError(t, err)
	defer store.Close()

	o := easyrand.NewOracle()
	_, err = Restore(store, OracleCoordinator{Oracle: o}, o.Public(), nil)
	require.True(t, xerrors.Is(err, state.ErrNotFound))
}

func TestRaffle_HaltedPayout(t *testing.T) {
	e := newEnv(t)
	defer e.close()
	id := e.draw(t, "alice")

	e.accounts.Reject("alice", true)
	out, err := e.oracle.Fulfill(uint64(id))
	require.NoError(t, err)
	winner, err := e.r.OnFulfillment(out)
	require.True(t, xerrors.Is(err, lottery.ErrTransferFailed))
	require.Equal(t, lottery.Address("alice"), winner)
	require.Equal(t, lottery.Calculating, e.r.Machine().State())

	snap, err := e.store.LoadSnapshot()
	require.NoError(t, err)
	require.True(t, snap.HasHalted)

	_, err = e.r.RetryPayout()
	require.True(t, xerrors.Is(err, lottery.ErrTransferFailed))

	e.accounts.Reject("alice", false)
	winner, err = e.r.RetryPayout()
	require.NoError(t, err)
	require.Equal(t, lottery.Address("alice"), winner)
	require.Equal(t, lottery.Open, e.r.Machine().State())

	_, err = e.r.RetryPayout()
	require.True(t, xerrors.Is(err, lottery.ErrNotHalted))

	events, err := e.r.Events(0)
	require.NoError(t, err)
	failed := 0
	for _, ev := range events {
		if ev.Type == lottery.PayoutFailed {
			failed++
		}
	}
	require.Equal(t, 2, failed)
	require.Equal(t, lottery.WinnerPicked, events[len(events)-1].Type)
}

func TestRaffle_Deposit(t *testing.T) {
	e := newEnv(t)
	defer e.close()
	require.NoError(t, e.r.Deposit("carol", 5))

	a, err := e.store.LoadAccounts()
	require.NoError(t, err)
	require.Equal(t, lottery.Amount(5), a.Balance("carol"))
}

func TestRaffle_NoStore(t *testing.T) {
	o := easyrand.NewOracle()
	r, err := New(lottery.Config{EntranceFee: testFee, Vault: "vault"},
		OracleCoordinator{Oracle: o}, o.Public(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, r.Deposit("alice", testFee))
	require.NoError(t, r.Enter("alice", testFee))
	events, err := r.Events(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, r.Close())

	_, err = New(lottery.Config{Vault: "vault"}, OracleCoordinator{Oracle: o}, nil, nil, nil)
	require.Error(t, err)
}

func TestRaffle_DeliveryRetried(t *testing.T) {
	e := newEnv(t)
	defer e.close()
	id := e.draw(t, "alice", "bob")

	down := easyrand.ConsumerFunc(func(out *base.RandomnessOutput) error {
		return xerrors.New("raffle node unreachable")
	})
	require.Equal(t, 0, e.oracle.Deliver(down))
	require.Equal(t, []uint64{uint64(id)}, e.oracle.Pending())
	require.Equal(t, lottery.Calculating, e.r.Machine().State())

	require.Equal(t, 1, e.oracle.Deliver(e.r))
	require.Empty(t, e.oracle.Pending())
	require.Equal(t, lottery.Open, e.r.Machine().State())
	win, ok := e.r.Machine().RecentWinner()
	require.True(t, ok)
	require.Equal(t, 2*testFee, win.Amount)

	// a replayed output is refused for good
	stale, err := e.oracle.Request([]byte("x"), 1)
	require.NoError(t, err)
	fake, err := e.oracle.Fulfill(stale)
	require.NoError(t, err)
	err = e.r.FulfillRandomness(fake)
	require.True(t, xerrors.Is(err, easyrand.ErrRejected))
	require.Equal(t, 1, e.oracle.Deliver(e.r))
	require.Empty(t, e.oracle.Pending())
}
