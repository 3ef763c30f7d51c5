package lottery

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

const testVault = Address("vault")

var testFee = Ether / 100

var testInterval = 30 * time.Second

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeOracle struct {
	next  RequestID
	seeds [][]byte
	fail  error
}

func (o *fakeOracle) RequestRandomness(seed []byte, numWords uint32) (RequestID, error) {
	if o.fail != nil {
		return 0, o.fail
	}
	o.next++
	o.seeds = append(o.seeds, seed)
	return o.next, nil
}

type fakeBank struct {
	balances map[Address]Amount
	reject   map[Address]bool
}

func newFakeBank() *fakeBank {
	return &fakeBank{
		balances: make(map[Address]Amount),
		reject:   make(map[Address]bool),
	}
}

func (b *fakeBank) Transfer(from, to Address, amount Amount) error {
	if b.reject[to] {
		return xerrors.Errorf("account %s rejects transfers", to)
	}
	if b.balances[from] < amount {
		return xerrors.Errorf("account %s has insufficient funds", from)
	}
	b.balances[from] -= amount
	b.balances[to] += amount
	return nil
}

type fixture struct {
	m      *Machine
	clock  *fakeClock
	oracle *fakeOracle
	bank   *fakeBank
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		clock:  &fakeClock{now: time.Unix(1600000000, 0)},
		oracle: &fakeOracle{},
		bank:   newFakeBank(),
	}
	m, err := NewMachine(Config{
		EntranceFee: testFee,
		Interval:    testInterval,
		Vault:       testVault,
		Now:         f.clock.Now,
	}, f.oracle, f.bank)
	require.NoError(t, err)
	f.m = m
	return f
}

// player funds a participant with ten entrance fees.
func (f *fixture) player(name string) Address {
	a := Address(name)
	f.bank.balances[a] += 10 * testFee
	return a
}

func (f *fixture) enter(t *testing.T, names ...string) {
	for _, n := range names {
		require.NoError(t, f.m.Enter(f.player(n), testFee))
	}
}

func (f *fixture) draw(t *testing.T) RequestID {
	f.clock.Advance(testInterval + time.Second)
	id, err := f.m.PerformUpkeep(nil)
	require.NoError(t, err)
	return id
}

func words(ws ...uint64) []*big.Int {
	out := make([]*big.Int, len(ws))
	for i, w := range ws {
		out[i] = new(big.Int).SetUint64(w)
	}
	return out
}
