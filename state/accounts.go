package state

import (
	"sort"
	"sync"

	"github.com/dedis/raffle/apps/lottery"
	"golang.org/x/xerrors"
)

var (
	// ErrInsufficientFunds is returned when the payer cannot cover a
	// transfer.
	ErrInsufficientFunds = xerrors.New("state: insufficient funds")
	// ErrRejected is returned when the recipient refuses transfers.
	ErrRejected = xerrors.New("state: recipient rejects transfers")
)

// Accounts is an in-memory fund ledger. It moves value between addresses
// for the raffle.
type Accounts struct {
	mu       sync.Mutex
	balances map[lottery.Address]lottery.Amount
	rejects  map[lottery.Address]bool
}

// NewAccounts returns an empty ledger.
func NewAccounts() *Accounts {
	return &Accounts{
		balances: make(map[lottery.Address]lottery.Amount),
		rejects:  make(map[lottery.Address]bool),
	}
}

// Credit adds funds to addr.
func (a *Accounts) Credit(addr lottery.Address, amount lottery.Amount) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.balances[addr]
	if cur+amount < cur {
		return lottery.ErrAmountOverflow
	}
	a.balances[addr] = cur + amount
	return nil
}

// Balance returns the funds held by addr.
func (a *Accounts) Balance(addr lottery.Address) lottery.Amount {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balances[addr]
}

// Reject makes every transfer to addr fail while on is true.
func (a *Accounts) Reject(addr lottery.Address, on bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if on {
		a.rejects[addr] = true
	} else {
		delete(a.rejects, addr)
	}
}

// Transfer moves amount from one address to another. Either the whole
// amount moves or nothing does.
func (a *Accounts) Transfer(from, to lottery.Address, amount lottery.Amount) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rejects[to] {
		return ErrRejected
	}
	if a.balances[from] < amount {
		return xerrors.Errorf("%s holds %d, needs %d: %w", from,
			a.balances[from], amount, ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}
	if a.balances[to]+amount < a.balances[to] {
		return lottery.ErrAmountOverflow
	}
	a.balances[from] -= amount
	a.balances[to] += amount
	return nil
}

// Balances lists the non-empty accounts sorted by address.
func (a *Accounts) Balances() []Balance {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Balance, 0, len(a.balances))
	for addr, amount := range a.balances {
		if amount == 0 {
			continue
		}
		out = append(out, Balance{Address: string(addr), Amount: uint64(amount)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}
