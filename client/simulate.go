package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"github.com/dedis/raffle/easyrand"
	"github.com/dedis/raffle/keeper"
	"github.com/dedis/raffle/raffle"
	"github.com/dedis/raffle/state"
	"github.com/dedis/raffle/sys"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// clock is a manual clock, so rounds do not wait for the real interval.
type clock struct {
	sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.now
}

func (c *clock) advance(d time.Duration) {
	c.Lock()
	c.now = c.now.Add(d)
	c.Unlock()
}

func openOracle(cfg *sys.Config) (*easyrand.Oracle, error) {
	if cfg.OracleKey == "" {
		return easyrand.NewOracle(), nil
	}
	return easyrand.NewOracleFromKey(cfg.OracleKey)
}

// open resumes the raffle stored at cfg.DBPath or starts a new one and
// funds the configured players.
func open(cfg *sys.Config, oracle *easyrand.Oracle, now func() time.Time) (*raffle.Raffle, error) {
	store, err := state.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	coord := raffle.OracleCoordinator{Oracle: oracle}
	r, err := raffle.Restore(store, coord, oracle.Public(), now)
	switch {
	case err == nil:
		log.Lvl1("resuming epoch", r.Machine().Epoch())
		if p, ok := r.Machine().Pending(); ok {
			r.Close()
			return nil, xerrors.Errorf("raffle waits for request %d of a previous run", p.RequestID)
		}
		return r, nil
	case xerrors.Is(err, state.ErrNotFound):
	default:
		store.Close()
		return nil, err
	}
	lc := cfg.LotteryConfig()
	lc.Now = now
	r, err = raffle.New(lc, coord, oracle.Public(), nil, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	for _, p := range cfg.Players {
		if err := r.Deposit(lottery.Address(p.Name), lottery.Amount(p.Balance)); err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

func enterAll(r *raffle.Raffle, cfg *sys.Config) {
	m := r.Machine()
	for _, p := range cfg.Players {
		for i := 0; i < p.Entries; i++ {
			if err := r.Enter(lottery.Address(p.Name), m.EntranceFee()); err != nil {
				log.Warn("entry of", p.Name, "refused:", err)
			}
		}
	}
}

func report(w io.Writer, m *lottery.Machine, epoch uint64) error {
	if h, ok := m.Halted(); ok {
		fmt.Fprintf(w, "epoch %d: payout of %d to %s halted\n", epoch, h.Amount, h.Winner)
		return xerrors.Errorf("payout of epoch %d halted", epoch)
	}
	win, ok := m.RecentWinner()
	if !ok || win.Epoch != epoch {
		return xerrors.Errorf("epoch %d was not drawn", epoch)
	}
	fmt.Fprintf(w, "epoch %d: %s wins %d\n", epoch, win.Address, win.Amount)
	return nil
}

// simulate plays cfg.Rounds rounds on a manual clock, ticking the keeper and
// flushing the oracle by hand, and writes a line per round to w.
func simulate(cfg *sys.Config, w io.Writer) error {
	oracle, err := openOracle(cfg)
	if err != nil {
		return err
	}
	clk := &clock{now: time.Now()}
	r, err := open(cfg, oracle, clk.Now)
	if err != nil {
		return err
	}
	defer r.Close()
	m := r.Machine()
	if last := m.LastTimestamp(); last.After(clk.Now()) {
		clk.now = last
	}

	k := keeper.New(r, cfg.KeeperPeriod.Duration)
	for round := 0; round < cfg.Rounds; round++ {
		epoch := m.Epoch()
		enterAll(r, cfg)
		clk.advance(m.Interval())
		res, err := k.Tick()
		if err != nil {
			return err
		}
		if res != keeper.Performed {
			fmt.Fprintf(w, "epoch %d: no draw, %d players\n", epoch, m.NumberOfPlayers())
			continue
		}
		oracle.Deliver(r)
		if err := report(w, m, epoch); err != nil {
			return err
		}
	}
	return nil
}

// play runs the keeper and the oracle in the background on the real clock
// and waits for every round to be drawn.
func play(ctx context.Context, cfg *sys.Config, w io.Writer) error {
	oracle, err := openOracle(cfg)
	if err != nil {
		return err
	}
	r, err := open(cfg, oracle, time.Now)
	if err != nil {
		return err
	}
	defer r.Close()
	m := r.Machine()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go keeper.New(r, cfg.KeeperPeriod.Duration).Run(ctx)
	go oracle.Run(ctx, r, cfg.OracleDelay.Duration)

	wait := m.Interval() + 20*(cfg.KeeperPeriod.Duration+cfg.OracleDelay.Duration)
	for round := 0; round < cfg.Rounds; round++ {
		epoch := m.Epoch()
		enterAll(r, cfg)
		if len(cfg.Players) == 0 {
			fmt.Fprintf(w, "epoch %d: no draw, 0 players\n", epoch)
			continue
		}
		deadline := time.After(wait)
		for m.Epoch() == epoch {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-deadline:
				return xerrors.Errorf("epoch %d not drawn after %v", epoch, wait)
			case <-time.After(10 * time.Millisecond):
			}
		}
		if err := report(w, m, epoch); err != nil {
			return err
		}
	}
	return nil
}

func printStatus(store *state.Store, w io.Writer) error {
	snap, err := store.LoadSnapshot()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "state: %s\n", lottery.State(snap.State))
	fmt.Fprintf(w, "epoch: %d\n", snap.Epoch)
	fmt.Fprintf(w, "entrance fee: %d\n", snap.EntranceFee)
	fmt.Fprintf(w, "pot: %d\n", snap.Pot)
	fmt.Fprintf(w, "players: %d\n", len(snap.Participants))
	fmt.Fprintf(w, "last draw: %s\n", time.Unix(0, snap.LastDraw).UTC().Format(time.RFC3339))
	if snap.HasWinner {
		fmt.Fprintf(w, "recent winner: %s (%d, epoch %d)\n", snap.WinnerAddress, snap.WinnerAmount, snap.WinnerEpoch)
	}
	if snap.HasPending {
		fmt.Fprintf(w, "pending request: %d\n", snap.PendingID)
	}
	if snap.HasHalted {
		fmt.Fprintf(w, "halted payout: %d to %s\n", snap.HaltedAmount, snap.HaltedWinner)
	}
	return nil
}

func printEvents(store *state.Store, since uint64, w io.Writer) error {
	events, err := store.Events(since)
	if err != nil {
		return err
	}
	for _, e := range events {
		switch e.Type {
		case lottery.EntryRecorded:
			fmt.Fprintf(w, "%d %s epoch=%d payer=%s amount=%d\n", e.Seq, e.Type, e.Epoch, e.Payer, e.Amount)
		case lottery.DrawRequested:
			fmt.Fprintf(w, "%d %s epoch=%d request=%d\n", e.Seq, e.Type, e.Epoch, e.RequestID)
		default:
			fmt.Fprintf(w, "%d %s epoch=%d winner=%s amount=%d\n", e.Seq, e.Type, e.Epoch, e.Winner, e.Amount)
		}
	}
	return nil
}
