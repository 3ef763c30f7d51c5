// Package keeper polls an upkeep target and triggers it when it reports
// that work is needed.
package keeper

import (
	"context"
	"sync"
	"time"

	"github.com/dedis/raffle/apps/lottery"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Upkeeper is the target of the keeper.
type Upkeeper interface {
	CheckUpkeep() (bool, []byte, error)
	PerformUpkeep(performData []byte) error
}

// Result is the outcome of one tick.
type Result int

const (
	// Idle means no upkeep was needed.
	Idle Result = iota
	// Performed means PerformUpkeep succeeded.
	Performed
	// Raced means PerformUpkeep found nothing to do.
	Raced
	// Failed means the check or the perform call failed.
	Failed
)

// Keeper calls PerformUpkeep whenever CheckUpkeep answers true.
type Keeper struct {
	target Upkeeper
	period time.Duration

	mu        sync.Mutex
	performed int
}

// New returns a keeper polling target every period.
func New(target Upkeeper, period time.Duration) *Keeper {
	if period <= 0 {
		period = time.Second
	}
	return &Keeper{target: target, period: period}
}

// Tick runs one check and, if needed, one perform.
func (k *Keeper) Tick() (Result, error) {
	needed, data, err := k.target.CheckUpkeep()
	if err != nil {
		log.Error("keeper: checkUpkeep:", err)
		return Failed, err
	}
	if !needed {
		return Idle, nil
	}
	err = k.target.PerformUpkeep(data)
	switch {
	case err == nil:
		k.mu.Lock()
		k.performed++
		k.mu.Unlock()
		log.Lvl2("keeper: upkeep performed")
		return Performed, nil
	case xerrors.Is(err, lottery.ErrUpkeepNotNeeded):
		log.Lvl3("keeper: upkeep no longer needed:", err)
		return Raced, nil
	default:
		log.Error("keeper: performUpkeep:", err)
		return Failed, err
	}
}

// Run ticks every period until ctx is done.
func (k *Keeper) Run(ctx context.Context) {
	ticker := time.NewTicker(k.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			k.Tick()
		}
	}
}

// Performed returns the number of successful performs.
func (k *Keeper) Performed() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.performed
}
