package lottery

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Machine owns the active round and is the only component that mutates it.
// Every exported method runs under one mutex, so operations never
// interleave and at most one draw is ever in flight.
type Machine struct {
	mu sync.Mutex

	cfg     Config
	round   Round
	ledger  *entryLedger
	tracker *RequestTracker
	payout  *PayoutEngine
	events  eventLog

	recent *WinnerRecord
	halted *HaltedPayout
}

// NewMachine creates a raffle whose first round opens now.
func NewMachine(cfg Config, coord Coordinator, bank Bank) (*Machine, error) {
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	if coord == nil || bank == nil {
		return nil, xerrors.Errorf("missing oracle or bank: %w", ErrInvalidConfig)
	}
	m := newMachine(cfg, coord, bank)
	m.round = Round{
		State:       Open,
		EntranceFee: cfg.EntranceFee,
		LastDraw:    cfg.Now(),
		Interval:    cfg.Interval,
		Epoch:       1,
	}
	return m, nil
}

func newMachine(cfg Config, coord Coordinator, bank Bank) *Machine {
	m := &Machine{
		cfg:     cfg,
		tracker: NewRequestTracker(coord),
		payout:  NewPayoutEngine(bank, cfg.Vault),
	}
	m.ledger = &entryLedger{round: &m.round}
	return m
}

func (cfg *Config) fill() error {
	if cfg.Interval < 0 {
		return xerrors.Errorf("negative interval %v: %w", cfg.Interval, ErrInvalidConfig)
	}
	if cfg.Vault == "" {
		return xerrors.Errorf("missing vault account: %w", ErrInvalidConfig)
	}
	if cfg.NumWords == 0 {
		cfg.NumWords = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return nil
}

// Enter collects amount from payer into the vault and records the entry.
func (m *Machine) Enter(payer Address, amount Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if payer == "" {
		return xerrors.New("raffle: empty payer address")
	}
	if err := m.ledger.check(amount); err != nil {
		return err
	}
	if err := m.payout.bank.Transfer(payer, m.cfg.Vault, amount); err != nil {
		return xerrors.Errorf("collecting entrance fee from %s: %v", payer, err)
	}
	m.ledger.record(payer, amount)
	m.events.emit(Event{
		Type:   EntryRecorded,
		Epoch:  m.round.Epoch,
		Payer:  payer,
		Amount: amount,
		Time:   m.cfg.Now(),
	})
	log.Lvl3("raffle: entry of", payer, "in epoch", m.round.Epoch)
	return nil
}

// UpkeepStatus returns the four upkeep conditions for diagnostics.
func (m *Machine) UpkeepStatus() UpkeepStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Evaluate(&m.round, m.cfg.Now())
}

// CheckUpkeep is the read-only poll of the automation trigger. performData
// names the epoch the answer was computed for.
func (m *Machine) CheckUpkeep(extraData []byte) (bool, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return NeedsUpkeep(&m.round, m.cfg.Now()), encodePerformData(m.round.Epoch)
}

// PerformUpkeep is the write path of the automation trigger. performData is
// never trusted: the predicate is evaluated again.
func (m *Machine) PerformUpkeep(performData []byte) (RequestID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch, ok := DecodePerformData(performData); ok && epoch != m.round.Epoch {
		log.Lvl3("raffle: performUpkeep with stale epoch", epoch, "current", m.round.Epoch)
	}
	return m.requestDraw()
}

// RequestDraw moves the round from Open to Calculating and issues the
// randomness request.
func (m *Machine) RequestDraw() (RequestID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestDraw()
}

func (m *Machine) requestDraw() (RequestID, error) {
	now := m.cfg.Now()
	status := Evaluate(&m.round, now)
	if !status.Needed() {
		return 0, &UpkeepNotNeededError{
			Status:       status,
			Pot:          m.round.Pot,
			Participants: len(m.round.Participants),
			State:        m.round.State,
		}
	}
	p, err := m.tracker.issue(m.round.Epoch, drawSeed(&m.round), m.cfg.NumWords)
	if err != nil {
		return 0, err
	}
	m.round.State = Calculating
	m.events.emit(Event{
		Type:      DrawRequested,
		Epoch:     p.Epoch,
		RequestID: p.RequestID,
		Amount:    m.round.Pot,
		Time:      now,
	})
	log.Lvl2("raffle: draw requested for epoch", p.Epoch, "request", p.RequestID)
	return p.RequestID, nil
}

// FulfillRandomness is the oracle callback. It accepts only the outstanding
// request of the current epoch, consumes it, selects the winner and pays the
// pot. On a failed transfer the round stays Calculating with the selected
// winner recorded as a halted payout.
func (m *Machine) FulfillRandomness(id RequestID, words []*big.Int) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.tracker.match(id, m.round.Epoch)
	if err != nil {
		log.Warn("raffle: rejected fulfillment for request", id)
		return "", err
	}
	winner, idx, err := SelectWinner(m.round.Participants, words)
	if err != nil {
		return "", err
	}
	m.tracker.consume(id)
	amount := m.round.Pot
	log.Lvl2("raffle: request", id, "selected participant", idx, winner)
	if err := m.payout.Payout(winner, amount); err != nil {
		m.halted = &HaltedPayout{
			Winner:    winner,
			Amount:    amount,
			Epoch:     p.Epoch,
			RequestID: p.RequestID,
		}
		m.events.emit(Event{
			Type:      PayoutFailed,
			Epoch:     p.Epoch,
			Winner:    winner,
			Amount:    amount,
			RequestID: p.RequestID,
			Time:      m.cfg.Now(),
		})
		log.Error("raffle: payout halted for epoch", p.Epoch, err)
		return winner, err
	}
	m.completeRound(winner, amount, p)
	return winner, nil
}

// RetryPayout re-attempts a halted transfer to the already selected winner.
func (m *Machine) RetryPayout() (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.halted
	if h == nil {
		return "", ErrNotHalted
	}
	if err := m.payout.Payout(h.Winner, h.Amount); err != nil {
		m.events.emit(Event{
			Type:      PayoutFailed,
			Epoch:     h.Epoch,
			Winner:    h.Winner,
			Amount:    h.Amount,
			RequestID: h.RequestID,
			Time:      m.cfg.Now(),
		})
		return h.Winner, err
	}
	m.halted = nil
	m.completeRound(h.Winner, h.Amount, PendingRequest{RequestID: h.RequestID, Epoch: h.Epoch})
	return h.Winner, nil
}

func (m *Machine) completeRound(winner Address, amount Amount, p PendingRequest) {
	now := m.cfg.Now()
	m.recent = &WinnerRecord{
		Address:   winner,
		Amount:    amount,
		Epoch:     p.Epoch,
		RequestID: p.RequestID,
		Time:      now,
	}
	m.ledger.clear()
	m.round.Epoch++
	m.round.LastDraw = now
	m.round.State = Open
	m.events.emit(Event{
		Type:      WinnerPicked,
		Epoch:     p.Epoch,
		Winner:    winner,
		Amount:    amount,
		RequestID: p.RequestID,
		Time:      now,
	})
	log.Lvl1("raffle: epoch", p.Epoch, "won by", winner, "amount", amount)
}

// drawSeed binds the oracle request to the round it was issued for.
func drawSeed(r *Round) []byte {
	var buf bytes.Buffer
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, r.Epoch)
	buf.Write(b)
	binary.LittleEndian.PutUint64(b, uint64(r.LastDraw.UnixNano()))
	buf.Write(b)
	binary.LittleEndian.PutUint64(b, uint64(len(r.Participants)))
	buf.Write(b)
	h := sha256.Sum256(buf.Bytes())
	return h[:]
}

// EntranceFee returns the minimum entry amount.
func (m *Machine) EntranceFee() Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.EntranceFee
}

// Interval returns the minimum time between draws.
func (m *Machine) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.Interval
}

// NumWords returns how many random words each request asks for.
func (m *Machine) NumWords() uint32 {
	return m.cfg.NumWords
}

// Vault returns the account holding the pot.
func (m *Machine) Vault() Address {
	return m.cfg.Vault
}

// State returns the state of the active round.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.State
}

// Epoch returns the number of the active round.
func (m *Machine) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.Epoch
}

// Pot returns the amount collected by the active round.
func (m *Machine) Pot() Amount {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.Pot
}

// NumberOfPlayers returns the number of entries of the active round.
func (m *Machine) NumberOfPlayers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.count()
}

// Player returns the i-th entry of the active round.
func (m *Machine) Player(i int) (Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.at(i)
}

// Players returns a copy of the entries of the active round.
func (m *Machine) Players() []Address {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneParticipants(m.round.Participants)
}

// LastTimestamp returns the time the current round opened.
func (m *Machine) LastTimestamp() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round.LastDraw
}

// RecentWinner returns the most recent payout.
func (m *Machine) RecentWinner() (WinnerRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recent == nil {
		return WinnerRecord{}, false
	}
	return *m.recent, true
}

// Pending returns the outstanding randomness request.
func (m *Machine) Pending() (PendingRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Pending()
}

// Halted returns the payout waiting for RetryPayout.
func (m *Machine) Halted() (HaltedPayout, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.halted == nil {
		return HaltedPayout{}, false
	}
	return *m.halted, true
}

// Events returns the audit log entries with a sequence number above seq.
func (m *Machine) Events(seq uint64) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.since(seq)
}

// LastSeq returns the sequence number of the latest event.
func (m *Machine) LastSeq() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events.seq
}
