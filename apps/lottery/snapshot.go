package lottery

import (
	"time"

	"golang.org/x/xerrors"
)

// Snapshot is a flat copy of the machine, suitable for protobuf encoding.
type Snapshot struct {
	State        int
	Participants []string
	EntranceFee  uint64
	Pot          uint64
	// LastDraw is in unix nanoseconds.
	LastDraw int64
	Interval int64
	Epoch    uint64
	NumWords uint32
	Vault    string

	HasPending   bool
	PendingID    uint64
	PendingEpoch uint64

	HasWinner     bool
	WinnerAddress string
	WinnerAmount  uint64
	WinnerEpoch   uint64
	WinnerRequest uint64
	WinnerTime    int64

	HasHalted     bool
	HaltedWinner  string
	HaltedAmount  uint64
	HaltedEpoch   uint64
	HaltedRequest uint64

	LastSeq uint64
}

// Snapshot captures the current state of the machine.
func (m *Machine) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Snapshot{
		State:       int(m.round.State),
		EntranceFee: uint64(m.round.EntranceFee),
		Pot:         uint64(m.round.Pot),
		LastDraw:    m.round.LastDraw.UnixNano(),
		Interval:    int64(m.round.Interval),
		Epoch:       m.round.Epoch,
		NumWords:    m.cfg.NumWords,
		Vault:       string(m.cfg.Vault),
		LastSeq:     m.events.seq,
	}
	for _, p := range m.round.Participants {
		s.Participants = append(s.Participants, string(p))
	}
	if p, ok := m.tracker.Pending(); ok {
		s.HasPending = true
		s.PendingID = uint64(p.RequestID)
		s.PendingEpoch = p.Epoch
	}
	if w := m.recent; w != nil {
		s.HasWinner = true
		s.WinnerAddress = string(w.Address)
		s.WinnerAmount = uint64(w.Amount)
		s.WinnerEpoch = w.Epoch
		s.WinnerRequest = uint64(w.RequestID)
		s.WinnerTime = w.Time.UnixNano()
	}
	if h := m.halted; h != nil {
		s.HasHalted = true
		s.HaltedWinner = string(h.Winner)
		s.HaltedAmount = uint64(h.Amount)
		s.HaltedEpoch = h.Epoch
		s.HaltedRequest = uint64(h.RequestID)
	}
	return s
}

// Restore rebuilds a machine from a snapshot. The event log restarts empty
// but keeps counting from the stored sequence number.
func Restore(s *Snapshot, coord Coordinator, bank Bank, now func() time.Time) (*Machine, error) {
	if s == nil {
		return nil, xerrors.Errorf("nil snapshot: %w", ErrInvalidConfig)
	}
	cfg := Config{
		EntranceFee: Amount(s.EntranceFee),
		Interval:    time.Duration(s.Interval),
		NumWords:    s.NumWords,
		Vault:       Address(s.Vault),
		Now:         now,
	}
	if err := cfg.fill(); err != nil {
		return nil, err
	}
	if coord == nil || bank == nil {
		return nil, xerrors.Errorf("missing oracle or bank: %w", ErrInvalidConfig)
	}
	state := State(s.State)
	if state != Open && state != Calculating {
		return nil, xerrors.Errorf("unknown state %d: %w", s.State, ErrInvalidConfig)
	}
	if state == Calculating && !s.HasPending && !s.HasHalted {
		return nil, xerrors.Errorf("calculating without request or halted payout: %w", ErrInvalidConfig)
	}
	if state == Open && (s.HasPending || s.HasHalted) {
		return nil, xerrors.Errorf("open round with a request in flight: %w", ErrInvalidConfig)
	}
	m := newMachine(cfg, coord, bank)
	m.round = Round{
		State:       state,
		EntranceFee: cfg.EntranceFee,
		Pot:         Amount(s.Pot),
		LastDraw:    time.Unix(0, s.LastDraw),
		Interval:    cfg.Interval,
		Epoch:       s.Epoch,
	}
	for _, p := range s.Participants {
		m.round.Participants = append(m.round.Participants, Address(p))
	}
	if s.HasPending {
		m.tracker.restore(PendingRequest{RequestID: RequestID(s.PendingID), Epoch: s.PendingEpoch})
	}
	if s.HasWinner {
		m.recent = &WinnerRecord{
			Address:   Address(s.WinnerAddress),
			Amount:    Amount(s.WinnerAmount),
			Epoch:     s.WinnerEpoch,
			RequestID: RequestID(s.WinnerRequest),
			Time:      time.Unix(0, s.WinnerTime),
		}
	}
	if s.HasHalted {
		m.halted = &HaltedPayout{
			Winner:    Address(s.HaltedWinner),
			Amount:    Amount(s.HaltedAmount),
			Epoch:     s.HaltedEpoch,
			RequestID: RequestID(s.HaltedRequest),
		}
	}
	m.events.seq = s.LastSeq
	return m, nil
}
