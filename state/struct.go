package state

import (
	"time"

	"github.com/dedis/raffle/apps/lottery"
)

// EventRecord is the stored form of a lottery event.
type EventRecord struct {
	Seq       uint64
	Type      int
	Epoch     uint64
	Payer     string
	Winner    string
	Amount    uint64
	RequestID uint64
	Time      int64
}

// Balance is one stored account.
type Balance struct {
	Address string
	Amount  uint64
}

type balances struct {
	Data []Balance
}

// NewEventRecord converts an event to its stored form.
func NewEventRecord(e lottery.Event) *EventRecord {
	return &EventRecord{
		Seq:       e.Seq,
		Type:      int(e.Type),
		Epoch:     e.Epoch,
		Payer:     string(e.Payer),
		Winner:    string(e.Winner),
		Amount:    uint64(e.Amount),
		RequestID: uint64(e.RequestID),
		Time:      e.Time.UnixNano(),
	}
}

// Event converts the record back.
func (r *EventRecord) Event() lottery.Event {
	return lottery.Event{
		Seq:       r.Seq,
		Type:      lottery.EventType(r.Type),
		Epoch:     r.Epoch,
		Payer:     lottery.Address(r.Payer),
		Winner:    lottery.Address(r.Winner),
		Amount:    lottery.Amount(r.Amount),
		RequestID: lottery.RequestID(r.RequestID),
		Time:      time.Unix(0, r.Time),
	}
}
