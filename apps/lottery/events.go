package lottery

import "time"

// EventType tags the entries of the audit log.
type EventType int

const (
	// EntryRecorded is emitted for every accepted entry.
	EntryRecorded EventType = iota + 1
	// DrawRequested is emitted when a round moves to Calculating.
	DrawRequested
	// WinnerPicked is emitted once the pot has been paid.
	WinnerPicked
	// PayoutFailed is emitted when the transfer to the winner fails.
	PayoutFailed
)

func (t EventType) String() string {
	switch t {
	case EntryRecorded:
		return "EntryRecorded"
	case DrawRequested:
		return "DrawRequested"
	case WinnerPicked:
		return "WinnerPicked"
	case PayoutFailed:
		return "PayoutFailed"
	default:
		return "Unknown"
	}
}

// Event is one entry of the ordered audit log. Seq starts at 1.
type Event struct {
	Seq       uint64
	Type      EventType
	Epoch     uint64
	Payer     Address
	Winner    Address
	Amount    Amount
	RequestID RequestID
	Time      time.Time
}

type eventLog struct {
	events []Event
	seq    uint64
}

func (l *eventLog) emit(e Event) Event {
	l.seq++
	e.Seq = l.seq
	l.events = append(l.events, e)
	return e
}

// since returns the events with a sequence number above seq.
func (l *eventLog) since(seq uint64) []Event {
	var out []Event
	for _, e := range l.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
