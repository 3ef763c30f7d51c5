package lottery

import (
	"encoding/binary"
	"time"
)

// Evaluate computes the upkeep conditions of a round at the given time. It
// has no side effects.
func Evaluate(r *Round, now time.Time) UpkeepStatus {
	return UpkeepStatus{
		TimePassed: now.Sub(r.LastDraw) >= r.Interval,
		IsOpen:     r.State == Open,
		HasBalance: r.Pot > 0,
		HasPlayers: len(r.Participants) > 0,
	}
}

// NeedsUpkeep is the conjunction of the four conditions of Evaluate.
func NeedsUpkeep(r *Round, now time.Time) bool {
	return Evaluate(r, now).Needed()
}

func encodePerformData(epoch uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, epoch)
	return buf
}

// DecodePerformData returns the epoch a checkUpkeep was made for.
func DecodePerformData(data []byte) (uint64, bool) {
	if len(data) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(data), true
}
