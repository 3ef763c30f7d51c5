package lottery

import (
	"golang.org/x/xerrors"
)

// RequestTracker maps outstanding randomness requests to the epoch that
// issued them. It never holds more than one entry.
type RequestTracker struct {
	coord       Coordinator
	outstanding map[RequestID]PendingRequest
}

// NewRequestTracker creates a tracker issuing requests to coord.
func NewRequestTracker(coord Coordinator) *RequestTracker {
	return &RequestTracker{
		coord:       coord,
		outstanding: make(map[RequestID]PendingRequest),
	}
}

// issue asks the oracle for randomness on behalf of epoch. Nothing is
// recorded when the oracle fails.
func (t *RequestTracker) issue(epoch uint64, seed []byte, numWords uint32) (PendingRequest, error) {
	if len(t.outstanding) > 0 {
		return PendingRequest{}, xerrors.New("raffle: a randomness request is already outstanding")
	}
	id, err := t.coord.RequestRandomness(seed, numWords)
	if err != nil {
		return PendingRequest{}, xerrors.Errorf("requesting randomness: %v", err)
	}
	if id == 0 {
		return PendingRequest{}, xerrors.New("raffle: oracle returned request id 0")
	}
	p := PendingRequest{RequestID: id, Epoch: epoch}
	t.outstanding[id] = p
	return p, nil
}

// match checks that id is outstanding for epoch without consuming it.
func (t *RequestTracker) match(id RequestID, epoch uint64) (PendingRequest, error) {
	p, ok := t.outstanding[id]
	if !ok || p.Epoch != epoch {
		return PendingRequest{}, ErrUnknownRequest
	}
	return p, nil
}

// consume removes id from the table. Every id is consumed at most once.
func (t *RequestTracker) consume(id RequestID) {
	delete(t.outstanding, id)
}

// Pending returns the outstanding request, if any.
func (t *RequestTracker) Pending() (PendingRequest, bool) {
	for _, p := range t.outstanding {
		return p, true
	}
	return PendingRequest{}, false
}

func (t *RequestTracker) restore(p PendingRequest) {
	t.outstanding = map[RequestID]PendingRequest{p.RequestID: p}
}
