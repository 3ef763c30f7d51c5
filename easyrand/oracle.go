package easyrand

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dedis/raffle/easyrand/base"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/encoding"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// MaxWords bounds the number of words of a single request.
const MaxWords = 500

var suite = bn256.NewSuite()

var (
	// ErrNonexistentRequest is returned when fulfilling an id that is not
	// pending.
	ErrNonexistentRequest = xerrors.New("easyrand: nonexistent request")
	// ErrBadRandomness is returned by Verify.
	ErrBadRandomness = xerrors.New("easyrand: randomness does not verify")
	// ErrRejected is wrapped by consumers refusing an output for good. The
	// request is then dropped instead of being delivered again.
	ErrRejected = xerrors.New("easyrand: output rejected by consumer")
)

// Consumer receives fulfillments.
type Consumer interface {
	FulfillRandomness(out *base.RandomnessOutput) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc func(out *base.RandomnessOutput) error

// FulfillRandomness calls f.
func (f ConsumerFunc) FulfillRandomness(out *base.RandomnessOutput) error {
	return f(out)
}

// Oracle hands out request ids synchronously and produces verifiable
// randomness for them later. The randomness of a request is the BLS
// signature of its message, so it is unpredictable without the private key
// and checkable by anyone holding the public key.
type Oracle struct {
	mu      sync.Mutex
	private kyber.Scalar
	public  kyber.Point
	next    uint64
	pending map[uint64]*base.RandomnessInput
}

// NewOracle creates an oracle with a fresh key pair.
func NewOracle() *Oracle {
	private, public := bls.NewKeyPair(suite, random.New())
	return newOracle(private, public)
}

// NewOracleFromKey creates an oracle from a hex encoded private scalar.
func NewOracleFromKey(hexKey string) (*Oracle, error) {
	private, err := encoding.StringHexToScalar(suite.G2(), hexKey)
	if err != nil {
		return nil, xerrors.Errorf("decoding oracle key: %v", err)
	}
	public := suite.G2().Point().Mul(private, nil)
	return newOracle(private, public), nil
}

func newOracle(private kyber.Scalar, public kyber.Point) *Oracle {
	return &Oracle{
		private: private,
		public:  public,
		pending: make(map[uint64]*base.RandomnessInput),
	}
}

// Public returns the verification key.
func (o *Oracle) Public() kyber.Point {
	return o.public
}

// PrivateHex returns the private key, hex encoded.
func (o *Oracle) PrivateHex() (string, error) {
	return encoding.ScalarToStringHex(suite.G2(), o.private)
}

// Request records a request and returns its id. Ids start at 1.
func (o *Oracle) Request(seed []byte, numWords uint32) (uint64, error) {
	if numWords == 0 || numWords > MaxWords {
		return 0, xerrors.Errorf("easyrand: invalid number of words %d", numWords)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.pending[o.next] = &base.RandomnessInput{
		RequestID: o.next,
		Seed:      append([]byte{}, seed...),
		NumWords:  numWords,
	}
	log.Lvl3("easyrand: request", o.next, "for", numWords, "words")
	return o.next, nil
}

// Pending returns the ids waiting for fulfillment in request order.
func (o *Oracle) Pending() []uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]uint64, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Fulfill produces the randomness of a pending request. The request stays
// pending until Consume, and fulfilling it again yields the same output.
func (o *Oracle) Fulfill(id uint64) (*base.RandomnessOutput, error) {
	o.mu.Lock()
	in, ok := o.pending[id]
	o.mu.Unlock()
	if !ok {
		return nil, ErrNonexistentRequest
	}
	msg := in.Message()
	sig, err := bls.Sign(suite, o.private, msg)
	if err != nil {
		return nil, xerrors.Errorf("signing request %d: %v", id, err)
	}
	return &base.RandomnessOutput{
		RequestID: in.RequestID,
		Seed:      in.Seed,
		NumWords:  in.NumWords,
		Prev:      msg,
		Value:     sig,
		Words:     base.ExpandWords(sig, in.NumWords),
	}, nil
}

// Consume removes a delivered request.
func (o *Oracle) Consume(id uint64) {
	o.mu.Lock()
	delete(o.pending, id)
	o.mu.Unlock()
}

// Deliver fulfills every pending request, hands the outputs to c and returns
// how many were consumed. A request stays pending when c fails, unless the
// error wraps ErrRejected.
func (o *Oracle) Deliver(c Consumer) int {
	n := 0
	for _, id := range o.Pending() {
		out, err := o.Fulfill(id)
		if err != nil {
			continue
		}
		err = c.FulfillRandomness(out)
		if err != nil && !xerrors.Is(err, ErrRejected) {
			log.Warn("easyrand: delivering request", id, "failed, keeping it:", err)
			continue
		}
		if err != nil {
			log.Warn("easyrand: consumer rejected request", id, err)
		}
		o.Consume(id)
		n++
	}
	return n
}

// Run delivers pending requests to c every period until ctx is done.
func (o *Oracle) Run(ctx context.Context, c Consumer, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Deliver(c)
		}
	}
}

// Verify checks that out was produced by the holder of public for the
// request it names.
func Verify(public kyber.Point, out *base.RandomnessOutput) error {
	if out == nil {
		return ErrBadRandomness
	}
	if !bytes.Equal(out.Prev, out.Input().Message()) {
		return xerrors.Errorf("message does not match request %d: %w", out.RequestID, ErrBadRandomness)
	}
	if err := bls.Verify(suite, public, out.Prev, out.Value); err != nil {
		return xerrors.Errorf("checking signature: %v: %w", err, ErrBadRandomness)
	}
	words := base.ExpandWords(out.Value, out.NumWords)
	if len(words) != len(out.Words) {
		return xerrors.Errorf("expected %d words, got %d: %w", len(words), len(out.Words), ErrBadRandomness)
	}
	for i := range words {
		if !bytes.Equal(words[i], out.Words[i]) {
			return xerrors.Errorf("word %d does not match: %w", i, ErrBadRandomness)
		}
	}
	return nil
}

// PublicToBytes encodes a verification key.
func PublicToBytes(public kyber.Point) ([]byte, error) {
	return public.MarshalBinary()
}

// PublicFromBytes decodes a verification key.
func PublicFromBytes(buf []byte) (kyber.Point, error) {
	p := suite.G2().Point()
	if err := p.UnmarshalBinary(buf); err != nil {
		return nil, xerrors.Errorf("decoding oracle public key: %v", err)
	}
	return p, nil
}
