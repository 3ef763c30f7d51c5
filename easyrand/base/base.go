package base

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"
)

const (
	UID  string = "easyrand"
	RAND string = "randomness"
)

// RandomnessInput is a request recorded by the oracle.
type RandomnessInput struct {
	RequestID uint64
	Seed      []byte
	NumWords  uint32
}

// RandomnessOutput is the fulfillment of one request. Value is the BLS
// signature over Prev; the words are derived from it.
type RandomnessOutput struct {
	RequestID uint64
	Seed      []byte
	NumWords  uint32
	Prev      []byte
	Value     []byte
	Words     [][]byte
}

// Message returns the bytes the oracle signs for this input.
func (in *RandomnessInput) Message() []byte {
	h := sha256.New()
	h.Write([]byte(UID))
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, in.RequestID)
	h.Write(buf)
	binary.LittleEndian.PutUint32(buf[:4], in.NumWords)
	h.Write(buf[:4])
	h.Write(in.Seed)
	return h.Sum(nil)
}

// Input returns the request this output answers.
func (out *RandomnessOutput) Input() *RandomnessInput {
	return &RandomnessInput{
		RequestID: out.RequestID,
		Seed:      out.Seed,
		NumWords:  out.NumWords,
	}
}

// Hash commits to the whole output.
func (out *RandomnessOutput) Hash() []byte {
	h := sha256.New()
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, out.RequestID)
	h.Write(b)
	h.Write(out.Prev)
	h.Write(out.Value)
	for _, w := range out.Words {
		h.Write(w)
	}
	return h.Sum(nil)
}

// BigWords returns the words as unsigned big-endian integers.
func (out *RandomnessOutput) BigWords() []*big.Int {
	words := make([]*big.Int, len(out.Words))
	for i, w := range out.Words {
		words[i] = new(big.Int).SetBytes(w)
	}
	return words
}

// ExpandWords derives n 256-bit words from a signature.
func ExpandWords(value []byte, n uint32) [][]byte {
	words := make([][]byte, n)
	buf := make([]byte, 4)
	for i := uint32(0); i < n; i++ {
		h := sha256.New()
		h.Write(value)
		binary.BigEndian.PutUint32(buf, i)
		h.Write(buf)
		words[i] = h.Sum(nil)
	}
	return words
}
