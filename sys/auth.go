package sys

import (
	"crypto/sha256"
	"encoding/binary"

	"go.dedis.ch/cothority/v3"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/encoding"
	"golang.org/x/xerrors"
)

// ErrBadSignature is returned when a request signature does not verify.
var ErrBadSignature = xerrors.New("sys: bad signature")

// Address returns the account address of an Ed25519 public key.
func Address(pub kyber.Point) (string, error) {
	return encoding.PointToStringHex(cothority.Suite, pub)
}

// PointFromAddress parses an address back into a public key.
func PointFromAddress(addr string) (kyber.Point, error) {
	p, err := encoding.StringHexToPoint(cothority.Suite, addr)
	if err != nil {
		return nil, xerrors.Errorf("decoding address %s: %v", addr, err)
	}
	return p, nil
}

// EntryMessage is what a payer signs to enter the raffle: the payer key,
// the epoch, the number of participants seen and the amount.
func EntryMessage(pub kyber.Point, epoch uint64, count int, amount uint64) ([]byte, error) {
	buf, err := pub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	h := sha256.New()
	h.Write(buf)
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, epoch)
	h.Write(b)
	binary.LittleEndian.PutUint64(b, uint64(count))
	h.Write(b)
	binary.LittleEndian.PutUint64(b, amount)
	h.Write(b)
	return h.Sum(nil), nil
}

// OperatorMessage is what the operator signs to retry a halted payout.
func OperatorMessage(op string, epoch uint64) []byte {
	h := sha256.New()
	h.Write([]byte(op))
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, epoch)
	h.Write(b)
	return h.Sum(nil)
}

// Sign signs msg with an Ed25519 private key.
func Sign(priv kyber.Scalar, msg []byte) ([]byte, error) {
	return schnorr.Sign(cothority.Suite, priv, msg)
}

// VerifyAuthentication checks a schnorr signature of pub over mesg.
func VerifyAuthentication(pub kyber.Point, mesg, sig []byte) error {
	if pub == nil || len(sig) == 0 {
		return xerrors.Errorf("missing key or signature: %w", ErrBadSignature)
	}
	if err := schnorr.Verify(cothority.Suite, pub, mesg, sig); err != nil {
		return xerrors.Errorf("%v: %w", err, ErrBadSignature)
	}
	return nil
}
