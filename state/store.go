package state

import (
	"encoding/binary"

	"github.com/dedis/raffle/apps/lottery"
	"go.dedis.ch/protobuf"
	bbolt "go.etcd.io/bbolt"
	"golang.org/x/xerrors"
)

var (
	snapshotBucket = []byte("snapshot")
	eventBucket    = []byte("events")
	accountBucket  = []byte("accounts")

	snapshotKey = []byte("current")
	accountKey  = []byte("balances")
)

// ErrNotFound is returned when nothing has been stored yet.
var ErrNotFound = xerrors.New("state: not found")

// Store keeps the raffle snapshot, the event log and the account balances
// in a bbolt database.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, xerrors.Errorf("opening %s: %v", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{snapshotBucket, eventBucket, accountBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("creating buckets: %v", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot replaces the stored snapshot.
func (s *Store) SaveSnapshot(snap *lottery.Snapshot) error {
	buf, err := protobuf.Encode(snap)
	if err != nil {
		return xerrors.Errorf("encoding snapshot: %v", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put(snapshotKey, buf)
	})
}

// LoadSnapshot returns the stored snapshot or ErrNotFound.
func (s *Store) LoadSnapshot() (*lottery.Snapshot, error) {
	var buf []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(snapshotBucket).Get(snapshotKey); v != nil {
			buf = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("reading snapshot: %v", err)
	}
	if buf == nil {
		return nil, ErrNotFound
	}
	snap := &lottery.Snapshot{}
	if err := protobuf.Decode(buf, snap); err != nil {
		return nil, xerrors.Errorf("decoding snapshot: %v", err)
	}
	return snap, nil
}

// AppendEvents stores events under their sequence number. Storing an event
// twice overwrites it with the same content.
func (s *Store) AppendEvents(events []lottery.Event) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(eventBucket)
		for _, e := range events {
			buf, err := protobuf.Encode(NewEventRecord(e))
			if err != nil {
				return xerrors.Errorf("encoding event %d: %v", e.Seq, err)
			}
			if err := b.Put(seqKey(e.Seq), buf); err != nil {
				return err
			}
		}
		return nil
	})
}

// Events returns the stored events with a sequence number above since, in
// order.
func (s *Store) Events(since uint64) ([]lottery.Event, error) {
	var out []lottery.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(eventBucket).Cursor()
		for k, v := c.Seek(seqKey(since + 1)); k != nil; k, v = c.Next() {
			r := &EventRecord{}
			if err := protobuf.Decode(v, r); err != nil {
				return xerrors.Errorf("decoding event: %v", err)
			}
			out = append(out, r.Event())
		}
		return nil
	})
	return out, err
}

// LastSeq returns the highest stored sequence number.
func (s *Store) LastSeq() (uint64, error) {
	var seq uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(eventBucket).Cursor().Last()
		if len(k) == 8 {
			seq = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return seq, err
}

// SaveAccounts stores the balances of a.
func (s *Store) SaveAccounts(a *Accounts) error {
	buf, err := protobuf.Encode(&balances{Data: a.Balances()})
	if err != nil {
		return xerrors.Errorf("encoding balances: %v", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(accountBucket).Put(accountKey, buf)
	})
}

// LoadAccounts returns the stored accounts, or empty accounts when none
// were saved.
func (s *Store) LoadAccounts() (*Accounts, error) {
	var buf []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(accountBucket).Get(accountKey); v != nil {
			buf = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("reading balances: %v", err)
	}
	a := NewAccounts()
	if buf == nil {
		return a, nil
	}
	bs := &balances{}
	if err := protobuf.Decode(buf, bs); err != nil {
		return nil, xerrors.Errorf("decoding balances: %v", err)
	}
	for _, b := range bs.Data {
		a.balances[lottery.Address(b.Address)] = lottery.Amount(b.Amount)
	}
	return a, nil
}

func seqKey(seq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}
