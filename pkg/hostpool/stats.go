package hostpool

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/nspcc-dev/p2pnet/pkg/wireaddr"
)

var statsBucket = []byte("dialstats")

// Entry is a per-address dial reliability record: a spec.md-supplemental
// feature (§4.11 only requires FIFO eviction and take/restore) grounded
// on the teacher's addrStats. session_outbound does not consult it when
// choosing addresses.
type Entry struct {
	Tries       uint32
	Failures    uint32
	LastTried   time.Time
	LastSuccess time.Time
}

// Stats is a bbolt-backed side-store for dial statistics, kept separate
// from the hosts file because the wire-compatible line format has no room
// for it. It is safe for concurrent use (bbolt serializes its own
// transactions).
type Stats struct {
	db *bbolt.DB
}

// OpenStats opens (creating if absent) a bbolt database at path.
func OpenStats(path string) (*Stats, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("hostpool: open stats db: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(statsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("hostpool: init stats bucket: %w", err)
	}
	return &Stats{db: db}, nil
}

// Close closes the underlying database.
func (s *Stats) Close() error {
	return s.db.Close()
}

// RecordSuccess increments tries and records the current time as both
// last-tried and last-success for a.
func (s *Stats) RecordSuccess(a wireaddr.Authority) error {
	return s.update(a, func(e *Entry) {
		e.Tries++
		e.LastTried = now()
		e.LastSuccess = now()
	})
}

// RecordFailure increments tries/failures and records the current time
// as last-tried for a.
func (s *Stats) RecordFailure(a wireaddr.Authority) error {
	return s.update(a, func(e *Entry) {
		e.Tries++
		e.Failures++
		e.LastTried = now()
	})
}

// Get returns the stats entry for a, or the zero Entry if never recorded.
func (s *Stats) Get(a wireaddr.Authority) (Entry, error) {
	var e Entry
	key := []byte(keyOf(a))
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(statsBucket).Get(key)
		if raw == nil {
			return nil
		}
		return decodeEntry(raw, &e)
	})
	return e, err
}

func (s *Stats) update(a wireaddr.Authority, mutate func(*Entry)) error {
	key := []byte(keyOf(a))
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(statsBucket)
		var e Entry
		if raw := b.Get(key); raw != nil {
			if err := decodeEntry(raw, &e); err != nil {
				return err
			}
		}
		mutate(&e)
		return b.Put(key, encodeEntry(e))
	})
}

// now is a seam so tests can avoid depending on wall-clock ordering; in
// production it is just time.Now().
var now = time.Now

const entrySize = 4 + 4 + 8 + 8

func encodeEntry(e Entry) []byte {
	buf := make([]byte, entrySize)
	binary.BigEndian.PutUint32(buf[0:4], e.Tries)
	binary.BigEndian.PutUint32(buf[4:8], e.Failures)
	binary.BigEndian.PutUint64(buf[8:16], uint64(e.LastTried.Unix()))
	binary.BigEndian.PutUint64(buf[16:24], uint64(e.LastSuccess.Unix()))
	return buf
}

func decodeEntry(buf []byte, e *Entry) error {
	if len(buf) != entrySize {
		return fmt.Errorf("hostpool: corrupt stats entry (%d bytes)", len(buf))
	}
	e.Tries = binary.BigEndian.Uint32(buf[0:4])
	e.Failures = binary.BigEndian.Uint32(buf[4:8])
	e.LastTried = time.Unix(int64(binary.BigEndian.Uint64(buf[8:16])), 0)
	e.LastSuccess = time.Unix(int64(binary.BigEndian.Uint64(buf[16:24])), 0)
	return nil
}
