// Package boltstore keeps headlines in a bbolt file with one record per
// country. Current value and history are written in the same transaction.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/hashicorp/go-hclog"
	bolt "go.etcd.io/bbolt"
)

var (
	headlinesBucket = []byte("headlines")
	historyBucket   = []byte("history")
)

// Options configures a Store.
type Options struct {
	// HistoryLimit caps each country's history. Zero keeps everything.
	HistoryLimit int
	Logger       hclog.Logger
}

// Store is a bbolt-backed headline store.
type Store struct {
	db           *bolt.DB
	historyLimit int
	logger       hclog.Logger
}

// Open opens or creates the database at path.
func Open(path string, opts Options) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{headlinesBucket, historyBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{db: db, historyLimit: opts.HistoryLimit, logger: logger.Named("boltstore")}, nil
}

// Current implements headline.Store.
func (s *Store) Current(ctx context.Context, country string) (headline.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return headline.Entry{}, false, err
	}
	var (
		e  headline.Entry
		ok bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(headlinesBucket).Get([]byte(country))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("%w: %w", headline.ErrCorruptState, err)
		}
		ok = true
		return nil
	})
	return e, ok, err
}

// Put implements headline.Store.
func (s *Store) Put(ctx context.Context, entry headline.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(headlinesBucket).Put([]byte(entry.Country), value); err != nil {
			return err
		}
		b, err := tx.Bucket(historyBucket).CreateBucketIfNotExists([]byte(entry.Country))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		if err := b.Put(itob(seq), value); err != nil {
			return err
		}
		if s.historyLimit > 0 {
			return trim(b, s.historyLimit)
		}
		return nil
	})
}

// Recent implements headline.Store.
func (s *Store) Recent(ctx context.Context, country string, limit int) ([]headline.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []headline.Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(historyBucket).Bucket([]byte(country))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var e headline.Entry
			if err := json.Unmarshal(v, &e); err != nil {
				s.logger.Warn("skipping unreadable history record", "country", country, "error", err)
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	return out, err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// trim deletes the oldest records of b beyond limit.
func trim(b *bolt.Bucket, limit int) error {
	c := b.Cursor()
	k, _ := c.Last()
	for i := 0; k != nil && i < limit; i++ {
		k, _ = c.Prev()
	}
	if k == nil {
		return nil
	}
	cutoff := append([]byte(nil), k...)

	var stale [][]byte
	for k, _ := c.First(); k != nil && bytes.Compare(k, cutoff) <= 0; k, _ = c.Next() {
		stale = append(stale, append([]byte(nil), k...))
	}
	for _, k := range stale {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
