// Package filestore keeps all headline state in a single JSON document on
// local disk. Every operation loads the document fresh; writes rewrite the
// whole document. Load, mutate and save run under one in-process lock, so the
// store is safe for concurrent use within a process but not across processes
// sharing the file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/hashicorp/go-hclog"
)

// DefaultHistoryLimit caps the global history, across all countries.
const DefaultHistoryLimit = 50

// Options configures a Store.
type Options struct {
	// HistoryLimit caps the global history. Zero means DefaultHistoryLimit,
	// a negative value keeps everything.
	HistoryLimit int
	Logger       hclog.Logger
	Now          func() time.Time
}

// Store is the file-backed headline store.
type Store struct {
	mu           sync.Mutex
	path         string
	historyLimit int
	logger       hclog.Logger
	now          func() time.Time
}

// New returns a Store for the document at path. The file is created on the
// first write.
func New(path string, opts Options) *Store {
	s := &Store{
		path:         path,
		historyLimit: opts.HistoryLimit,
		logger:       opts.Logger,
		now:          opts.Now,
	}
	if s.historyLimit == 0 {
		s.historyLimit = DefaultHistoryLimit
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	s.logger = s.logger.Named("filestore")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Path returns the document path.
func (s *Store) Path() string { return s.path }

// Load reads the document. A missing, unreadable or corrupt document yields
// an empty state. A document in an older schema is upgraded and written back
// once, so later loads see the same timestamps.
func (s *Store) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, upgraded, err := s.read()
	if err != nil {
		s.logger.Error("error loading data", "path", s.path, "error", err)
		return st, nil
	}
	if upgraded {
		if err := s.write(st); err != nil {
			s.logger.Warn("could not persist upgraded document", "path", s.path, "error", err)
		}
	}
	return st, nil
}

// Save overwrites the document with st.
func (s *Store) Save(ctx context.Context, st *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(st)
}

// Migrate rewrites the document in the current schema if it is older.
// It reports whether a rewrite happened. An unreadable or corrupt document is
// an error and is left untouched.
func (s *Store) Migrate(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, upgraded, err := s.read()
	if err != nil {
		return false, err
	}
	if !upgraded {
		return false, nil
	}
	if err := s.write(st); err != nil {
		return false, err
	}
	s.logger.Info("document migrated", "path", s.path, "version", CurrentVersion, "countries", len(st.Headlines))
	return true, nil
}

// Current implements headline.Store.
func (s *Store) Current(ctx context.Context, country string) (headline.Entry, bool, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return headline.Entry{}, false, err
	}
	rec, ok := st.Headlines[country]
	if !ok {
		return headline.Entry{}, false, nil
	}
	return headline.Entry{Country: country, Headline: rec.Headline, Timestamp: rec.Timestamp}, true, nil
}

// Put implements headline.Store. The current record and the history entry
// land in the same document write. A corrupt document is replaced; a document
// that cannot be read at all is left alone and the write fails.
func (s *Store) Put(ctx context.Context, entry headline.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _, err := s.read()
	if err != nil {
		if !errors.Is(err, headline.ErrCorruptState) {
			return err
		}
		s.logger.Warn("replacing corrupt document", "path", s.path, "error", err)
	}
	st.Headlines[entry.Country] = Record{Headline: entry.Headline, Timestamp: entry.Timestamp}
	st.History = append([]headline.Entry{entry}, st.History...)
	if s.historyLimit > 0 && len(st.History) > s.historyLimit {
		st.History = st.History[:s.historyLimit]
	}
	return s.write(st)
}

// Recent implements headline.Store.
func (s *Store) Recent(ctx context.Context, country string, limit int) ([]headline.Entry, error) {
	st, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := []headline.Entry{}
	for _, e := range st.History {
		if len(out) >= limit {
			break
		}
		if e.Country == country {
			out = append(out, e)
		}
	}
	return out, nil
}

// Close is a no-op; the file is not held open between operations.
func (s *Store) Close() error { return nil }

// read loads and decodes the document without locking. upgraded is true
// when the document was in an older schema. A missing document is an empty
// state. On error st is still a usable empty state; decode failures wrap
// headline.ErrCorruptState.
func (s *Store) read() (st *State, upgraded bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewState(), false, nil
		}
		return NewState(), false, fmt.Errorf("read document: %w", err)
	}

	st, upgraded, err = decode(data, s.now())
	if err != nil {
		return NewState(), false, fmt.Errorf("%w: %w", headline.ErrCorruptState, err)
	}
	return st, upgraded, nil
}

// write replaces the document via a temp file and rename.
func (s *Store) write(st *State) error {
	st.Version = CurrentVersion
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename has succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close document: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod document: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
