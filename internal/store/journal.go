package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/ASHISH26940/headlines/internal/persistence"
	"github.com/hashicorp/go-hclog"
)

const opPut = "PUT"

// record is a single line of the journal.
type record struct {
	Op    string         `json:"op"`
	Entry headline.Entry `json:"entry"`
}

// Journal treats an append-only log of entries as the source of truth. The
// log is replayed into a Memory index on open; each Put is written to the log
// before it becomes visible, so current and history can never diverge.
type Journal struct {
	mu     sync.Mutex
	log    *persistence.Log
	index  *Memory
	logger hclog.Logger
}

// OpenJournal replays the log at path and opens it for appending.
func OpenJournal(path string, historyLimit int, logger hclog.Logger) (*Journal, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("journal")

	index := NewMemory(historyLimit)
	replayed, skipped := 0, 0
	err := persistence.Replay(path, func(line []byte) error {
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			logger.Warn("skipping unreadable journal record", "error", fmt.Errorf("%w: %w", headline.ErrCorruptState, err))
			return nil
		}
		switch rec.Op {
		case opPut:
			index.Apply(rec.Entry)
			replayed++
		default:
			skipped++
			logger.Warn("skipping unrecognized journal op", "op", rec.Op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}
	logger.Info("journal replay complete", "path", path, "records", replayed, "skipped", skipped)

	l, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	if n := l.Dropped(); n > 0 {
		logger.Warn("truncated partial journal record", "path", path, "bytes", n)
	}
	return &Journal{log: l, index: index, logger: logger}, nil
}

// Current implements headline.Store.
func (j *Journal) Current(ctx context.Context, country string) (headline.Entry, bool, error) {
	return j.index.Current(ctx, country)
}

// Put appends entry to the log and then applies it to the index.
func (j *Journal) Put(ctx context.Context, entry headline.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.log.Append(record{Op: opPut, Entry: entry}); err != nil {
		return err
	}
	j.index.Apply(entry)
	return nil
}

// Recent implements headline.Store.
func (j *Journal) Recent(ctx context.Context, country string, limit int) ([]headline.Entry, error) {
	return j.index.Recent(ctx, country, limit)
}

// Close closes the log.
func (j *Journal) Close() error {
	return j.log.Close()
}
