package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/hashicorp/go-hclog"
)

const (
	// HeadlinesKey is the hash holding each country's current entry.
	HeadlinesKey = "headlines"
	// HistoryPrefix namespaces the per-country history lists.
	HistoryPrefix = "history:"
)

// ErrNotConfigured is returned by New when the endpoint or token is empty.
var ErrNotConfigured = errors.New("remote store endpoint and token are required")

// HistoryKey returns the list key holding country's history.
func HistoryKey(country string) string {
	return HistoryPrefix + country
}

// Options configures a Store.
type Options struct {
	// HistoryLimit trims each country's list after every push. Zero keeps
	// the list unbounded.
	HistoryLimit int
	// Transactional sends the writes of one Put as a single multi-exec call.
	// Otherwise they go out as one pipeline, which is not atomic.
	Transactional bool
	HTTPClient    *http.Client
	Logger        hclog.Logger
}

// Store keeps current entries in a hash and history in one list per country.
type Store struct {
	client        *Client
	historyLimit  int
	transactional bool
	logger        hclog.Logger
}

// New returns a Store for the remote endpoint.
func New(endpoint, token string, opts Options) (*Store, error) {
	if endpoint == "" || token == "" {
		return nil, ErrNotConfigured
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Store{
		client:        NewClient(endpoint, token, opts.HTTPClient),
		historyLimit:  opts.HistoryLimit,
		transactional: opts.Transactional,
		logger:        logger.Named("remotestore"),
	}, nil
}

// Current implements headline.Store with HGET.
func (s *Store) Current(ctx context.Context, country string) (headline.Entry, bool, error) {
	reply, err := s.client.Do(ctx, "HGET", HeadlinesKey, country)
	if err != nil {
		return headline.Entry{}, false, err
	}
	raw, ok, err := reply.String()
	if err != nil || !ok {
		return headline.Entry{}, false, err
	}
	var e headline.Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return headline.Entry{}, false, fmt.Errorf("%w: %w", headline.ErrCorruptState, err)
	}
	e.Country = country
	return e, true, nil
}

// Put implements headline.Store with HSET and LPUSH, plus LTRIM when the
// history is bounded.
func (s *Store) Put(ctx context.Context, entry headline.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	value := string(data)
	key := HistoryKey(entry.Country)

	cmds := []Command{
		{"HSET", HeadlinesKey, entry.Country, value},
		{"LPUSH", key, value},
	}
	if s.historyLimit > 0 {
		cmds = append(cmds, Command{"LTRIM", key, "0", strconv.Itoa(s.historyLimit - 1)})
	}

	if s.transactional {
		_, err := s.client.Transaction(ctx, cmds...)
		return err
	}

	_, err = s.client.Pipeline(ctx, cmds...)
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) && pipeErr.Index > 0 {
		s.logger.Warn("partial write: current and history may diverge",
			"country", entry.Country, "failed", pipeErr.Verb, "error", err)
	}
	return err
}

// Recent implements headline.Store with LRANGE. Entries that fail to decode
// are skipped.
func (s *Store) Recent(ctx context.Context, country string, limit int) ([]headline.Entry, error) {
	if limit <= 0 {
		return []headline.Entry{}, nil
	}
	reply, err := s.client.Do(ctx, "LRANGE", HistoryKey(country), "0", strconv.Itoa(limit-1))
	if err != nil {
		return nil, err
	}
	items, err := reply.Strings()
	if err != nil {
		return nil, err
	}

	out := make([]headline.Entry, 0, len(items))
	for _, item := range items {
		var e headline.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			s.logger.Warn("skipping unreadable history item", "country", country,
				"error", fmt.Errorf("%w: %w", headline.ErrCorruptState, err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close releases idle connections.
func (s *Store) Close() error {
	s.client.http.CloseIdleConnections()
	return nil
}
