package headline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultMaxLength is the headline length cap, in characters.
	DefaultMaxLength = 500
	// DefaultRecentLimit is the size of the window returned by Recent.
	DefaultRecentLimit = 10
	// DefaultTimeout bounds a single store call.
	DefaultTimeout = 5 * time.Second
)

// Options configures a Service. Zero values fall back to the defaults above.
type Options struct {
	MaxLength   int
	RecentLimit int
	Timeout     time.Duration
	Logger      hclog.Logger
	Now         func() time.Time
}

// Service implements get/set/recent on top of a Store. Reads never fail:
// backend errors are logged and reported as absence. Writes surface backend
// errors as ErrStoreUnavailable.
type Service struct {
	store       Store
	maxLength   int
	recentLimit int
	timeout     time.Duration
	logger      hclog.Logger
	now         func() time.Time
	tracer      trace.Tracer
}

// NewService creates a Service backed by store.
func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:       store,
		maxLength:   opts.MaxLength,
		recentLimit: opts.RecentLimit,
		timeout:     opts.Timeout,
		logger:      opts.Logger,
		now:         opts.Now,
		tracer:      otel.Tracer("github.com/ASHISH26940/headlines/internal/headline"),
	}
	if s.maxLength <= 0 {
		s.maxLength = DefaultMaxLength
	}
	if s.recentLimit <= 0 {
		s.recentLimit = DefaultRecentLimit
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Get returns the current headline for country, or nulls when none exists.
func (s *Service) Get(ctx context.Context, country string) Current {
	ctx, span := s.tracer.Start(ctx, "headline.Get", trace.WithAttributes(attribute.String("country", country)))
	defer span.End()
	defer metrics.MeasureSince([]string{"headline", "get"}, time.Now())
	metrics.IncrCounter([]string{"headline", "get"}, 1)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entry, ok, err := s.store.Current(ctx, country)
	if err != nil {
		s.readFailed(span, "get", country, err)
		return Current{Country: country}
	}
	if !ok {
		return Current{Country: country}
	}
	entry.Country = country
	return CurrentOf(entry)
}

// Set validates, normalises, stamps and persists a headline for country.
func (s *Service) Set(ctx context.Context, country, raw string) (Entry, error) {
	ctx, span := s.tracer.Start(ctx, "headline.Set", trace.WithAttributes(attribute.String("country", country)))
	defer span.End()
	defer metrics.MeasureSince([]string{"headline", "set"}, time.Now())
	metrics.IncrCounter([]string{"headline", "set"}, 1)

	text, err := Normalize(raw, s.maxLength)
	if err != nil {
		metrics.IncrCounter([]string{"headline", "set", "invalid"}, 1)
		span.SetStatus(codes.Error, err.Error())
		return Entry{}, err
	}

	entry := Entry{
		Country:   country,
		Headline:  text,
		Timestamp: Millis(s.now()),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.store.Put(ctx, entry); err != nil {
		metrics.IncrCounter([]string{"headline", "store", "error"}, 1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "store failure")
		s.logger.Error("failed to store headline", "country", country, "error", err)
		return Entry{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.logger.Debug("headline stored", "country", country, "timestamp", entry.Timestamp)
	return entry, nil
}

// Recent returns up to limit entries for country, newest first. A limit of
// zero or less uses the configured default. The result is never nil.
func (s *Service) Recent(ctx context.Context, country string, limit int) []Entry {
	ctx, span := s.tracer.Start(ctx, "headline.Recent", trace.WithAttributes(attribute.String("country", country)))
	defer span.End()
	defer metrics.MeasureSince([]string{"headline", "recent"}, time.Now())
	metrics.IncrCounter([]string{"headline", "recent"}, 1)

	if limit <= 0 {
		limit = s.recentLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	entries, err := s.store.Recent(ctx, country, limit)
	if err != nil {
		s.readFailed(span, "recent", country, err)
		return []Entry{}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries
}

func (s *Service) readFailed(span trace.Span, op, country string, err error) {
	metrics.IncrCounter([]string{"headline", "store", "error"}, 1)
	span.RecordError(err)
	s.logger.Warn("headline read degraded to empty result", "op", op, "country", country, "error", err)
}

// Normalize trims surrounding whitespace and caps the result at max
// characters. An empty result is ErrInvalidInput.
func Normalize(raw string, max int) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", ErrInvalidInput
	}
	if max > 0 {
		runes := []rune(text)
		if len(runes) > max {
			text = string(runes[:max])
		}
	}
	return text, nil
}
