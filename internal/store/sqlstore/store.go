// Package sqlstore keeps headlines in SQLite. The schema is managed by goose
// migrations embedded in the binary.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/hashicorp/go-hclog"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Options configures a Store.
type Options struct {
	// HistoryLimit caps each country's history. Zero keeps everything.
	HistoryLimit int
	Logger       hclog.Logger
}

// Store is a SQLite-backed headline store.
type Store struct {
	db           *sql.DB
	historyLimit int
	logger       hclog.Logger
}

// Open opens the database at path and applies pending migrations.
func Open(ctx context.Context, path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("sqlstore")

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, historyLimit: opts.HistoryLimit, logger: logger}, nil
}

func migrate(ctx context.Context, db *sql.DB, logger hclog.Logger) error {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		logger.Info("applied migration", "source", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

// Current implements headline.Store.
func (s *Store) Current(ctx context.Context, country string) (headline.Entry, bool, error) {
	e := headline.Entry{Country: country}
	err := s.db.QueryRowContext(ctx,
		`SELECT headline, timestamp FROM headlines WHERE country = ?`, country,
	).Scan(&e.Headline, &e.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return headline.Entry{}, false, nil
	}
	if err != nil {
		return headline.Entry{}, false, err
	}
	return e, true, nil
}

// Put implements headline.Store in a single transaction.
func (s *Store) Put(ctx context.Context, entry headline.Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO headlines (country, headline, timestamp) VALUES (?, ?, ?)
ON CONFLICT(country) DO UPDATE SET headline = excluded.headline, timestamp = excluded.timestamp`,
		entry.Country, entry.Headline, entry.Timestamp); err != nil {
		return fmt.Errorf("upsert headline: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO history (country, headline, timestamp) VALUES (?, ?, ?)`,
		entry.Country, entry.Headline, entry.Timestamp); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if s.historyLimit > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM history WHERE country = ? AND id NOT IN (
    SELECT id FROM history WHERE country = ? ORDER BY id DESC LIMIT ?
)`, entry.Country, entry.Country, s.historyLimit); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}
	return tx.Commit()
}

// Recent implements headline.Store.
func (s *Store) Recent(ctx context.Context, country string, limit int) ([]headline.Entry, error) {
	if limit <= 0 {
		return []headline.Entry{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT country, headline, timestamp FROM history WHERE country = ? ORDER BY id DESC LIMIT ?`,
		country, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []headline.Entry{}
	for rows.Next() {
		var e headline.Entry
		if err := rows.Scan(&e.Country, &e.Headline, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
