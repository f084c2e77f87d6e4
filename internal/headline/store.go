package headline

import "context"

// Store is the persistence contract every backend implements.
type Store interface {
	// Current returns the latest entry for country. ok is false when the
	// country has never been written.
	Current(ctx context.Context, country string) (entry Entry, ok bool, err error)

	// Put replaces the country's current entry and appends it to history.
	Put(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries for country, newest first.
	Recent(ctx context.Context, country string, limit int) ([]Entry, error)

	Close() error
}
