// Package headline holds the per-country headline model and the service that
// reads and writes it through a pluggable Store.
package headline

import "time"

// Entry is a single headline written for a country. Entries are immutable
// once created; Timestamp is milliseconds since the Unix epoch and is always
// set by the server at write time.
type Entry struct {
	Country   string `json:"country"`
	Headline  string `json:"headline"`
	Timestamp int64  `json:"timestamp"`
}

// Current is the read-path view of a country's headline. Headline and
// Timestamp are nil when nothing has been written for the country yet.
type Current struct {
	Country   string  `json:"country"`
	Headline  *string `json:"headline"`
	Timestamp *int64  `json:"timestamp"`
}

// CurrentOf builds the read view for an entry.
func CurrentOf(e Entry) Current {
	h, ts := e.Headline, e.Timestamp
	return Current{Country: e.Country, Headline: &h, Timestamp: &ts}
}

// Millis converts t to the millisecond timestamp stored on entries.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
