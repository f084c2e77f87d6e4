package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/ASHISH26940/headlines/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "headlines.json"), opts)
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) headline.Store {
		return newTestStore(t, Options{})
	})
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t, Options{})

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Headlines)
	assert.Empty(t, st.History)
	assert.NoFileExists(t, s.Path())
}

func TestStore_LoadCorruptFileIsEmpty(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st.Headlines)
	assert.Empty(t, st.History)
}

func TestStore_LegacyMigration(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	s := newTestStore(t, Options{Now: func() time.Time { return now }})
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"US": "old headline", "FR": "ancien", "XX": 42}`), 0o644))

	ctx := context.Background()
	first, err := s.Load(ctx)
	require.NoError(t, err)

	assert.Equal(t, CurrentVersion, first.Version)
	assert.Equal(t, Record{Headline: "old headline", Timestamp: now.UnixMilli()}, first.Headlines["US"])
	assert.NotContains(t, first.Headlines, "XX")
	require.Len(t, first.History, 2)
	assert.Equal(t, headline.Entry{Country: "US", Headline: "old headline", Timestamp: now.UnixMilli()}, first.History[0])
	assert.Equal(t, "FR", first.History[1].Country)

	// A later load must not re-stamp already migrated data.
	later := now.Add(time.Hour)
	s.now = func() time.Time { return later }
	second, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Headlines["US"], second.Headlines["US"])
	assert.Equal(t, first.History, second.History)
}

func TestStore_UnversionedDocumentIsUpgraded(t *testing.T) {
	s := newTestStore(t, Options{})
	doc := `{"headlines":{"US":{"headline":"hi","timestamp":5}},"history":[{"country":"US","headline":"hi","timestamp":5}]}`
	require.NoError(t, os.WriteFile(s.Path(), []byte(doc), 0o644))

	migrated, err := s.Migrate(context.Background())
	require.NoError(t, err)
	assert.True(t, migrated)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var onDisk State
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, CurrentVersion, onDisk.Version)
	assert.Equal(t, Record{Headline: "hi", Timestamp: 5}, onDisk.Headlines["US"])

	migrated, err = s.Migrate(context.Background())
	require.NoError(t, err)
	assert.False(t, migrated)
}

func TestStore_MigrateCorruptDocumentFails(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))

	migrated, err := s.Migrate(context.Background())
	assert.ErrorIs(t, err, headline.ErrCorruptState)
	assert.False(t, migrated)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(raw))
}

func TestStore_PutReplacesCorruptDocument(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0o644))
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, headline.Entry{Country: "US", Headline: "fresh", Timestamp: 1}))
	got, ok, err := s.Current(ctx, "US")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Headline)
}

func TestStore_PutFailsWhenDocumentUnreadable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	s := newTestStore(t, Options{})
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, headline.Entry{Country: "FR", Headline: "bonjour", Timestamp: 1}))

	require.NoError(t, os.Chmod(s.Path(), 0o000))
	t.Cleanup(func() { _ = os.Chmod(s.Path(), 0o644) })

	err := s.Put(ctx, headline.Entry{Country: "US", Headline: "hello", Timestamp: 2})
	require.Error(t, err)

	require.NoError(t, os.Chmod(s.Path(), 0o644))
	fr, ok, err := s.Current(ctx, "FR")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bonjour", fr.Headline)
	_, ok, err = s.Current(ctx, "US")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutFailsWhenPathIsNotAFile(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.Mkdir(s.Path(), 0o755))
	keep := filepath.Join(s.Path(), "keep")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	err := s.Put(context.Background(), headline.Entry{Country: "US", Headline: "hello", Timestamp: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, headline.ErrCorruptState)
	assert.FileExists(t, keep)
}

func TestStore_UnknownVersionIsTreatedAsEmpty(t *testing.T) {
	s := newTestStore(t, Options{})
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version": 99, "headlines": {}}`), 0o644))

	_, ok, err := s.Current(context.Background(), "US")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_GlobalHistoryCap(t *testing.T) {
	s := newTestStore(t, Options{HistoryLimit: 5})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, s.Put(ctx, headline.Entry{Country: "US", Headline: fmt.Sprintf("us%d", i), Timestamp: int64(i)}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(ctx, headline.Entry{Country: "FR", Headline: fmt.Sprintf("fr%d", i), Timestamp: int64(10 + i)}))
	}

	st, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, st.History, 5)
	assert.Equal(t, "fr2", st.History[0].Headline)

	// US history shrank to what the global cap left over.
	recent, err := s.Recent(ctx, "US", 10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	// Current values are never evicted by the cap.
	cur, ok, err := s.Current(ctx, "US")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "us3", cur.Headline)
}

func TestStore_ConcurrentWritersDoNotLoseCountries(t *testing.T) {
	s := newTestStore(t, Options{HistoryLimit: -1})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			country := fmt.Sprintf("C%02d", i)
			assert.NoError(t, s.Put(ctx, headline.Entry{Country: country, Headline: "x", Timestamp: int64(i)}))
		}(i)
	}
	wg.Wait()

	st, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, st.Headlines, 20)
	assert.Len(t, st.History, 20)
}

func TestStore_SaveWritesFormattedJSON(t *testing.T) {
	s := newTestStore(t, Options{})
	st := NewState()
	st.Headlines["US"] = Record{Headline: "hi", Timestamp: 1}

	require.NoError(t, s.Save(context.Background(), st))

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"headlines\": {")

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}
