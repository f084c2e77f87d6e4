// Package storetest holds the behavioural checks every headline.Store must pass.
package storetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory opens a fresh, empty store for one subtest.
type Factory func(t *testing.T) headline.Store

// Run exercises the Store contract against stores built by open.
func Run(t *testing.T, open Factory) {
	t.Run("absent country", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, ok, err := s.Current(ctx, "ZZ")
		require.NoError(t, err)
		assert.False(t, ok)

		recent, err := s.Recent(ctx, "ZZ", 10)
		require.NoError(t, err)
		assert.Empty(t, recent)
	})

	t.Run("put then current", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		want := headline.Entry{Country: "US", Headline: "hello", Timestamp: 1000}

		require.NoError(t, s.Put(ctx, want))

		got, ok, err := s.Current(ctx, "US")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("latest write wins", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, headline.Entry{Country: "FR", Headline: "a", Timestamp: 1}))
		require.NoError(t, s.Put(ctx, headline.Entry{Country: "FR", Headline: "b", Timestamp: 2}))

		got, ok, err := s.Current(ctx, "FR")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "b", got.Headline)

		recent, err := s.Recent(ctx, "FR", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, headlines(recent))
	})

	t.Run("recent is bounded and newest first", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		for i := 1; i <= 15; i++ {
			require.NoError(t, s.Put(ctx, headline.Entry{Country: "DE", Headline: fmt.Sprintf("h%d", i), Timestamp: int64(i)}))
		}

		recent, err := s.Recent(ctx, "DE", 10)
		require.NoError(t, err)
		require.Len(t, recent, 10)
		for i, e := range recent {
			assert.Equal(t, fmt.Sprintf("h%d", 15-i), e.Headline)
			assert.Equal(t, "DE", e.Country)
		}
	})

	t.Run("countries are isolated", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		fr := headline.Entry{Country: "FR", Headline: "bonjour", Timestamp: 1}
		require.NoError(t, s.Put(ctx, fr))
		require.NoError(t, s.Put(ctx, headline.Entry{Country: "US", Headline: "hello", Timestamp: 2}))
		require.NoError(t, s.Put(ctx, headline.Entry{Country: "US", Headline: "howdy", Timestamp: 3}))

		got, ok, err := s.Current(ctx, "FR")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, fr, got)

		recent, err := s.Recent(ctx, "FR", 10)
		require.NoError(t, err)
		assert.Equal(t, []headline.Entry{fr}, recent)
	})

	t.Run("country keys are case sensitive", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, headline.Entry{Country: "us", Headline: "lower", Timestamp: 1}))

		_, ok, err := s.Current(ctx, "US")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("non-positive recent limit is empty", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		require.NoError(t, s.Put(ctx, headline.Entry{Country: "US", Headline: "x", Timestamp: 1}))

		for _, limit := range []int{0, -1} {
			recent, err := s.Recent(ctx, "US", limit)
			require.NoError(t, err)
			assert.Empty(t, recent, "limit %d", limit)
		}
	})
}

func headlines(entries []headline.Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Headline)
	}
	return out
}
