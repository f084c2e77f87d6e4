// Package server_test contains the unit tests for the server package.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ASHISH26940/headlines/internal/geo"
	"github.com/ASHISH26940/headlines/internal/headline"
	"github.com/ASHISH26940/headlines/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore is a headline.Store whose every call fails.
type failingStore struct{}

var errDown = errors.New("backend down")

func (failingStore) Current(context.Context, string) (headline.Entry, bool, error) {
	return headline.Entry{}, false, errDown
}
func (failingStore) Put(context.Context, headline.Entry) error { return errDown }
func (failingStore) Recent(context.Context, string, int) ([]headline.Entry, error) {
	return nil, errDown
}
func (failingStore) Close() error { return nil }

func newTestServer(t *testing.T, st headline.Store, opts Options) *Server {
	t.Helper()
	fixed := time.UnixMilli(1_700_000_000_000)
	svc := headline.NewService(st, headline.Options{Now: func() time.Time { return fixed }})
	return New(svc, geo.Static("France"), opts)
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestHeadlineHandlers(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})

	// --- Test Case 1: Get a headline that was never set ---
	rr := do(t, srv, http.MethodGet, "/api/headline/ZZ", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"country": "ZZ", "headline": nil, "timestamp": nil}, decode(t, rr))

	// --- Test Case 2: Set a headline ---
	rr = do(t, srv, http.MethodPost, "/api/headline/US", `{"headline":"  hello world  "}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"country": "US", "headline": "hello world", "timestamp": float64(1_700_000_000_000)}, decode(t, rr))

	// --- Test Case 3: Read it back ---
	rr = do(t, srv, http.MethodGet, "/api/headline/US", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello world", decode(t, rr)["headline"])

	// --- Test Case 4: Recent history, newest first ---
	do(t, srv, http.MethodPost, "/api/headline/US", `{"headline":"second"}`)
	rr = do(t, srv, http.MethodGet, "/api/recent/US", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var recent struct {
		Recent []headline.Entry `json:"recent"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &recent))
	require.Len(t, recent.Recent, 2)
	assert.Equal(t, "second", recent.Recent[0].Headline)
	assert.Equal(t, "hello world", recent.Recent[1].Headline)

	// --- Test Case 5: Recent for an unknown country is an empty array ---
	rr = do(t, srv, http.MethodGet, "/api/recent/ZZ", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recent":[]}`, rr.Body.String())
}

func TestSetHeadline_Validation(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})
	do(t, srv, http.MethodPost, "/api/headline/US", `{"headline":"keep me"}`)

	for name, body := range map[string]string{
		"missing":      `{}`,
		"null":         `{"headline":null}`,
		"number":       `{"headline":42}`,
		"empty":        `{"headline":""}`,
		"whitespace":   `{"headline":"   "}`,
		"invalid json": `{"headline":`,
	} {
		t.Run(name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/headline/US", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.NotEmpty(t, decode(t, rr)["error"])
		})
	}

	rr := do(t, srv, http.MethodGet, "/api/headline/US", "")
	assert.Equal(t, "keep me", decode(t, rr)["headline"])
}

func TestSetHeadline_BodyTooLarge(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})
	body := `{"headline":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	rr := do(t, srv, http.MethodPost, "/api/headline/US", body)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSetHeadline_Truncates(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})

	rr := do(t, srv, http.MethodPost, "/api/headline/US", `{"headline":"`+strings.Repeat("x", 1000)+`"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode(t, rr)["headline"], headline.DefaultMaxLength)
}

func TestStoreFailures(t *testing.T) {
	srv := newTestServer(t, failingStore{}, Options{})

	// Reads fail soft.
	rr := do(t, srv, http.MethodGet, "/api/headline/US", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, decode(t, rr)["headline"])

	rr = do(t, srv, http.MethodGet, "/api/recent/US", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"recent":[]}`, rr.Body.String())

	// Writes fail loud, without leaking the cause.
	rr = do(t, srv, http.MethodPost, "/api/headline/US", `{"headline":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), errDown.Error())
}

func TestLocation(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})

	rr := do(t, srv, http.MethodGet, "/api/location", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"country":"France"}`, rr.Body.String())

	noGeo := New(headline.NewService(store.NewMemory(0), headline.Options{}), nil, Options{})
	rr = do(t, noGeo, http.MethodGet, "/api/location", "")
	assert.JSONEq(t, `{"country":"Unknown"}`, rr.Body.String())
}

func TestCountryPathIsDecoded(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})

	do(t, srv, http.MethodPost, "/api/headline/United%20States", `{"headline":"hi"}`)
	rr := do(t, srv, http.MethodGet, "/api/headline/United%20States", "")
	assert.Equal(t, "United States", decode(t, rr)["country"])
	assert.Equal(t, "hi", decode(t, rr)["headline"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})
	rr := do(t, srv, http.MethodDelete, "/api/headline/US", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{})

	rr := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>headlines</h1>"), 0o644))
	srv := newTestServer(t, store.NewMemory(0), Options{StaticDir: dir})

	rr := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<h1>headlines</h1>")

	// API routes still win over the file server.
	rr = do(t, srv, http.MethodGet, "/api/headline/US", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
}

func TestStaticDirMissing(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{StaticDir: filepath.Join(t.TempDir(), "nope")})
	rr := do(t, srv, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

type fakeMetrics struct{}

func (fakeMetrics) DisplayMetrics(http.ResponseWriter, *http.Request) (interface{}, error) {
	return map[string]int{"gauges": 0}, nil
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, store.NewMemory(0), Options{Metrics: fakeMetrics{}})
	rr := do(t, srv, http.MethodGet, "/debug/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"gauges":0}`, rr.Body.String())

	without := newTestServer(t, store.NewMemory(0), Options{})
	rr = do(t, without, http.MethodGet, "/debug/metrics", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
