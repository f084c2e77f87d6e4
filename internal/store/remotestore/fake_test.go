package remotestore

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeServer is an in-memory stand-in for the remote store's HTTP API.
type fakeServer struct {
	mu     sync.Mutex
	token  string
	hashes map[string]map[string]string
	lists  map[string][]string
	calls  []string
	paths  []string
	failOn string // verb that returns an error
}

func newFakeServer(t *testing.T, token string) (*fakeServer, *httptest.Server) {
	t.Helper()
	f := &fakeServer{
		token:  token,
		hashes: map[string]map[string]string{},
		lists:  map[string][]string{},
	}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)

	if r.URL.Path == "/pipeline" {
		var cmds [][]string
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		replies := make([]map[string]any, 0, len(cmds))
		for _, cmd := range cmds {
			if cmd[0] == f.failOn {
				replies = append(replies, map[string]any{"error": "ERR injected failure"})
				continue
			}
			replies = append(replies, f.exec(cmd))
		}
		_ = json.NewEncoder(w).Encode(replies)
		return
	}

	if r.URL.Path == "/multi-exec" {
		var cmds [][]string
		if err := json.NewDecoder(r.Body).Decode(&cmds); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, cmd := range cmds {
			if cmd[0] == f.failOn {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "EXECABORT"})
				return
			}
		}
		replies := make([]map[string]any, 0, len(cmds))
		for _, cmd := range cmds {
			replies = append(replies, f.exec(cmd))
		}
		_ = json.NewEncoder(w).Encode(replies)
		return
	}

	var cmd []string
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil || len(cmd) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if cmd[0] == f.failOn {
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "ERR injected failure"})
		return
	}
	_ = json.NewEncoder(w).Encode(f.exec(cmd))
}

func (f *fakeServer) exec(cmd []string) map[string]any {
	f.calls = append(f.calls, cmd[0])
	switch strings.ToUpper(cmd[0]) {
	case "HGET":
		if v, ok := f.hashes[cmd[1]][cmd[2]]; ok {
			return map[string]any{"result": v}
		}
		return map[string]any{"result": nil}
	case "HSET":
		if f.hashes[cmd[1]] == nil {
			f.hashes[cmd[1]] = map[string]string{}
		}
		f.hashes[cmd[1]][cmd[2]] = cmd[3]
		return map[string]any{"result": 1}
	case "LPUSH":
		f.lists[cmd[1]] = append([]string{cmd[2]}, f.lists[cmd[1]]...)
		return map[string]any{"result": len(f.lists[cmd[1]])}
	case "LRANGE":
		return map[string]any{"result": slice(f.lists[cmd[1]], cmd[2], cmd[3])}
	case "LTRIM":
		f.lists[cmd[1]] = slice(f.lists[cmd[1]], cmd[2], cmd[3])
		return map[string]any{"result": "OK"}
	default:
		return map[string]any{"error": "ERR unknown command"}
	}
}

// slice applies inclusive start/stop indexes the way list range commands do.
func slice(list []string, startArg, stopArg string) []string {
	start, _ := strconv.Atoi(startArg)
	stop, _ := strconv.Atoi(stopArg)
	if stop < 0 {
		stop = len(list) + stop
	}
	if stop >= len(list) {
		stop = len(list) - 1
	}
	if start > stop || start >= len(list) {
		return []string{}
	}
	return append([]string{}, list[start:stop+1]...)
}

func (f *fakeServer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (f *fakeServer) listLen(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[key])
}

func (f *fakeServer) called(verb string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == verb {
			return true
		}
	}
	return false
}

func (f *fakeServer) requests(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.paths {
		if p == path {
			n++
		}
	}
	return n
}

func (f *fakeServer) hashValue(key, field string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.hashes[key][field]
	return v, ok
}
