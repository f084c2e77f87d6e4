package filestore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ASHISH26940/headlines/internal/headline"
)

// CurrentVersion is the schema version written by Save.
const CurrentVersion = 2

// Record is the current headline kept for one country.
type Record struct {
	Headline  string `json:"headline"`
	Timestamp int64  `json:"timestamp"`
}

// State is the whole on-disk document.
type State struct {
	Version   int               `json:"version"`
	Headlines map[string]Record `json:"headlines"`
	History   []headline.Entry  `json:"history"` // newest first
}

// NewState returns an empty current-version document.
func NewState() *State {
	return &State{
		Version:   CurrentVersion,
		Headlines: map[string]Record{},
		History:   []headline.Entry{},
	}
}

// decoder turns a raw document of one schema version into the current shape.
type decoder func(data []byte, now time.Time) (*State, error)

// Schema versions:
//
//	0  flat {"<country>": "<headline>"} map, no timestamps or history
//	1  {"headlines": {...}, "history": [...]} without a version tag
//	2  version 1 plus "version": 2
var decoders = map[int]decoder{
	0: decodeLegacy,
	1: decodeState,
	2: decodeState,
}

// decode parses data, dispatching on its schema version. upgraded reports
// whether the result differs in shape from what is on disk.
func decode(data []byte, now time.Time) (st *State, upgraded bool, err error) {
	version, err := detectVersion(data)
	if err != nil {
		return nil, false, err
	}
	dec, ok := decoders[version]
	if !ok {
		return nil, false, fmt.Errorf("unsupported document version %d", version)
	}
	st, err = dec(data, now)
	if err != nil {
		return nil, false, err
	}
	st.Version = CurrentVersion
	return st, version != CurrentVersion, nil
}

// detectVersion reads the explicit version tag. Documents written before the
// tag existed are told apart by the presence of the headlines key.
func detectVersion(data []byte) (int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return 0, err
	}
	if raw, ok := top["version"]; ok {
		var v int
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
	}
	if _, ok := top["headlines"]; ok {
		return 1, nil
	}
	return 0, nil
}

func decodeState(data []byte, _ time.Time) (*State, error) {
	st := NewState()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, err
	}
	if st.Headlines == nil {
		st.Headlines = map[string]Record{}
	}
	if st.History == nil {
		st.History = []headline.Entry{}
	}
	return st, nil
}

// decodeLegacy converts a flat country -> headline map. Every string value
// becomes a current record and a history entry stamped with now; other values
// are dropped. Document order is preserved in history.
func decodeLegacy(data []byte, now time.Time) (*State, error) {
	st := NewState()
	ts := headline.Millis(now)

	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		country, _ := tok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		text, ok := value.(string)
		if !ok {
			continue
		}
		st.Headlines[country] = Record{Headline: text, Timestamp: ts}
		st.History = append(st.History, headline.Entry{Country: country, Headline: text, Timestamp: ts})
	}
	return st, nil
}
