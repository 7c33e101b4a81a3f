// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// RawEntry is one undecoded record keyed by the agent's record id.
type RawEntry struct {
	Key     string
	Payload json.RawMessage
}

// RawRecords holds a snapshot's records in the order the agent sent them.
// A map would lose that order, and the parser's output depends on it.
type RawRecords []RawEntry

// decodeRecords unpacks the papers field. The agent sends either a JSON
// object of records or a string containing that object; null, an empty
// string, and an empty object all yield no records. A repeated key keeps
// its first position and takes the later payload.
func decodeRecords(raw json.RawMessage) (RawRecords, error) {
	data := bytes.TrimSpace(raw)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("unquoting papers string: %w", err)
		}
		inner = strings.TrimSpace(inner)
		if inner == "" || inner == "null" {
			return nil, nil
		}
		data = []byte(inner)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading papers object: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("papers is %v, want an object", tok)
	}

	var records RawRecords
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading record key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("record key is %v, want a string", tok)
		}

		var payload json.RawMessage
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("reading record %q: %w", key, err)
		}

		if i, seen := index[key]; seen {
			records[i].Payload = payload
			continue
		}
		index[key] = len(records)
		records = append(records, RawEntry{Key: key, Payload: payload})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("closing papers object: %w", err)
	}
	return records, nil
}
