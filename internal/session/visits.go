package session

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultMostVisited is reported when no path was visited
const DefaultMostVisited = "/"

// PathCount is one entry of the visit counter
type PathCount struct {
	Path  string
	Count int
}

// VisitCounter counts visits per path and remembers the order in which paths
// were first seen. Serialized as a JSON object whose key order is that order.
type VisitCounter struct {
	entries []PathCount
	index   map[string]int
}

func NewVisitCounter() *VisitCounter {
	return &VisitCounter{index: make(map[string]int)}
}

// Increment adds one visit to path
func (v *VisitCounter) Increment(path string) {
	if i, ok := v.index[path]; ok {
		v.entries[i].Count++
		return
	}
	v.index[path] = len(v.entries)
	v.entries = append(v.entries, PathCount{Path: path, Count: 1})
}

func (v *VisitCounter) Count(path string) int {
	if i, ok := v.index[path]; ok {
		return v.entries[i].Count
	}
	return 0
}

func (v *VisitCounter) Len() int {
	return len(v.entries)
}

// Entries returns a copy of the counts in insertion order
func (v *VisitCounter) Entries() []PathCount {
	out := make([]PathCount, len(v.entries))
	copy(out, v.entries)
	return out
}

// MostVisited scans in insertion order and keeps the first path whose count is
// strictly greater than everything seen before it.
func (v *VisitCounter) MostVisited() string {
	best := DefaultMostVisited
	bestCount := 0
	for _, e := range v.entries {
		if e.Count > bestCount {
			best = e.Path
			bestCount = e.Count
		}
	}
	return best
}

func (v *VisitCounter) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range v.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.Path)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		fmt.Fprintf(&buf, "%d", e.Count)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the key order of the document
func (v *VisitCounter) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("visited paths: expected object, got %v", tok)
	}

	entries := make([]PathCount, 0)
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		path, ok := tok.(string)
		if !ok {
			return fmt.Errorf("visited paths: expected key, got %v", tok)
		}
		var count int
		if err := dec.Decode(&count); err != nil {
			return fmt.Errorf("visited paths: count for %q: %w", path, err)
		}
		if count < 0 {
			count = 0
		}
		if i, dup := index[path]; dup {
			entries[i].Count = count
			continue
		}
		index[path] = len(entries)
		entries = append(entries, PathCount{Path: path, Count: count})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	v.entries = entries
	v.index = index
	return nil
}
