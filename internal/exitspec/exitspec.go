// Package exitspec loads the static exit-code diagnosis table and serves lookups.
//
// The table is read once at process start. A missing or malformed source is a
// startup-fatal condition: no job classification can proceed without it.
package exitspec

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fallback designators. The table must contain exactly one entry of each,
// used when a queried exit code has no exact match.
const (
	FallbackPositive = "positive"
	FallbackNegative = "negative"
)

// Entry is the diagnosis metadata for one exit code.
type Entry struct {
	Code        int      `yaml:"code" json:"code"`
	Phrase      string   `yaml:"phrase" json:"phrase"`
	Category    string   `yaml:"category" json:"category"`
	Reason      string   `yaml:"reason" json:"reason"`
	Repro       []string `yaml:"repro,omitempty" json:"repro,omitempty"`
	Solution    []string `yaml:"solution,omitempty" json:"solution,omitempty"`
	FallbackFor string   `yaml:"fallbackFor,omitempty" json:"-"`
}

// Table is the read-only exit-spec lookup table. Construct with Load and
// pass by reference to consumers; it has no mutable state after load.
type Table struct {
	entries  map[int]Entry
	positive Entry
	negative Entry
}

type tableFile struct {
	Specs []Entry `yaml:"specs"`
}

// Load reads and validates the exit-spec table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read exit spec table: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from raw YAML content.
func Parse(data []byte) (*Table, error) {
	var file tableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse exit spec table: %w", err)
	}
	if len(file.Specs) == 0 {
		return nil, fmt.Errorf("exit spec table is empty")
	}

	t := &Table{entries: make(map[int]Entry, len(file.Specs))}
	var havePositive, haveNegative bool
	for _, e := range file.Specs {
		if _, dup := t.entries[e.Code]; dup {
			return nil, fmt.Errorf("duplicate exit code %d in exit spec table", e.Code)
		}
		t.entries[e.Code] = e

		switch e.FallbackFor {
		case "":
		case FallbackPositive:
			if havePositive {
				return nil, fmt.Errorf("multiple positive fallback entries in exit spec table")
			}
			t.positive = e
			havePositive = true
		case FallbackNegative:
			if haveNegative {
				return nil, fmt.Errorf("multiple negative fallback entries in exit spec table")
			}
			t.negative = e
			haveNegative = true
		default:
			return nil, fmt.Errorf("exit code %d: unknown fallbackFor value %q", e.Code, e.FallbackFor)
		}
	}
	if !havePositive || !haveNegative {
		return nil, fmt.Errorf("exit spec table must define one positive and one negative fallback entry")
	}
	return t, nil
}

// Lookup returns the entry for code, or the positive/negative fallback entry
// with its Code field stamped to the queried value when no exact match exists.
// A nil code yields nil: no exit code means no diagnosis.
func (t *Table) Lookup(code *int) *Entry {
	if code == nil {
		return nil
	}
	if e, ok := t.entries[*code]; ok {
		return &e
	}
	e := t.negative
	if *code > 0 {
		e = t.positive
	}
	e.Code = *code
	return &e
}

// Len reports the number of entries loaded, fallbacks included.
func (t *Table) Len() int {
	return len(t.entries)
}
