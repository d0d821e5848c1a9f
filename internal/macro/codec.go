package macro

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultSlots is the number of template slots in a table.
const DefaultSlots = 5

// ErrCorruptStore is returned when a persisted table cannot be decoded.
var ErrCorruptStore = errors.New("macro: corrupt template store")

// Table holds the templates of every slot. A nil entry is an unset slot;
// a non-nil empty entry is a slot recorded with no actions.
type Table [][]Record

// NewTable returns a table of n unset slots.
func NewTable(n int) Table {
	if n <= 0 {
		n = DefaultSlots
	}
	return make(Table, n)
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for i, recs := range t {
		if recs == nil {
			continue
		}
		out[i] = make([]Record, len(recs))
		for j, r := range recs {
			out[i][j] = Record{Op: r.Op, Args: append([]json.RawMessage(nil), r.Args...)}
		}
	}
	return out
}

// Layout is the separator style of a serialized table.
type Layout int

const (
	// Compact separates items with a bare comma.
	Compact Layout = iota
	// Spaced follows every comma and colon with a space, the layout
	// written by Python's json.dumps.
	Spaced
)

// DetectLayout reports the layout of a stored table. Input without any
// separator outside strings is Compact.
func DetectLayout(data []byte) Layout {
	inString, escaped := false, false
	for i, b := range data {
		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case !inString && (b == ',' || b == ':'):
			if i+1 < len(data) && data[i+1] == ' ' {
				return Spaced
			}
			return Compact
		}
	}
	return Compact
}

// Encode serializes the table as a compact JSON array.
func (t Table) Encode() ([]byte, error) {
	return t.EncodeLayout(Compact)
}

// EncodeLayout serializes the table using layout l. Argument literals are
// kept as decoded, so a table saved in the layout it was read in keeps the
// bytes of every slot that was not re-recorded.
func (t Table) EncodeLayout(l Layout) ([]byte, error) {
	data, err := marshal([][]Record(t))
	if err != nil {
		return nil, fmt.Errorf("encode template table: %w", err)
	}
	if l == Spaced {
		data = spaceSeparators(data)
	}
	return data, nil
}

// spaceSeparators inserts a space after every comma and colon of compact
// JSON that is not inside a string.
func spaceSeparators(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/4)
	inString, escaped := false, false
	for _, b := range data {
		out = append(out, b)
		switch {
		case escaped:
			escaped = false
		case inString && b == '\\':
			escaped = true
		case b == '"':
			inString = !inString
		case !inString && (b == ',' || b == ':'):
			out = append(out, ' ')
		}
	}
	return out
}

// Decode parses a stored table of n slots. Empty input yields n unset
// slots. Anything that is not an array of exactly n entries, each null or
// an array of records, is ErrCorruptStore.
func Decode(data []byte, n int) (Table, error) {
	if n <= 0 {
		n = DefaultSlots
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewTable(n), nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore, err)
	}
	if entries == nil {
		return nil, fmt.Errorf("%w: table is null", ErrCorruptStore)
	}
	if len(entries) != n {
		return nil, fmt.Errorf("%w: expected %d slots, got %d", ErrCorruptStore, n, len(entries))
	}

	t := make(Table, n)
	for i, raw := range entries {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("%w: slot %d: %w", ErrCorruptStore, i, err)
		}
		if recs == nil {
			recs = []Record{}
		}
		t[i] = recs
	}
	return t, nil
}
