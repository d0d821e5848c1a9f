package macro

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one recorded operation: its name and raw positional arguments.
// It is serialized as the JSON array [op, args...].
type Record struct {
	Op   string
	Args []json.RawMessage
}

// NewRecord captures a as a record.
func NewRecord(a Action) (Record, error) {
	values := a.args()
	r := Record{Op: a.Op(), Args: make([]json.RawMessage, len(values))}
	for i, v := range values {
		raw, err := marshal(v)
		if err != nil {
			return Record{}, fmt.Errorf("encode %s argument %d: %w", r.Op, i, err)
		}
		r.Args[i] = raw
	}
	return r, nil
}

// Action decodes the record into its typed action.
func (r Record) Action() (Action, error) {
	e, ok := Lookup(r.Op)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, r.Op)
	}
	return e.Decode(r.Args)
}

// MarshalJSON encodes the record as [op, args...].
func (r Record) MarshalJSON() ([]byte, error) {
	items := make([]any, 0, len(r.Args)+1)
	items = append(items, r.Op)
	for _, a := range r.Args {
		items = append(items, a)
	}
	return marshal(items)
}

// UnmarshalJSON decodes [op, args...]. The operation name is not checked
// here; unknown names surface from Action.
func (r *Record) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	if len(items) == 0 {
		return fmt.Errorf("%w: empty record", ErrMalformedRecord)
	}
	var op string
	if err := json.Unmarshal(items[0], &op); err != nil {
		return fmt.Errorf("%w: operation name: %w", ErrMalformedRecord, err)
	}
	r.Op = op
	r.Args = items[1:]
	return nil
}

// String returns the record in its JSON form.
func (r Record) String() string {
	b, err := r.MarshalJSON()
	if err != nil {
		return r.Op
	}
	return string(b)
}

// marshal encodes v compactly without HTML escaping.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
