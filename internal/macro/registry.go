package macro

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownOperation is returned when a record names an operation
	// outside the registry.
	ErrUnknownOperation = errors.New("macro: unknown operation")
	// ErrMalformedRecord is returned when a record's arguments do not match
	// the operation's shape.
	ErrMalformedRecord = errors.New("macro: malformed record")
)

// Entry describes one registered operation.
type Entry struct {
	// Name is the operation name used in records.
	Name string
	// Arity is the number of positional arguments.
	Arity int

	decode func(args []json.RawMessage) (Action, error)
}

// Decode converts raw positional arguments into the typed action.
func (e Entry) Decode(args []json.RawMessage) (Action, error) {
	if len(args) != e.Arity {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", ErrMalformedRecord, e.Name, e.Arity, len(args))
	}
	a, err := e.decode(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, e.Name, err)
	}
	return a, nil
}

var registry = map[string]Entry{
	OpChangeSpeed: {Name: OpChangeSpeed, Arity: 1, decode: func(args []json.RawMessage) (Action, error) {
		var a ChangeSpeed
		if err := decodeArgs(args, &a.Factor); err != nil {
			return nil, err
		}
		return a, nil
	}},
	OpCutFragment: {Name: OpCutFragment, Arity: 2, decode: func(args []json.RawMessage) (Action, error) {
		var a CutFragment
		if err := decodeArgs(args, &a.Start, &a.End); err != nil {
			return nil, err
		}
		return a, nil
	}},
	OpInsertImage: {Name: OpInsertImage, Arity: 3, decode: func(args []json.RawMessage) (Action, error) {
		var a InsertImage
		if err := decodeArgs(args, &a.Path, &a.Start, &a.End); err != nil {
			return nil, err
		}
		return a, nil
	}},
	OpConcatenateVideo: {Name: OpConcatenateVideo, Arity: 1, decode: func(args []json.RawMessage) (Action, error) {
		var a ConcatenateVideo
		if err := decodeArgs(args, &a.Paths); err != nil {
			return nil, err
		}
		if a.Paths == nil {
			return nil, errors.New("paths must be an array")
		}
		return a, nil
	}},
	OpRotateVideo: {Name: OpRotateVideo, Arity: 1, decode: func(args []json.RawMessage) (Action, error) {
		var a RotateVideo
		if err := decodeArgs(args, &a.Direction); err != nil {
			return nil, err
		}
		if !a.Direction.IsValid() {
			return nil, fmt.Errorf("invalid direction %q", a.Direction)
		}
		return a, nil
	}},
	OpCropVideo: {Name: OpCropVideo, Arity: 4, decode: func(args []json.RawMessage) (Action, error) {
		var a CropVideo
		if err := decodeArgs(args, &a.X1, &a.Y1, &a.X2, &a.Y2); err != nil {
			return nil, err
		}
		return a, nil
	}},
}

// Lookup returns the registry entry for op.
func Lookup(op string) (Entry, bool) {
	e, ok := registry[op]
	return e, ok
}

// Ops returns the registered operation names in sorted order.
func Ops() []string {
	ops := make([]string, 0, len(registry))
	for op := range registry {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// decodeArgs unmarshals each raw argument into the matching destination.
// JSON null is rejected for every argument.
func decodeArgs(args []json.RawMessage, dst ...any) error {
	for i, raw := range args {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("argument %d is null", i)
		}
		if err := json.Unmarshal(raw, dst[i]); err != nil {
			return fmt.Errorf("argument %d: %w", i, err)
		}
	}
	return nil
}
