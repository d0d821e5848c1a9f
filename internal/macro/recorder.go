package macro

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidSlot is returned for a slot index outside the table.
	ErrInvalidSlot = errors.New("macro: invalid slot")
	// ErrAlreadyRecording is returned when starting a recording while one is active.
	ErrAlreadyRecording = errors.New("macro: already recording")
)

// State is the recording state of a Recorder.
type State int

const (
	// Idle means no slot is being recorded.
	Idle State = iota
	// Recording means actions are appended to the active slot.
	Recording
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Recorder records actions into the slots of a template table.
type Recorder struct {
	mu    sync.Mutex
	table Table
	state State
	slot  int
}

// NewRecorder creates an idle recorder over table.
func NewRecorder(table Table) *Recorder {
	if len(table) == 0 {
		table = NewTable(DefaultSlots)
	}
	return &Recorder{table: table, slot: -1}
}

// Start begins recording into slot, resetting it to an empty template.
// Returns ErrInvalidSlot for an index outside the table and
// ErrAlreadyRecording if a recording is active.
func (r *Recorder) Start(slot int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= len(r.table) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidSlot, slot, len(r.table))
	}
	if r.state == Recording {
		return fmt.Errorf("%w: slot %d", ErrAlreadyRecording, r.slot)
	}

	r.state = Recording
	r.slot = slot
	r.table[slot] = []Record{}
	return nil
}

// Stop ends the active recording. It returns false if the recorder was idle.
func (r *Recorder) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return false
	}
	r.state = Idle
	r.slot = -1
	return true
}

// Append records a into the active slot. Does nothing when idle.
func (r *Recorder) Append(a Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Recording {
		return nil
	}
	rec, err := NewRecord(a)
	if err != nil {
		return err
	}
	r.table[r.slot] = append(r.table[r.slot], rec)
	return nil
}

// State returns the current recording state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// ActiveSlot returns the slot being recorded, if any. It is -1 when idle.
func (r *Recorder) ActiveSlot() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slot, r.state == Recording
}

// Slots returns the number of slots in the table.
func (r *Recorder) Slots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}

// Slot returns a copy of the records in slot. A nil result means the slot
// has never been recorded.
func (r *Recorder) Slot(slot int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if slot < 0 || slot >= len(r.table) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidSlot, slot, len(r.table))
	}
	recs := r.table[slot]
	if recs == nil {
		return nil, nil
	}
	return append([]Record{}, recs...), nil
}

// Table returns a deep copy of every slot.
func (r *Recorder) Table() Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.table.Clone()
}
