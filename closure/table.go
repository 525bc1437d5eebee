package closure

import (
	"sync"

	"github.com/wippyai/shard-runtime/errors"
)

// Handle is an opaque reference to a payload held in a Table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Dropper is optionally implemented by payload values that need cleanup
// when their handle is dropped.
type Dropper interface {
	Drop()
}

// Table maps opaque handles to caller payloads. It is the Go rendition
// of the raw-pointer side of the closure contract: callers register a
// value, pass the resulting handle across the boundary, and the owning
// side drops it exactly once.
type Table struct {
	entries  []entry
	freeList []Handle
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value any
	valid bool
}

// NewTable creates an empty payload table.
func NewTable() *Table {
	return &Table{
		entries:  make([]entry, 0, 64),
		freeList: make([]Handle, 0, 16),
	}
}

var defaultTable = NewTable()

// Default returns the process-wide payload table.
func Default() *Table {
	return defaultTable
}

// Register stores a value and returns its handle.
func (t *Table) Register(value any) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, errors.Allocation(errors.PhaseClosure, "payload handle: table closed")
	}

	e := entry{value: value, valid: true}

	if len(t.freeList) > 0 {
		h := t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.entries[h-1] = e
		return h, nil
	}

	t.entries = append(t.entries, e)
	return Handle(len(t.entries)), nil
}

// Get retrieves a value by handle.
func (t *Table) Get(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := int(h) - 1
	if idx >= len(t.entries) || !t.entries[idx].valid {
		return nil, false
	}
	return t.entries[idx].value, true
}

// Drop removes a payload and returns (value, true) if it was present.
// If the value implements Dropper, its Drop method runs.
func (t *Table) Drop(h Handle) (any, bool) {
	if h == 0 {
		return nil, false
	}

	t.mu.Lock()
	idx := int(h) - 1
	if idx >= len(t.entries) || !t.entries[idx].valid {
		t.mu.Unlock()
		return nil, false
	}

	value := t.entries[idx].value
	t.entries[idx] = entry{}
	t.freeList = append(t.freeList, h)
	t.mu.Unlock()

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
	return value, true
}

// Len returns the number of live payloads.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, e := range t.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Close drops all payloads and stops accepting registrations.
func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	for i := range t.entries {
		if t.entries[i].valid {
			if d, ok := t.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			t.entries[i] = entry{}
		}
	}

	t.entries = nil
	t.freeList = nil
	return nil
}
