package session

import (
	"slices"

	"github.com/ryzeai/ryze/plan"
)

// Entry is an immutable snapshot of one accepted pipeline result.
type Entry struct {
	Code        string     `json:"code"`
	Plan        *plan.Plan `json:"plan"`
	Explanation string     `json:"explanation"`
}

// History is a linear undo/redo log with a cursor at the current entry.
// Appending while the cursor is not at the tail discards the redo branch;
// there is no branching history.
//
// Invariant: -1 <= cursor < len(entries), and cursor == len(entries)-1 right
// after an append.
type History struct {
	entries []Entry
	cursor  int
}

// NewHistory returns an empty log with cursor -1.
func NewHistory() *History {
	return &History{cursor: -1}
}

// RestoreHistory rebuilds a log from persisted entries. A cursor outside
// [-1, len-1] is replaced by the last index.
//
// A saved cursor of -1 is kept even when entries exist: nothing is shown, the
// entries stay reachable with Redo, and the next Append replaces all of them.
func RestoreHistory(entries []Entry, cursor int) *History {
	h := &History{entries: slices.Clone(entries)}
	if cursor < -1 || cursor > len(entries)-1 {
		cursor = len(entries) - 1
	}
	h.cursor = cursor
	return h
}

// Append adds e after the cursor. It is a no-op, returning false, when e has
// the same code as the entry under the cursor.
func (h *History) Append(e Entry) bool {
	if cur, ok := h.Current(); ok && cur.Code == e.Code {
		return false
	}

	h.entries = append(h.entries[:h.cursor+1], e)
	h.cursor = len(h.entries) - 1
	return true
}

// Undo moves the cursor back and returns the entry now under it. It is a
// no-op when the cursor is at the first entry or the log is empty.
func (h *History) Undo() (Entry, bool) {
	if h.cursor <= 0 {
		return Entry{}, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Redo moves the cursor forward and returns the entry now under it. It is a
// no-op when the cursor is already at the tail.
func (h *History) Redo() (Entry, bool) {
	if h.cursor >= len(h.entries)-1 {
		return Entry{}, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Reset empties the log.
func (h *History) Reset() {
	h.entries = nil
	h.cursor = -1
}

// Current returns the entry under the cursor.
func (h *History) Current() (Entry, bool) {
	if h.cursor < 0 || h.cursor >= len(h.entries) {
		return Entry{}, false
	}
	return h.entries[h.cursor], true
}

// CanUndo reports whether Undo would move the cursor.
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo reports whether Redo would move the cursor.
func (h *History) CanRedo() bool {
	return h.cursor < len(h.entries)-1
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Cursor returns the index of the current entry, or -1 when empty.
func (h *History) Cursor() int {
	return h.cursor
}

// Entries returns a copy of the log.
func (h *History) Entries() []Entry {
	return slices.Clone(h.entries)
}
