package grid

// History is a stack of state snapshots with a cursor, supporting undo and
// redo. Pushing while the cursor sits before the newest snapshot truncates
// the redo tail. Snapshots are immutable, so the stack holds references
// only.
//
// A nil *History is a valid, disabled history: Push, Undo and Redo become
// no-ops, for callers that only ever need the current state.
type History struct {
	states []*State
	cursor int
	limit  int
}

// NewHistory returns a history keeping at most limit snapshots; the oldest
// is evicted once the limit is exceeded. A limit of zero or less means
// unbounded.
func NewHistory(limit int) *History {
	return &History{
		cursor: -1,
		limit:  limit,
	}
}

// Push records s as the newest snapshot, discarding any redo tail.
func (h *History) Push(s *State) {
	if h == nil {
		return
	}
	h.states = append(h.states[:h.cursor+1], s)
	if h.limit > 0 && len(h.states) > h.limit {
		n := copy(h.states, h.states[1:])
		h.states[n] = nil
		h.states = h.states[:n]
	}
	h.cursor = len(h.states) - 1
}

// Undo moves the cursor back one snapshot and returns it. It reports false
// at the origin, when there is nothing left to undo.
func (h *History) Undo() (*State, bool) {
	if !h.CanUndo() {
		return nil, false
	}
	h.cursor--
	return h.states[h.cursor], true
}

// Redo moves the cursor forward again after an undo.
func (h *History) Redo() (*State, bool) {
	if !h.CanRedo() {
		return nil, false
	}
	h.cursor++
	return h.states[h.cursor], true
}

func (h *History) CanUndo() bool {
	return h != nil && h.cursor > 0
}

func (h *History) CanRedo() bool {
	return h != nil && h.cursor < len(h.states)-1
}

// Len returns the number of snapshots currently held.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.states)
}

// UndoDepth returns how many undo steps are available.
func (h *History) UndoDepth() int {
	if h == nil {
		return 0
	}
	return h.cursor
}

// RedoDepth returns how many redo steps are available.
func (h *History) RedoDepth() int {
	if h == nil {
		return 0
	}
	return len(h.states) - 1 - h.cursor
}

// Clear drops every snapshot.
func (h *History) Clear() {
	if h == nil {
		return
	}
	h.states = nil
	h.cursor = -1
}
