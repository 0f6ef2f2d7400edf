package grid

import (
	"github.com/ethereum/go-ethereum/common"
)

// Engine is the mutable convenience wrapper over the immutable core: it
// holds the current snapshot, routes mutations through the placement
// operations and records history. It is not synchronized; owners that share
// an Engine across goroutines must serialize access themselves.
type Engine struct {
	current  *State
	history  *History
	opts     PlaceOptions
	revision uint64
}

// EngineOption configures a new Engine.
type EngineOption func(*Engine)

// WithHistory bounds the undo stack to limit snapshots (zero or less keeps
// it unbounded).
func WithHistory(limit int) EngineOption {
	return func(e *Engine) {
		e.history = NewHistory(limit)
	}
}

// WithoutHistory disables undo/redo entirely; only the current state is
// retained. Useful for latency-sensitive batch runs.
func WithoutHistory() EngineOption {
	return func(e *Engine) {
		e.history = nil
	}
}

// WithBounds constrains every placement to b.
func WithBounds(b Bounds) EngineOption {
	return func(e *Engine) {
		e.opts.Bounds = &b
	}
}

// WithShape constrains the footprint cardinality of every placement.
func WithShape(sc ShapeConstraint) EngineOption {
	return func(e *Engine) {
		e.opts.Shape = sc
	}
}

// NewEngine returns an engine holding the empty state. History is unbounded
// unless configured otherwise.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		current: Empty(),
		history: NewHistory(0),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.history.Push(e.current)
	return e
}

// Current returns the live snapshot. The returned state is immutable and
// safe to share with concurrent readers.
func (e *Engine) Current() *State {
	return e.current
}

// Revision returns the monotonic commit counter. Every successful mutation,
// including undo/redo and resets, advances it.
func (e *Engine) Revision() uint64 {
	return e.revision
}

// StableHash returns the canonical digest of the current state.
func (e *Engine) StableHash() common.Hash {
	return e.current.StableHash()
}

// Place claims fp for id in the current state.
func (e *Engine) Place(id ObjectID, fp Footprint) error {
	next, err := Place(e.current, id, fp, e.opts)
	if err != nil {
		return err
	}
	e.commit(next)
	return nil
}

// Remove deletes every cell owned by id. Absent ids commit a
// content-identical snapshot, keeping removal idempotent in content.
func (e *Engine) Remove(id ObjectID) {
	e.commit(Remove(e.current, id))
}

// Move relocates id onto fp, tolerating overlap with its own prior cells.
func (e *Engine) Move(id ObjectID, fp Footprint) error {
	next, err := Move(e.current, id, fp, e.opts)
	if err != nil {
		return err
	}
	e.commit(next)
	return nil
}

// PlaceMultiple applies the batch atomically: either every placement lands
// in one commit or the current state is left untouched.
func (e *Engine) PlaceMultiple(placements []Placement) error {
	next, err := PlaceMultiple(e.current, placements, e.opts)
	if err != nil {
		return err
	}
	if next == e.current {
		return nil
	}
	e.commit(next)
	return nil
}

// Undo steps the current state back one commit. It reports whether a step
// was taken.
func (e *Engine) Undo() bool {
	s, ok := e.history.Undo()
	if !ok {
		return false
	}
	e.current = s
	e.revision++
	return true
}

// Redo re-applies the last undone commit.
func (e *Engine) Redo() bool {
	s, ok := e.history.Redo()
	if !ok {
		return false
	}
	e.current = s
	e.revision++
	return true
}

func (e *Engine) CanUndo() bool {
	return e.history.CanUndo()
}

func (e *Engine) CanRedo() bool {
	return e.history.CanRedo()
}

// Reset replaces the current state with the empty one and restarts history.
func (e *Engine) Reset() {
	e.LoadState(Empty())
}

// LoadState adopts s as the new current state. History restarts from s;
// prior snapshots are discarded.
func (e *Engine) LoadState(s *State) {
	if s == nil {
		s = Empty()
	}
	e.current = s
	e.history.Clear()
	e.history.Push(s)
	e.revision++
}

// ClearHistory drops every snapshot but keeps the current state as the new
// origin.
func (e *Engine) ClearHistory() {
	e.history.Clear()
	e.history.Push(e.current)
}

func (e *Engine) commit(next *State) {
	e.current = next
	e.history.Push(next)
	e.revision++
}

// Stats summarizes the engine for diagnostics and wire responses.
type Stats struct {
	Objects   int    `json:"object_count"`
	Cells     int    `json:"cell_count"`
	Revision  uint64 `json:"revision"`
	UndoDepth int    `json:"undo_depth"`
	RedoDepth int    `json:"redo_depth"`
}

func (e *Engine) Stats() Stats {
	return Stats{
		Objects:   e.current.ObjectCount(),
		Cells:     e.current.Len(),
		Revision:  e.revision,
		UndoDepth: e.history.UndoDepth(),
		RedoDepth: e.history.RedoDepth(),
	}
}
