// Package grid implements the deterministic spatial state underlying a
// procedural building tool: an immutable integer grid tracking which cells
// are occupied by which structural object, the operations that derive new
// states from it, and read-only analysis (room detection, structural
// adjacency) over snapshots.
//
// Everything in this package is synchronous, allocation-only and free of
// I/O. State values never change after construction, so any number of
// readers may share a snapshot without locking; writers are expected to be
// serialized by their owner.
package grid

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ObjectID identifies one structural object. IDs are opaque to the engine
// and must be non-empty.
type ObjectID string

// Entry pairs an occupied cell with its owning object.
type Entry struct {
	Cell   Cell     `json:"cell"`
	Object ObjectID `json:"object_id"`
}

// State is an immutable snapshot of the structural grid. A cell maps to at
// most one object; transformations produce new State values and never touch
// their input.
type State struct {
	cells map[Cell]ObjectID

	hashOnce sync.Once
	hash     common.Hash
}

var emptyState = &State{cells: map[Cell]ObjectID{}}

// Empty returns the canonical zero-object state.
func Empty() *State {
	return emptyState
}

// FromCells builds a snapshot from a cell ownership map. The input is
// copied; later changes to it do not affect the returned state.
func FromCells(cells map[Cell]ObjectID) *State {
	copied := make(map[Cell]ObjectID, len(cells))
	for c, id := range cells {
		copied[c] = id
	}
	return &State{cells: copied}
}

// newState wraps a map the caller guarantees is not shared.
func newState(cells map[Cell]ObjectID) *State {
	return &State{cells: cells}
}

func (s *State) IsOccupied(c Cell) bool {
	_, ok := s.cells[c]
	return ok
}

// OwnerOf returns the object occupying c, if any.
func (s *State) OwnerOf(c Cell) (ObjectID, bool) {
	id, ok := s.cells[c]
	return id, ok
}

// Len returns the number of occupied cells.
func (s *State) Len() int {
	return len(s.cells)
}

// AllCells returns every occupied cell as a footprint.
func (s *State) AllCells() Footprint {
	fp := make(Footprint, len(s.cells))
	for c := range s.cells {
		fp[c] = struct{}{}
	}
	return fp
}

// CellsOf returns the footprint currently owned by id. The result is empty
// when id owns no cells.
func (s *State) CellsOf(id ObjectID) Footprint {
	fp := Footprint{}
	for c, owner := range s.cells {
		if owner == id {
			fp[c] = struct{}{}
		}
	}
	return fp
}

// ObjectIDs returns the unique identifiers present, sorted.
func (s *State) ObjectIDs() []ObjectID {
	seen := make(map[ObjectID]struct{})
	for _, id := range s.cells {
		seen[id] = struct{}{}
	}
	ids := make([]ObjectID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sortObjectIDs(ids)
	return ids
}

func (s *State) ObjectCount() int {
	seen := make(map[ObjectID]struct{})
	for _, id := range s.cells {
		seen[id] = struct{}{}
	}
	return len(seen)
}

// Entries returns the full (cell, object) listing in canonical order.
func (s *State) Entries() []Entry {
	entries := make([]Entry, 0, len(s.cells))
	for c, id := range s.cells {
		entries = append(entries, Entry{Cell: c, Object: id})
	}
	sortEntries(entries)
	return entries
}

// CanonicalBytes returns the canonical serialization of the state: one
// `x,y,z="id"` line per occupied cell, sorted by cell. The object id is
// quoted so ids containing newlines or '=' cannot forge extra lines. Two
// states with the same content always serialize identically, no matter how
// they were built.
func (s *State) CanonicalBytes() []byte {
	var buf []byte
	for _, e := range s.Entries() {
		buf = strconv.AppendInt(buf, int64(e.Cell.X), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(e.Cell.Y), 10)
		buf = append(buf, ',')
		buf = strconv.AppendInt(buf, int64(e.Cell.Z), 10)
		buf = append(buf, '=')
		buf = strconv.AppendQuote(buf, string(e.Object))
		buf = append(buf, '\n')
	}
	return buf
}

// ParseCanonicalBytes rebuilds a state from its canonical serialization.
// Input line order does not matter; the result is content-equal to the state
// that produced the bytes.
func ParseCanonicalBytes(data []byte) (*State, error) {
	cells := map[Cell]ObjectID{}

	for lineNo, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}

		coords, quoted, ok := strings.Cut(line, "=")
		if !ok || quoted == "" {
			return nil, errors.New("malformed state line").
				WithType(ErrTypeInvalidRequest).
				WithTag("line", lineNo+1)
		}

		id, err := strconv.Unquote(quoted)
		if err != nil || id == "" {
			return nil, errors.New("malformed object id").
				WithType(ErrTypeInvalidRequest).
				WithTag("line", lineNo+1)
		}

		parts := strings.Split(coords, ",")
		if len(parts) != 3 {
			return nil, errors.New("malformed cell coordinates").
				WithType(ErrTypeInvalidRequest).
				WithTag("line", lineNo+1)
		}

		var c Cell
		for i, dst := range []*int{&c.X, &c.Y, &c.Z} {
			v, err := strconv.Atoi(parts[i])
			if err != nil {
				return nil, errors.New("malformed cell coordinate").
					WithType(ErrTypeInvalidRequest).
					WithTag("line", lineNo+1).
					Wrap(err)
			}
			*dst = v
		}

		if owner, ok := cells[c]; ok && owner != ObjectID(id) {
			return nil, errors.New("cell claimed by two objects").
				WithType(ErrTypeInvalidRequest).
				WithTag("cell", c.String())
		}
		cells[c] = ObjectID(id)
	}

	return newState(cells), nil
}

// StableHash returns the Keccak-256 digest of the canonical serialization.
// It is a pure function of content, cached on first use.
func (s *State) StableHash() common.Hash {
	s.hashOnce.Do(func() {
		s.hash = crypto.Keccak256Hash(s.CanonicalBytes())
	})
	return s.hash
}

// Equal reports content equality: same cells, same owners.
func (s *State) Equal(o *State) bool {
	if s == o {
		return true
	}
	if len(s.cells) != len(o.cells) {
		return false
	}
	for c, id := range s.cells {
		if other, ok := o.cells[c]; !ok || other != id {
			return false
		}
	}
	return true
}

// cloneCells copies the ownership map for a derived state.
func (s *State) cloneCells() map[Cell]ObjectID {
	cells := make(map[Cell]ObjectID, len(s.cells))
	for c, id := range s.cells {
		cells[c] = id
	}
	return cells
}

func sortObjectIDs(ids []ObjectID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Cell.Less(entries[j].Cell)
	})
}
