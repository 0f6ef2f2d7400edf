package grid

import (
	"fmt"
	"sort"
)

// Cell is a single integer coordinate of the structural grid. Coordinates
// are quantized by callers before they reach this package; the engine never
// sees real-world units or fractional positions.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Less orders cells lexicographically by (X, Y, Z). This is the canonical
// order used for hashing, serialization and reproducible results.
func (c Cell) Less(o Cell) bool {
	if c.X != o.X {
		return c.X < o.X
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.Z < o.Z
}

// horizontalNeighbors returns the 4-connected neighbors on the same z-level.
// Diagonals and vertical steps are never considered adjacent.
func (c Cell) horizontalNeighbors() [4]Cell {
	return [4]Cell{
		{c.X + 1, c.Y, c.Z},
		{c.X - 1, c.Y, c.Z},
		{c.X, c.Y + 1, c.Z},
		{c.X, c.Y - 1, c.Z},
	}
}

// SortCells sorts cells in place into canonical order.
func SortCells(cells []Cell) {
	sort.Slice(cells, func(i, j int) bool {
		return cells[i].Less(cells[j])
	})
}

// Footprint is the finite set of cells claimed by one object. An empty
// footprint is invalid input for placement but a valid result of removal.
type Footprint map[Cell]struct{}

func NewFootprint(cells ...Cell) Footprint {
	fp := make(Footprint, len(cells))
	for _, c := range cells {
		fp[c] = struct{}{}
	}
	return fp
}

func (fp Footprint) Contains(c Cell) bool {
	_, ok := fp[c]
	return ok
}

// ContainsAll reports whether other is a subset of fp.
func (fp Footprint) ContainsAll(other Footprint) bool {
	if len(other) > len(fp) {
		return false
	}
	for c := range other {
		if _, ok := fp[c]; !ok {
			return false
		}
	}
	return true
}

func (fp Footprint) Equal(other Footprint) bool {
	return len(fp) == len(other) && fp.ContainsAll(other)
}

// Cells returns the footprint in canonical order.
func (fp Footprint) Cells() []Cell {
	cells := make([]Cell, 0, len(fp))
	for c := range fp {
		cells = append(cells, c)
	}
	SortCells(cells)
	return cells
}

func (fp Footprint) Clone() Footprint {
	clone := make(Footprint, len(fp))
	for c := range fp {
		clone[c] = struct{}{}
	}
	return clone
}

func minCell(fp Footprint) Cell {
	var min Cell
	first := true
	for c := range fp {
		if first || c.Less(min) {
			min = c
			first = false
		}
	}
	return min
}
