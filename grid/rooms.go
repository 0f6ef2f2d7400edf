package grid

import (
	"sort"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// RoomOptions controls one room detection pass.
type RoomOptions struct {
	// ZLevel selects the level to analyze; rooms never span levels.
	ZLevel int

	// Bounds restricts the search to x in [0, W), y in [0, H). When nil the
	// search area is derived from the state: the bounding box of the
	// occupied cells at ZLevel, expanded by one cell per side, so unbounded
	// empty space is never scanned.
	Bounds *Rect

	// MinSize drops regions with fewer cells. Zero means 1.
	MinSize int

	// ExcludeBoundaryTouching discards regions that reach the outer rim of
	// the (explicit or derived) search area; such regions are open to the
	// outside rather than enclosed.
	ExcludeBoundaryTouching bool
}

// DetectRooms finds the connected regions of empty cells at one z-level.
// Connectivity is 4-connected: one step along x or y, never diagonal, never
// vertical. The state is never mutated, and the result is sorted by each
// region's minimum cell so identical inputs produce identical output.
//
// The only possible failure is malformed bounds; analysis itself cannot
// fail.
func DetectRooms(s *State, opts RoomOptions) ([]Footprint, error) {
	if opts.Bounds != nil && !opts.Bounds.wellFormed() {
		return nil, errors.New("room bounds are malformed").
			WithType(ErrTypeInvalidRequest).
			WithTag("w", opts.Bounds.W).
			WithTag("h", opts.Bounds.H)
	}

	minSize := opts.MinSize
	if minSize <= 0 {
		minSize = 1
	}

	var area box2
	if opts.Bounds != nil {
		area = box2{minX: 0, minY: 0, maxX: opts.Bounds.W - 1, maxY: opts.Bounds.H - 1}
	} else {
		occupied, ok := occupiedBox(s, opts.ZLevel)
		if !ok {
			// Nothing occupied at this level, nothing can be enclosed.
			return nil, nil
		}
		area = occupied.expand(1)
	}

	visited := make(map[Cell]struct{})
	var rooms []Footprint

	for y := area.minY; y <= area.maxY; y++ {
		for x := area.minX; x <= area.maxX; x++ {
			seed := Cell{X: x, Y: y, Z: opts.ZLevel}
			if _, ok := visited[seed]; ok {
				continue
			}
			if s.IsOccupied(seed) {
				continue
			}

			region, touchesEdge := fillRegion(s, seed, area, visited)
			if len(region) < minSize {
				continue
			}
			if opts.ExcludeBoundaryTouching && touchesEdge {
				continue
			}
			rooms = append(rooms, region)
		}
	}

	sort.Slice(rooms, func(i, j int) bool {
		return minCell(rooms[i]).Less(minCell(rooms[j]))
	})
	return rooms, nil
}

// fillRegion flood-fills the empty region containing seed, constrained to
// area, and reports whether the region touches the area's rim. Cells are
// marked visited as they are queued so overlapping fills never happen.
func fillRegion(s *State, seed Cell, area box2, visited map[Cell]struct{}) (Footprint, bool) {
	region := Footprint{}
	touchesEdge := false

	queue := []Cell{seed}
	visited[seed] = struct{}{}

	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		region[c] = struct{}{}

		if area.onEdge(c.X, c.Y) {
			touchesEdge = true
		}

		for _, n := range c.horizontalNeighbors() {
			if !area.contains(n.X, n.Y) {
				continue
			}
			if _, ok := visited[n]; ok {
				continue
			}
			if s.IsOccupied(n) {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return region, touchesEdge
}

// occupiedBox returns the inclusive bounding box of the occupied cells at
// z, or false when the level is empty.
func occupiedBox(s *State, z int) (box2, bool) {
	var b box2
	found := false
	for c := range s.cells {
		if c.Z != z {
			continue
		}
		if !found {
			b = box2{minX: c.X, minY: c.Y, maxX: c.X, maxY: c.Y}
			found = true
			continue
		}
		if c.X < b.minX {
			b.minX = c.X
		}
		if c.X > b.maxX {
			b.maxX = c.X
		}
		if c.Y < b.minY {
			b.minY = c.Y
		}
		if c.Y > b.maxY {
			b.maxY = c.Y
		}
	}
	return b, found
}

// RoomStats aggregates a detection result.
type RoomStats struct {
	Count      int     `json:"room_count"`
	TotalCells int     `json:"total_cells"`
	AvgSize    float64 `json:"avg_room_size"`
	MinSize    int     `json:"min_room_size"`
	MaxSize    int     `json:"max_room_size"`
}

// RoomStatsOf computes count, total cells and size aggregates for rooms.
func RoomStatsOf(rooms []Footprint) RoomStats {
	stats := RoomStats{Count: len(rooms)}
	if len(rooms) == 0 {
		return stats
	}

	stats.MinSize = len(rooms[0])
	for _, room := range rooms {
		size := len(room)
		stats.TotalCells += size
		if size < stats.MinSize {
			stats.MinSize = size
		}
		if size > stats.MaxSize {
			stats.MaxSize = size
		}
	}
	stats.AvgSize = float64(stats.TotalCells) / float64(stats.Count)
	return stats
}

// RoomAt returns the room containing c, if any.
func RoomAt(c Cell, rooms []Footprint) (Footprint, bool) {
	for _, room := range rooms {
		if room.Contains(c) {
			return room, true
		}
	}
	return nil, false
}
