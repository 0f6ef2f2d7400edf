package grid

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/stretchr/testify/require"
)

// wallFrame occupies the perimeter of a w by h rectangle anchored at
// (x0, y0) on level z.
func wallFrame(cells map[Cell]ObjectID, x0, y0, w, h, z int, id ObjectID) {
	for x := x0; x < x0+w; x++ {
		cells[Cell{x, y0, z}] = id
		cells[Cell{x, y0 + h - 1, z}] = id
	}
	for y := y0; y < y0+h; y++ {
		cells[Cell{x0, y, z}] = id
		cells[Cell{x0 + w - 1, y, z}] = id
	}
}

func TestDetectRoomsEmptyState(t *testing.T) {
	t.Run("explicit bounds", func(t *testing.T) {
		rooms, err := DetectRooms(Empty(), RoomOptions{Bounds: &Rect{W: 10, H: 10}})
		require.NoError(t, err)
		require.Len(t, rooms, 1, "the whole area is one open region")
		require.Len(t, rooms[0], 100)
	})

	t.Run("derived bounds", func(t *testing.T) {
		rooms, err := DetectRooms(Empty(), RoomOptions{})
		require.NoError(t, err)
		require.Empty(t, rooms, "nothing occupied, nothing to enclose")
	})
}

func TestDetectRoomsSingleInteriorCell(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 3, 3, 0, "wall")
	s := FromCells(cells)

	rooms, err := DetectRooms(s, RoomOptions{Bounds: &Rect{W: 3, H: 3}})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.True(t, rooms[0].Equal(NewFootprint(Cell{1, 1, 0})))
}

func TestDetectRoomsCollectsWholeInterior(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 5, 5, 0, "wall")
	s := FromCells(cells)

	rooms, err := DetectRooms(s, RoomOptions{Bounds: &Rect{W: 5, H: 5}})
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	require.Len(t, rooms[0], 9, "3x3 interior")
	require.True(t, rooms[0].Contains(Cell{2, 2, 0}), "interior center included")
}

func TestDetectRoomsMultipleRooms(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 3, 3, 0, "wall-a")
	wallFrame(cells, 5, 0, 3, 3, 0, "wall-b")
	s := FromCells(cells)

	rooms, err := DetectRooms(s, RoomOptions{Bounds: &Rect{W: 10, H: 10}})
	require.NoError(t, err)
	require.Len(t, rooms, 3, "two interiors and the open remainder")

	// Sorted by minimum cell: the open remainder starts at (0,3).
	require.True(t, rooms[0].Contains(Cell{0, 3, 0}))
	require.True(t, rooms[1].Equal(NewFootprint(Cell{1, 1, 0})))
	require.True(t, rooms[2].Equal(NewFootprint(Cell{6, 1, 0})))

	t.Run("boundary exclusion keeps only enclosed interiors", func(t *testing.T) {
		rooms, err := DetectRooms(s, RoomOptions{
			Bounds:                  &Rect{W: 10, H: 10},
			ExcludeBoundaryTouching: true,
		})
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		require.True(t, rooms[0].Equal(NewFootprint(Cell{1, 1, 0})))
		require.True(t, rooms[1].Equal(NewFootprint(Cell{6, 1, 0})))
	})
}

func TestDetectRoomsMinSize(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 3, 3, 0, "wall")
	s := FromCells(cells)

	rooms, err := DetectRooms(s, RoomOptions{Bounds: &Rect{W: 3, H: 3}, MinSize: 1})
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	rooms, err = DetectRooms(s, RoomOptions{Bounds: &Rect{W: 3, H: 3}, MinSize: 2})
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestDetectRoomsOpenAreaIsNotARoom(t *testing.T) {
	// A free-standing wall block encloses nothing.
	cells := map[Cell]ObjectID{
		{1, 0, 0}: "wall", {2, 0, 0}: "wall",
		{1, 1, 0}: "wall", {2, 1, 0}: "wall",
	}
	s := FromCells(cells)

	rooms, err := DetectRooms(s, RoomOptions{
		Bounds:                  &Rect{W: 5, H: 5},
		ExcludeBoundaryTouching: true,
	})
	require.NoError(t, err)
	require.Empty(t, rooms)

	rooms, err = DetectRooms(s, RoomOptions{Bounds: &Rect{W: 5, H: 5}})
	require.NoError(t, err)
	require.Len(t, rooms, 1, "the surrounding open region")
}

func TestDetectRoomsSeparatesZLevels(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 3, 3, 0, "wall-ground")
	wallFrame(cells, 0, 0, 3, 3, 1, "wall-upper")
	s := FromCells(cells)

	for z := 0; z <= 1; z++ {
		rooms, err := DetectRooms(s, RoomOptions{ZLevel: z, Bounds: &Rect{W: 3, H: 3}})
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		for c := range rooms[0] {
			require.Equal(t, z, c.Z)
		}
	}

	t.Run("level without occupancy has no rooms", func(t *testing.T) {
		rooms, err := DetectRooms(s, RoomOptions{ZLevel: 7})
		require.NoError(t, err)
		require.Empty(t, rooms)
	})
}

func TestDetectRoomsDerivedBounds(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 3, 3, 0, "wall")
	s := FromCells(cells)

	t.Run("interior survives boundary exclusion", func(t *testing.T) {
		rooms, err := DetectRooms(s, RoomOptions{ExcludeBoundaryTouching: true})
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		require.True(t, rooms[0].Equal(NewFootprint(Cell{1, 1, 0})))
	})

	t.Run("the derived rim forms the outside region", func(t *testing.T) {
		rooms, err := DetectRooms(s, RoomOptions{})
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		require.Len(t, rooms[0], 16, "rim of the expanded bounding box")
		require.True(t, rooms[1].Equal(NewFootprint(Cell{1, 1, 0})))
	})

	t.Run("negative coordinates are handled", func(t *testing.T) {
		shifted := map[Cell]ObjectID{}
		wallFrame(shifted, -4, -4, 3, 3, 0, "wall")

		rooms, err := DetectRooms(FromCells(shifted), RoomOptions{ExcludeBoundaryTouching: true})
		require.NoError(t, err)
		require.Len(t, rooms, 1)
		require.True(t, rooms[0].Equal(NewFootprint(Cell{-3, -3, 0})))
	})
}

func TestDetectRoomsFullyOccupied(t *testing.T) {
	cells := map[Cell]ObjectID{}
	for x := 0; x < 5; x++ {
		for y := 0; y < 5; y++ {
			cells[Cell{x, y, 0}] = "slab"
		}
	}

	rooms, err := DetectRooms(FromCells(cells), RoomOptions{Bounds: &Rect{W: 5, H: 5}})
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestDetectRoomsMalformedBounds(t *testing.T) {
	tests := []Rect{
		{W: 0, H: 5},
		{W: 5, H: 0},
		{W: -3, H: 5},
		{W: 5, H: -1},
	}

	for _, bounds := range tests {
		rooms, err := DetectRooms(Empty(), RoomOptions{Bounds: &bounds})
		require.Error(t, err)
		require.Nil(t, rooms)
		require.Equal(t, ErrTypeInvalidRequest, errors.Type(err))
	}
}

func TestDetectRoomsDeterministicOrder(t *testing.T) {
	cells := map[Cell]ObjectID{}
	wallFrame(cells, 0, 0, 4, 4, 0, "wall-a")
	wallFrame(cells, 6, 2, 5, 5, 0, "wall-b")
	s := FromCells(cells)

	opts := RoomOptions{Bounds: &Rect{W: 12, H: 12}}

	first, err := DetectRooms(s, opts)
	require.NoError(t, err)
	second, err := DetectRooms(s, opts)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		require.Equal(t, first[i].Cells(), second[i].Cells())
	}
}

func TestRoomStatsOf(t *testing.T) {
	t.Run("no rooms", func(t *testing.T) {
		stats := RoomStatsOf(nil)
		require.Zero(t, stats.Count)
		require.Zero(t, stats.TotalCells)
		require.Zero(t, stats.AvgSize)
	})

	t.Run("single room", func(t *testing.T) {
		stats := RoomStatsOf([]Footprint{
			NewFootprint(Cell{1, 1, 0}, Cell{1, 2, 0}, Cell{2, 1, 0}),
		})
		require.Equal(t, 1, stats.Count)
		require.Equal(t, 3, stats.TotalCells)
		require.Equal(t, 3, stats.MinSize)
		require.Equal(t, 3, stats.MaxSize)
		require.Equal(t, 3.0, stats.AvgSize)
	})

	t.Run("multiple rooms", func(t *testing.T) {
		stats := RoomStatsOf([]Footprint{
			NewFootprint(Cell{1, 1, 0}, Cell{1, 2, 0}),
			NewFootprint(Cell{5, 5, 0}, Cell{5, 6, 0}, Cell{6, 5, 0}),
		})
		require.Equal(t, 2, stats.Count)
		require.Equal(t, 5, stats.TotalCells)
		require.Equal(t, 2, stats.MinSize)
		require.Equal(t, 3, stats.MaxSize)
		require.Equal(t, 2.5, stats.AvgSize)
	})
}

func TestRoomAt(t *testing.T) {
	rooms := []Footprint{
		NewFootprint(Cell{1, 1, 0}, Cell{1, 2, 0}),
		NewFootprint(Cell{5, 5, 0}),
	}

	room, ok := RoomAt(Cell{1, 2, 0}, rooms)
	require.True(t, ok)
	require.True(t, room.Equal(rooms[0]))

	room, ok = RoomAt(Cell{9, 9, 0}, rooms)
	require.False(t, ok)
	require.Nil(t, room)
}
