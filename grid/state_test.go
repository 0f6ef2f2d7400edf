package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptyState(t *testing.T) {
	s := Empty()

	require.Zero(t, s.Len())
	require.Zero(t, s.ObjectCount())
	require.False(t, s.IsOccupied(Cell{0, 0, 0}))
	require.Empty(t, s.AllCells())
	require.Empty(t, s.ObjectIDs())
	require.Empty(t, s.Entries())
}

func TestFromCellsCopiesInput(t *testing.T) {
	input := map[Cell]ObjectID{
		{0, 0, 0}: "wall-a",
	}
	s := FromCells(input)

	input[Cell{1, 0, 0}] = "wall-b"
	delete(input, Cell{0, 0, 0})

	require.Equal(t, 1, s.Len())
	require.True(t, s.IsOccupied(Cell{0, 0, 0}))
	require.False(t, s.IsOccupied(Cell{1, 0, 0}))
}

func TestStateOwnership(t *testing.T) {
	s := FromCells(map[Cell]ObjectID{
		{0, 0, 0}: "wall-a",
		{1, 0, 0}: "wall-a",
		{5, 2, 1}: "wall-b",
	})

	t.Run("owner of an occupied cell", func(t *testing.T) {
		id, ok := s.OwnerOf(Cell{1, 0, 0})
		require.True(t, ok)
		require.Equal(t, ObjectID("wall-a"), id)
	})

	t.Run("owner of a free cell", func(t *testing.T) {
		id, ok := s.OwnerOf(Cell{9, 9, 9})
		require.False(t, ok)
		require.Empty(t, id)
	})

	t.Run("cells of an object", func(t *testing.T) {
		fp := s.CellsOf("wall-a")
		require.Len(t, fp, 2)
		require.True(t, fp.Contains(Cell{0, 0, 0}))
		require.True(t, fp.Contains(Cell{1, 0, 0}))
	})

	t.Run("cells of an unknown object", func(t *testing.T) {
		require.Empty(t, s.CellsOf("ghost"))
	})

	t.Run("object ids are sorted and unique", func(t *testing.T) {
		require.Equal(t, []ObjectID{"wall-a", "wall-b"}, s.ObjectIDs())
		require.Equal(t, 2, s.ObjectCount())
	})
}

func TestStateEntriesAreCanonicallyOrdered(t *testing.T) {
	s := FromCells(map[Cell]ObjectID{
		{2, 0, 0}: "c",
		{0, 1, 0}: "a",
		{0, 0, 3}: "b",
		{0, 0, 1}: "d",
	})

	entries := s.Entries()
	require.Equal(t, []Entry{
		{Cell: Cell{0, 0, 1}, Object: "d"},
		{Cell: Cell{0, 0, 3}, Object: "b"},
		{Cell: Cell{0, 1, 0}, Object: "a"},
		{Cell: Cell{2, 0, 0}, Object: "c"},
	}, entries)
}

func TestCanonicalBytes(t *testing.T) {
	s := FromCells(map[Cell]ObjectID{
		{1, 2, 0}:  "wall",
		{0, 2, 0}:  "door",
		{-1, 0, 2}: "beam",
	})

	require.Equal(t,
		"-1,0,2=\"beam\"\n0,2,0=\"door\"\n1,2,0=\"wall\"\n",
		string(s.CanonicalBytes()))
}

func TestCanonicalBytesEscapesObjectIDs(t *testing.T) {
	// Ids are opaque strings, so an id carrying a newline or '=' must not be
	// able to masquerade as extra state lines.
	a := FromCells(map[Cell]ObjectID{
		{0, 0, 0}: "x\"\n0,0,1=\"y",
	})
	b := FromCells(map[Cell]ObjectID{
		{0, 0, 0}: "x",
		{0, 0, 1}: "y",
	})

	require.NotEqual(t, string(a.CanonicalBytes()), string(b.CanonicalBytes()))
	require.NotEqual(t, a.StableHash(), b.StableHash())

	parsed, err := ParseCanonicalBytes(a.CanonicalBytes())
	require.NoError(t, err)
	require.True(t, a.Equal(parsed))
	require.Equal(t, a.StableHash(), parsed.StableHash())
}

func TestStableHash(t *testing.T) {
	t.Run("same content hashes the same", func(t *testing.T) {
		a := FromCells(map[Cell]ObjectID{
			{0, 0, 0}: "wall-a",
			{4, 2, 1}: "wall-b",
		})
		b := FromCells(map[Cell]ObjectID{
			{4, 2, 1}: "wall-b",
			{0, 0, 0}: "wall-a",
		})
		require.Equal(t, a.StableHash(), b.StableHash())
	})

	t.Run("different content hashes differently", func(t *testing.T) {
		a := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-a"})
		b := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-b"})
		require.NotEqual(t, a.StableHash(), b.StableHash())
	})

	t.Run("hash is stable across calls", func(t *testing.T) {
		s := FromCells(map[Cell]ObjectID{{7, 7, 7}: "pillar"})
		require.Equal(t, s.StableHash(), s.StableHash())
	})

	t.Run("empty state has a hash", func(t *testing.T) {
		require.NotEmpty(t, Empty().StableHash().Hex())
	})
}

func TestStateEqual(t *testing.T) {
	a := FromCells(map[Cell]ObjectID{
		{0, 0, 0}: "wall-a",
		{1, 0, 0}: "wall-b",
	})

	require.True(t, a.Equal(a))
	require.True(t, a.Equal(FromCells(map[Cell]ObjectID{
		{1, 0, 0}: "wall-b",
		{0, 0, 0}: "wall-a",
	})))
	require.False(t, a.Equal(Empty()))
	require.False(t, a.Equal(FromCells(map[Cell]ObjectID{
		{0, 0, 0}: "wall-a",
		{1, 0, 0}: "wall-c",
	})))
}

func TestFootprint(t *testing.T) {
	fp := NewFootprint(Cell{2, 0, 0}, Cell{0, 0, 0}, Cell{1, 0, 0})

	t.Run("cells are sorted", func(t *testing.T) {
		require.Equal(t, []Cell{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}}, fp.Cells())
	})

	t.Run("contains", func(t *testing.T) {
		require.True(t, fp.Contains(Cell{1, 0, 0}))
		require.False(t, fp.Contains(Cell{3, 0, 0}))
	})

	t.Run("subset", func(t *testing.T) {
		require.True(t, fp.ContainsAll(NewFootprint(Cell{0, 0, 0})))
		require.False(t, fp.ContainsAll(NewFootprint(Cell{0, 0, 0}, Cell{5, 0, 0})))
		require.True(t, fp.ContainsAll(Footprint{}))
	})

	t.Run("clone is independent", func(t *testing.T) {
		clone := fp.Clone()
		delete(clone, Cell{0, 0, 0})
		require.True(t, fp.Contains(Cell{0, 0, 0}))
		require.False(t, clone.Contains(Cell{0, 0, 0}))
	})

	t.Run("equal", func(t *testing.T) {
		require.True(t, fp.Equal(NewFootprint(Cell{1, 0, 0}, Cell{0, 0, 0}, Cell{2, 0, 0})))
		require.False(t, fp.Equal(NewFootprint(Cell{1, 0, 0})))
	})
}

func TestParseCanonicalBytes(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		s := FromCells(map[Cell]ObjectID{
			{0, 0, 0}:   "wall-a",
			{1, 0, 0}:   "wall-a",
			{-3, 2, 1}:  "wall-b",
			{10, -4, 0}: "pillar",
		})

		parsed, err := ParseCanonicalBytes(s.CanonicalBytes())
		require.NoError(t, err)
		require.True(t, s.Equal(parsed))
		require.Equal(t, s.StableHash(), parsed.StableHash())
	})

	t.Run("empty input is the empty state", func(t *testing.T) {
		parsed, err := ParseCanonicalBytes(nil)
		require.NoError(t, err)
		require.True(t, parsed.Equal(Empty()))
	})

	t.Run("malformed lines are rejected", func(t *testing.T) {
		for _, data := range []string{
			"0,0,0",
			"0,0=\"wall-a\"",
			"a,0,0=\"wall-a\"",
			"0,0,0=",
			"0,0,0=wall-a",
			"0,0,0=\"\"",
		} {
			_, err := ParseCanonicalBytes([]byte(data))
			require.Error(t, err, data)
		}
	})

	t.Run("conflicting owners are rejected", func(t *testing.T) {
		_, err := ParseCanonicalBytes([]byte("0,0,0=\"wall-a\"\n0,0,0=\"wall-b\"\n"))
		require.Error(t, err)
	})
}
