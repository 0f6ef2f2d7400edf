package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeDiff(t *testing.T) {
	t.Run("added and removed cells", func(t *testing.T) {
		old := FromCells(map[Cell]ObjectID{
			{0, 0, 0}: "wall-a",
			{1, 0, 0}: "wall-a",
		})
		new := FromCells(map[Cell]ObjectID{
			{1, 0, 0}: "wall-a",
			{5, 0, 0}: "wall-b",
		})

		diff := ComputeDiff(old, new)
		require.True(t, diff.Added.Equal(NewFootprint(Cell{5, 0, 0})))
		require.True(t, diff.Removed.Equal(NewFootprint(Cell{0, 0, 0})))
	})

	t.Run("identical states produce an empty diff", func(t *testing.T) {
		s := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-a"})
		diff := ComputeDiff(s, s)
		require.True(t, diff.Empty())
	})

	t.Run("owner change on the same cell is structurally invisible", func(t *testing.T) {
		old := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-a"})
		new := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-b"})

		diff := ComputeDiff(old, new)
		require.True(t, diff.Empty())
	})

	t.Run("diff against the empty state", func(t *testing.T) {
		s := FromCells(map[Cell]ObjectID{
			{0, 0, 0}: "wall-a",
			{1, 0, 0}: "wall-a",
		})

		diff := ComputeDiff(Empty(), s)
		require.Len(t, diff.Added, 2)
		require.Empty(t, diff.Removed)

		diff = ComputeDiff(s, Empty())
		require.Empty(t, diff.Added)
		require.Len(t, diff.Removed, 2)
	})
}

// Applying a diff's cell sets to the old state's cells must reconstruct the
// new state's cells, for any pair of states.
func TestDiffRoundTrip(t *testing.T) {
	old := FromCells(map[Cell]ObjectID{
		{0, 0, 0}: "wall-a",
		{1, 0, 0}: "wall-a",
		{4, 4, 0}: "pillar",
	})
	new := FromCells(map[Cell]ObjectID{
		{1, 0, 0}: "wall-a",
		{2, 0, 0}: "wall-a",
		{4, 4, 0}: "door",
	})

	diff := ComputeDiff(old, new)

	reconstructed := old.AllCells()
	for c := range diff.Added {
		reconstructed[c] = struct{}{}
	}
	for c := range diff.Removed {
		delete(reconstructed, c)
	}

	require.True(t, reconstructed.Equal(new.AllCells()))
}
