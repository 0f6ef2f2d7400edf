package grid

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryUndoRedo(t *testing.T) {
	h := NewHistory(0)

	s1 := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-a"})
	s2 := FromCells(map[Cell]ObjectID{{0, 0, 0}: "wall-a", {1, 0, 0}: "wall-b"})

	h.Push(s1)
	require.False(t, h.CanUndo())

	h.Push(s2)
	require.True(t, h.CanUndo())
	require.False(t, h.CanRedo())

	t.Run("undo returns the state before the push", func(t *testing.T) {
		s, ok := h.Undo()
		require.True(t, ok)
		require.True(t, s.Equal(s1))
		require.True(t, h.CanRedo())
	})

	t.Run("redo restores the pushed state", func(t *testing.T) {
		s, ok := h.Redo()
		require.True(t, ok)
		require.True(t, s.Equal(s2))
		require.False(t, h.CanRedo())
	})

	t.Run("undo stops at the origin", func(t *testing.T) {
		_, ok := h.Undo()
		require.True(t, ok)

		s, ok := h.Undo()
		require.False(t, ok)
		require.Nil(t, s)
	})
}

func TestHistoryPushTruncatesRedoTail(t *testing.T) {
	h := NewHistory(0)

	s1 := FromCells(map[Cell]ObjectID{{0, 0, 0}: "a"})
	s2 := FromCells(map[Cell]ObjectID{{1, 0, 0}: "b"})
	s3 := FromCells(map[Cell]ObjectID{{2, 0, 0}: "c"})

	h.Push(s1)
	h.Push(s2)

	_, ok := h.Undo()
	require.True(t, ok)
	require.True(t, h.CanRedo())

	h.Push(s3)
	require.False(t, h.CanRedo())
	require.Equal(t, 2, h.Len())

	s, ok := h.Undo()
	require.True(t, ok)
	require.True(t, s.Equal(s1))
}

func TestHistoryLimitEvictsOldest(t *testing.T) {
	h := NewHistory(2)

	s1 := FromCells(map[Cell]ObjectID{{0, 0, 0}: "a"})
	s2 := FromCells(map[Cell]ObjectID{{1, 0, 0}: "b"})
	s3 := FromCells(map[Cell]ObjectID{{2, 0, 0}: "c"})

	h.Push(s1)
	h.Push(s2)
	h.Push(s3)

	require.Equal(t, 2, h.Len())
	require.Equal(t, 1, h.UndoDepth())

	s, ok := h.Undo()
	require.True(t, ok)
	require.True(t, s.Equal(s2))
	require.False(t, h.CanUndo())
}

func TestHistoryDisabled(t *testing.T) {
	var h *History

	h.Push(FromCells(map[Cell]ObjectID{{0, 0, 0}: "a"}))

	require.Zero(t, h.Len())
	require.False(t, h.CanUndo())
	require.False(t, h.CanRedo())
	require.Zero(t, h.UndoDepth())
	require.Zero(t, h.RedoDepth())

	_, ok := h.Undo()
	require.False(t, ok)
	_, ok = h.Redo()
	require.False(t, ok)

	h.Clear()
}

func TestHistoryClear(t *testing.T) {
	h := NewHistory(0)
	h.Push(FromCells(map[Cell]ObjectID{{0, 0, 0}: "a"}))
	h.Push(FromCells(map[Cell]ObjectID{{1, 0, 0}: "b"}))

	h.Clear()
	require.Zero(t, h.Len())
	require.False(t, h.CanUndo())
	require.False(t, h.CanRedo())
}

func TestHistoryDepths(t *testing.T) {
	h := NewHistory(0)

	h.Push(FromCells(map[Cell]ObjectID{{0, 0, 0}: "a"}))
	h.Push(FromCells(map[Cell]ObjectID{{1, 0, 0}: "b"}))
	h.Push(FromCells(map[Cell]ObjectID{{2, 0, 0}: "c"}))

	require.Equal(t, 2, h.UndoDepth())
	require.Zero(t, h.RedoDepth())

	_, _ = h.Undo()
	require.Equal(t, 1, h.UndoDepth())
	require.Equal(t, 1, h.RedoDepth())
}
