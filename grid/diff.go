package grid

// Diff is the cell-level difference between two states: Added holds cells
// present only in the new state, Removed cells present only in the old one.
// A cell whose owner changed without appearing or vanishing is in neither
// set, which is why diffs are structural summaries rather than undo
// recipes; history replays whole snapshots instead.
type Diff struct {
	Added   Footprint
	Removed Footprint
}

// ComputeDiff returns the set difference between the occupied cells of old
// and new.
func ComputeDiff(old, new *State) Diff {
	diff := Diff{
		Added:   Footprint{},
		Removed: Footprint{},
	}
	for c := range new.cells {
		if _, ok := old.cells[c]; !ok {
			diff.Added[c] = struct{}{}
		}
	}
	for c := range old.cells {
		if _, ok := new.cells[c]; !ok {
			diff.Removed[c] = struct{}{}
		}
	}
	return diff
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0
}
