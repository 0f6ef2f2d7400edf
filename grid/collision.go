package grid

// DetectCollision reports whether fp shares at least one cell with the
// state's occupied cells. This set-intersection test is the entire
// collision contract of the engine; there is no geometric collision.
func DetectCollision(fp Footprint, s *State) bool {
	if len(fp) <= len(s.cells) {
		for c := range fp {
			if _, ok := s.cells[c]; ok {
				return true
			}
		}
		return false
	}
	for c := range s.cells {
		if _, ok := fp[c]; ok {
			return true
		}
	}
	return false
}

// CheckOverlap reports whether two raw footprints intersect, independent of
// any state. Used to vet composite placements before they reach the engine.
func CheckOverlap(a, b Footprint) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
