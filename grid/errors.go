package grid

// Error kinds reported by the engine. All failures are synchronous and
// leave inputs untouched; callers branch with errors.IsType.
const (
	// ErrTypeInvalidRequest covers malformed input: empty identifiers,
	// empty footprints, shape constraint violations, malformed bounds.
	ErrTypeInvalidRequest = "invalid_request"

	// ErrTypeOutOfBounds is returned when a footprint cell falls outside
	// the supplied bounds.
	ErrTypeOutOfBounds = "out_of_bounds"

	// ErrTypeCollisionDetected is returned when a candidate footprint
	// intersects an existing occupant.
	ErrTypeCollisionDetected = "collision_detected"

	// ErrTypeNotFound is returned when a move target owns no cells.
	ErrTypeNotFound = "not_found"

	// ErrTypeParentChildViolation is returned when a child footprint is
	// not a subset of its declared parent's footprint.
	ErrTypeParentChildViolation = "parent_child_violation"
)
