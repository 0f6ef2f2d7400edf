package grid

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ShapeConstraint bounds the footprint cardinality a caller will accept.
// Zero values leave the corresponding side unconstrained.
type ShapeConstraint struct {
	MinCells int
	MaxCells int
}

// ValidateObjectID rejects empty identifiers.
func ValidateObjectID(id ObjectID) error {
	if id == "" {
		return errors.New("object id is empty").
			WithType(ErrTypeInvalidRequest)
	}
	return nil
}

// ValidateFootprint rejects empty footprints.
func ValidateFootprint(fp Footprint) error {
	if len(fp) == 0 {
		return errors.New("footprint is empty").
			WithType(ErrTypeInvalidRequest)
	}
	return nil
}

// ValidateShape checks the footprint cardinality against sc.
func ValidateShape(fp Footprint, sc ShapeConstraint) error {
	if sc.MinCells > 0 && len(fp) < sc.MinCells {
		return errors.New("footprint has too few cells").
			WithType(ErrTypeInvalidRequest).
			WithTag("cells", len(fp)).
			WithTag("min_cells", sc.MinCells)
	}
	if sc.MaxCells > 0 && len(fp) > sc.MaxCells {
		return errors.New("footprint has too many cells").
			WithType(ErrTypeInvalidRequest).
			WithTag("cells", len(fp)).
			WithTag("max_cells", sc.MaxCells)
	}
	return nil
}

// ValidateBounds checks that every footprint cell lies within b. Malformed
// bounds are rejected before any containment test.
func ValidateBounds(fp Footprint, b Bounds) error {
	if !b.wellFormed() {
		return errors.New("bounds are malformed").
			WithType(ErrTypeInvalidRequest).
			WithTag("w", b.W).
			WithTag("h", b.H).
			WithTag("d", b.D)
	}
	for _, c := range fp.Cells() {
		if !b.Contains(c) {
			return errors.New("footprint cell is out of bounds").
				WithType(ErrTypeOutOfBounds).
				WithTag("cell", c.String()).
				WithTag("w", b.W).
				WithTag("h", b.H).
				WithTag("d", b.D)
		}
	}
	return nil
}

// ValidateParentChild checks that a child's footprint is fully contained in
// its parent's. The engine never stores child content itself; this keeps
// content carved into a structural object consistent with its owner.
func ValidateParentChild(child, parent Footprint) error {
	if err := ValidateFootprint(child); err != nil {
		return err
	}
	if !parent.ContainsAll(child) {
		outside := 0
		for c := range child {
			if !parent.Contains(c) {
				outside++
			}
		}
		return errors.New("child footprint is not contained in parent footprint").
			WithType(ErrTypeParentChildViolation).
			WithTag("child_cells", len(child)).
			WithTag("outside_cells", outside)
	}
	return nil
}
