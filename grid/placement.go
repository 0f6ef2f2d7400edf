package grid

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Placement pairs an object with the footprint it claims.
type Placement struct {
	Object    ObjectID
	Footprint Footprint
}

// PlaceOptions carries the optional constraints checked before a placement
// is committed.
type PlaceOptions struct {
	Bounds *Bounds
	Shape  ShapeConstraint
}

// Place returns a new state equal to s plus fp owned by id. It fails
// without producing a state when validation fails or any footprint cell is
// already occupied.
func Place(s *State, id ObjectID, fp Footprint, opts PlaceOptions) (*State, error) {
	cells := s.cloneCells()
	if err := placeInto(cells, id, fp, opts); err != nil {
		return nil, err
	}
	return newState(cells), nil
}

// Remove returns a new state with every cell owned by id deleted. Removing
// an id that owns no cells is safe: the result is a content-identical but
// distinct state value, so repeated removes are idempotent in content.
func Remove(s *State, id ObjectID) *State {
	cells := make(map[Cell]ObjectID, len(s.cells))
	for c, owner := range s.cells {
		if owner != id {
			cells[c] = owner
		}
	}
	return newState(cells)
}

// Move relocates id to fp. The placement is checked against the
// post-removal state, so an object may move into cells it previously
// occupied without reporting a collision against itself.
func Move(s *State, id ObjectID, fp Footprint, opts PlaceOptions) (*State, error) {
	if err := ValidateObjectID(id); err != nil {
		return nil, err
	}
	if len(s.CellsOf(id)) == 0 {
		return nil, errors.New("object owns no cells").
			WithType(ErrTypeNotFound).
			WithTag("object_id", id)
	}
	return Place(Remove(s, id), id, fp, opts)
}

// PlaceMultiple applies placements in order, each checked against the
// cumulative result of the prior ones. The first failure aborts the whole
// batch: no state is returned and s is left as the caller's last good
// snapshot (all-or-nothing).
func PlaceMultiple(s *State, placements []Placement, opts PlaceOptions) (*State, error) {
	if len(placements) == 0 {
		return s, nil
	}
	cells := s.cloneCells()
	for i, p := range placements {
		if err := placeInto(cells, p.Object, p.Footprint, opts); err != nil {
			return nil, errors.New("batch placement failed").
				WithType(errors.Type(err)).
				WithTag("step", i).
				WithTag("object_id", p.Object).
				Wrap(err)
		}
	}
	return newState(cells), nil
}

// placeInto validates one placement against cells and, when clear, claims
// the footprint. cells must not be shared with a live State.
func placeInto(cells map[Cell]ObjectID, id ObjectID, fp Footprint, opts PlaceOptions) error {
	if err := ValidateObjectID(id); err != nil {
		return err
	}
	if err := ValidateFootprint(fp); err != nil {
		return err
	}
	if err := ValidateShape(fp, opts.Shape); err != nil {
		return err
	}
	if opts.Bounds != nil {
		if err := ValidateBounds(fp, *opts.Bounds); err != nil {
			return err
		}
	}

	// Iterate in canonical order so the reported conflict is the same for
	// identical inputs.
	for _, c := range fp.Cells() {
		if occupant, ok := cells[c]; ok {
			return errors.New("footprint collides with an existing occupant").
				WithType(ErrTypeCollisionDetected).
				WithTag("object_id", id).
				WithTag("cell", c.String()).
				WithTag("occupant", occupant)
		}
	}
	for c := range fp {
		cells[c] = id
	}
	return nil
}
