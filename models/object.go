package models

import (
	"sort"

	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"
)

// Object is a placed structural object and its session ownership. The grid
// engine only knows cell owners; persistence and participant ownership live
// here.
type Object struct {
	ID            grid.ObjectID
	ParticipantID uint32

	// Persist keeps the object on the grid after its owner disconnects.
	Persist bool
}

func (o *Object) Info() wire.ObjectInfo {
	return wire.ObjectInfo{
		ID:            o.ID,
		ParticipantID: o.ParticipantID,
		Persist:       o.Persist,
	}
}

// ObjectInfos converts objects for the wire, sorted by id so session state
// payloads are reproducible.
func ObjectInfos(objects []*Object) []wire.ObjectInfo {
	infos := make([]wire.ObjectInfo, len(objects))
	for i, o := range objects {
		infos[i] = o.Info()
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}
