package models

import (
	"sort"

	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"
)

// A session participant.
type Participant struct {
	ID        uint32
	Responder wire.ResponseSender

	// objectIDs tracks the objects placed by this participant. Mutated only
	// under the owning session's state lock.
	objectIDs map[grid.ObjectID]struct{}
}

func (p *Participant) AddObject(o *Object) {
	if p.objectIDs == nil {
		p.objectIDs = make(map[grid.ObjectID]struct{})
	}
	p.objectIDs[o.ID] = struct{}{}
}

func (p *Participant) RemoveObject(o *Object) {
	delete(p.objectIDs, o.ID)
}

// ObjectIDs returns the ids of the objects the participant owns, sorted so
// disconnect cleanup is reproducible.
func (p *Participant) ObjectIDs() []grid.ObjectID {
	ids := make([]grid.ObjectID, 0, len(p.objectIDs))
	for id := range p.objectIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}

func ParticipantIDs(participants []*Participant) []uint32 {
	ids := make([]uint32, len(participants))
	for i, p := range participants {
		ids[i] = p.ID
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}
