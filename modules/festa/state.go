package festa

import (
	"sort"
	"sync"

	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"
)

// State keeps the attachments of one session, indexed by parent object.
type State struct {
	attachmentMutex sync.RWMutex
	attachments     map[grid.ObjectID]map[string]wire.Attachment
}

func (s *State) SetAttachment(a wire.Attachment) {
	s.attachmentMutex.Lock()
	defer s.attachmentMutex.Unlock()

	if s.attachments == nil {
		s.attachments = make(map[grid.ObjectID]map[string]wire.Attachment)
	}

	parentAttachments, ok := s.attachments[a.ParentID]
	if !ok {
		parentAttachments = make(map[string]wire.Attachment)
		s.attachments[a.ParentID] = parentAttachments
	}

	parentAttachments[a.ID] = a
}

func (s *State) Attachment(id string) (wire.Attachment, bool) {
	s.attachmentMutex.RLock()
	defer s.attachmentMutex.RUnlock()

	for _, parentAttachments := range s.attachments {
		if a, ok := parentAttachments[id]; ok {
			return a, true
		}
	}
	return wire.Attachment{}, false
}

func (s *State) RemoveAttachment(id string) {
	s.attachmentMutex.Lock()
	defer s.attachmentMutex.Unlock()

	for parentID, parentAttachments := range s.attachments {
		if _, ok := parentAttachments[id]; ok {
			delete(parentAttachments, id)
			if len(parentAttachments) == 0 {
				delete(s.attachments, parentID)
			}
			return
		}
	}
}

func (s *State) RemoveForParent(parentID grid.ObjectID) {
	s.attachmentMutex.Lock()
	defer s.attachmentMutex.Unlock()

	delete(s.attachments, parentID)
}

// AttachmentsOf returns the attachments of one parent, sorted by id.
func (s *State) AttachmentsOf(parentID grid.ObjectID) []wire.Attachment {
	s.attachmentMutex.RLock()
	defer s.attachmentMutex.RUnlock()

	attachments := make([]wire.Attachment, 0, len(s.attachments[parentID]))
	for _, a := range s.attachments[parentID] {
		attachments = append(attachments, a)
	}
	sortAttachments(attachments)
	return attachments
}

// Attachments returns every attachment in the session, sorted by id.
func (s *State) Attachments() []wire.Attachment {
	s.attachmentMutex.RLock()
	defer s.attachmentMutex.RUnlock()

	var attachments []wire.Attachment
	for _, parentAttachments := range s.attachments {
		for _, a := range parentAttachments {
			attachments = append(attachments, a)
		}
	}
	sortAttachments(attachments)
	return attachments
}

func sortAttachments(attachments []wire.Attachment) {
	sort.Slice(attachments, func(i, j int) bool {
		return attachments[i].ID < attachments[j].ID
	})
}
