package merki

import (
	"sort"
	"sync"

	"github.com/toftlabs/toft/grid"
	"github.com/toftlabs/toft/wire"
)

// State keeps the tags of one session, indexed by object and key.
type State struct {
	tagMutex sync.RWMutex
	tags     map[grid.ObjectID]map[string]wire.Tag
}

func (s *State) SetTag(tag wire.Tag) {
	s.tagMutex.Lock()
	defer s.tagMutex.Unlock()

	if s.tags == nil {
		s.tags = make(map[grid.ObjectID]map[string]wire.Tag)
	}

	objectTags, ok := s.tags[tag.ObjectID]
	if !ok {
		objectTags = make(map[string]wire.Tag)
		s.tags[tag.ObjectID] = objectTags
	}

	objectTags[tag.Key] = tag
}

func (s *State) Tag(objectID grid.ObjectID, key string) (wire.Tag, bool) {
	s.tagMutex.RLock()
	defer s.tagMutex.RUnlock()

	objectTags, ok := s.tags[objectID]
	if !ok {
		return wire.Tag{}, false
	}

	tag, ok := objectTags[key]
	return tag, ok
}

func (s *State) DeleteTag(objectID grid.ObjectID, key string) {
	s.tagMutex.Lock()
	defer s.tagMutex.Unlock()

	objectTags, ok := s.tags[objectID]
	if !ok {
		return
	}

	delete(objectTags, key)
	if len(objectTags) == 0 {
		delete(s.tags, objectID)
	}
}

func (s *State) RemoveObjectTags(objectID grid.ObjectID) {
	s.tagMutex.Lock()
	defer s.tagMutex.Unlock()

	delete(s.tags, objectID)
}

// TagsOf returns the tags of one object, sorted by key.
func (s *State) TagsOf(objectID grid.ObjectID) []wire.Tag {
	s.tagMutex.RLock()
	defer s.tagMutex.RUnlock()

	tags := make([]wire.Tag, 0, len(s.tags[objectID]))
	for _, tag := range s.tags[objectID] {
		tags = append(tags, tag)
	}
	sortTags(tags)
	return tags
}

// Tags returns every tag in the session, sorted by object then key.
func (s *State) Tags() []wire.Tag {
	s.tagMutex.RLock()
	defer s.tagMutex.RUnlock()

	var tags []wire.Tag
	for _, objectTags := range s.tags {
		for _, tag := range objectTags {
			tags = append(tags, tag)
		}
	}
	sortTags(tags)
	return tags
}

func sortTags(tags []wire.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].ObjectID != tags[j].ObjectID {
			return tags[i].ObjectID < tags[j].ObjectID
		}
		return tags[i].Key < tags[j].Key
	})
}
