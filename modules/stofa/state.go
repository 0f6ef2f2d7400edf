package stofa

import (
	"fmt"
	"sync"

	"github.com/toftlabs/toft/grid"
)

// State caches room analysis per session. Results are keyed by the query
// options and valid for exactly one grid revision: caching a newer revision
// drops everything older.
type State struct {
	roomMutex sync.RWMutex
	revision  uint64
	rooms     map[string][]grid.Footprint
}

func (s *State) Rooms(revision uint64, opts grid.RoomOptions) ([]grid.Footprint, bool) {
	s.roomMutex.RLock()
	defer s.roomMutex.RUnlock()

	if revision != s.revision {
		return nil, false
	}

	rooms, ok := s.rooms[cacheKey(opts)]
	return rooms, ok
}

func (s *State) SetRooms(revision uint64, opts grid.RoomOptions, rooms []grid.Footprint) {
	s.roomMutex.Lock()
	defer s.roomMutex.Unlock()

	if revision != s.revision {
		s.rooms = nil
		s.revision = revision
	}
	if s.rooms == nil {
		s.rooms = make(map[string][]grid.Footprint)
	}

	s.rooms[cacheKey(opts)] = rooms
}

func cacheKey(opts grid.RoomOptions) string {
	bounds := "auto"
	if opts.Bounds != nil {
		bounds = fmt.Sprintf("%dx%d", opts.Bounds.W, opts.Bounds.H)
	}
	return fmt.Sprintf("%d|%s|%d|%t", opts.ZLevel, bounds, opts.MinSize, opts.ExcludeBoundaryTouching)
}
