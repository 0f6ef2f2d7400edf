package bjalki

import (
	"sync"

	"github.com/toftlabs/toft/grid"
)

// State caches the structural graph per session. The graph is a pure
// function of the grid, so one cached build per revision is enough.
type State struct {
	graphMutex sync.Mutex
	revision   uint64
	graph      grid.Graph
	built      bool
}

// Graph returns the cached graph for revision, building it on a miss.
func (s *State) Graph(revision uint64, build func() grid.Graph) grid.Graph {
	s.graphMutex.Lock()
	defer s.graphMutex.Unlock()

	if !s.built || revision != s.revision {
		s.graph = build()
		s.revision = revision
		s.built = true
	}
	return s.graph
}
