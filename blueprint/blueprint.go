// Package blueprint loads YAML build scripts used to seed new sessions with
// a prebuilt grid state.
package blueprint

import (
	"os"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/toftlabs/toft/grid"
	"gopkg.in/yaml.v3"
)

const (
	OpPlace  = "place"
	OpRemove = "remove"
	OpMove   = "move"
)

// Blueprint is an ordered build script. Steps run through a regular grid
// engine, so a blueprint can only describe states a client could build.
type Blueprint struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Step is one scripted operation.
type Step struct {
	Op    string `yaml:"op"`
	ID    string `yaml:"id"`
	Cells []Cell `yaml:"cells"`
}

type Cell struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// Load reads and parses a blueprint file.
func Load(path string) (*Blueprint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("reading blueprint file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return Parse(data)
}

// Parse decodes a YAML blueprint.
func Parse(data []byte) (*Blueprint, error) {
	var b Blueprint
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, errors.New("decoding blueprint failed").Wrap(err)
	}

	for i, step := range b.Steps {
		if step.ID == "" {
			return nil, errors.New("blueprint step has no object id").
				WithTag("step", i).
				WithTag("op", step.Op)
		}
		switch step.Op {
		case OpPlace, OpMove:
			if len(step.Cells) == 0 {
				return nil, errors.New("blueprint step has no cells").
					WithTag("step", i).
					WithTag("op", step.Op).
					WithTag("object_id", step.ID)
			}
		case OpRemove:
		default:
			return nil, errors.New("unknown blueprint op").
				WithTag("step", i).
				WithTag("op", step.Op)
		}
	}
	return &b, nil
}

// Build replays the script on a fresh engine and returns the resulting
// state. Engine options apply the same placement rules seeded sessions use.
func (b *Blueprint) Build(opts ...grid.EngineOption) (*grid.State, error) {
	engine := grid.NewEngine(opts...)

	for i, step := range b.Steps {
		var err error

		switch step.Op {
		case OpPlace:
			err = engine.Place(grid.ObjectID(step.ID), footprint(step.Cells))
		case OpRemove:
			engine.Remove(grid.ObjectID(step.ID))
		case OpMove:
			err = engine.Move(grid.ObjectID(step.ID), footprint(step.Cells))
		}

		if err != nil {
			return nil, errors.New("applying blueprint step failed").
				WithTag("step", i).
				WithTag("op", step.Op).
				WithTag("object_id", step.ID).
				Wrap(err)
		}
	}
	return engine.Current(), nil
}

func footprint(cells []Cell) grid.Footprint {
	fp := make(grid.Footprint, len(cells))
	for _, c := range cells {
		fp[grid.Cell{X: c.X, Y: c.Y, Z: c.Z}] = struct{}{}
	}
	return fp
}
