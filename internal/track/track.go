// Package track describes the static course the vehicles drive on: wall
// chains, ordered checkpoint gates and the starting pose.
package track

import (
	"errors"
	"fmt"

	"neurorace/internal/geom"
)

var ErrInvalidLayout = errors.New("invalid track layout")

type Segment struct {
	Start geom.Vec2 `json:"start"`
	End   geom.Vec2 `json:"end"`
}

// Chain is a polyline of connected wall segments.
type Chain []geom.Vec2

// Gate is one checkpoint; gates are crossed in index order and wrap around.
type Gate struct {
	Index int `json:"index"`
	Segment
}

type Layout struct {
	Name           string    `json:"name"`
	Chains         []Chain   `json:"chains"`
	Gates          []Gate    `json:"gates"`
	Start          geom.Pose `json:"start"`
	PopulationSize int       `json:"population_size"`
}

// Track is a validated, read-only layout with its wall segments flattened.
type Track struct {
	layout Layout
	walls  []Segment
}

func New(layout Layout) (*Track, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	walls := make([]Segment, 0)
	for _, chain := range layout.Chains {
		for i := 0; i+1 < len(chain); i++ {
			walls = append(walls, Segment{Start: chain[i], End: chain[i+1]})
		}
	}
	return &Track{layout: layout.clone(), walls: walls}, nil
}

func (l Layout) Validate() error {
	if len(l.Chains) == 0 {
		return fmt.Errorf("%w: no wall chains", ErrInvalidLayout)
	}
	for i, chain := range l.Chains {
		if len(chain) < 2 {
			return fmt.Errorf("%w: chain %d has %d points, need at least 2", ErrInvalidLayout, i, len(chain))
		}
	}
	if len(l.Gates) == 0 {
		return fmt.Errorf("%w: no checkpoint gates", ErrInvalidLayout)
	}
	for i, gate := range l.Gates {
		if gate.Index != i {
			return fmt.Errorf("%w: gate at position %d has index %d", ErrInvalidLayout, i, gate.Index)
		}
		if gate.Start == gate.End {
			return fmt.Errorf("%w: gate %d is degenerate", ErrInvalidLayout, i)
		}
	}
	if l.PopulationSize <= 0 {
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidLayout)
	}
	return nil
}

func (t *Track) Name() string {
	return t.layout.Name
}

func (t *Track) Walls() []Segment {
	return t.walls
}

func (t *Track) Gates() []Gate {
	return t.layout.Gates
}

func (t *Track) Start() geom.Pose {
	return t.layout.Start
}

func (t *Track) PopulationSize() int {
	return t.layout.PopulationSize
}

// Layout returns a copy of the layout the track was built from.
func (t *Track) Layout() Layout {
	return t.layout.clone()
}

func (l Layout) clone() Layout {
	out := l
	out.Chains = make([]Chain, len(l.Chains))
	for i, chain := range l.Chains {
		out.Chains[i] = append(Chain(nil), chain...)
	}
	out.Gates = append([]Gate(nil), l.Gates...)
	return out
}
