package evo

import (
	"errors"
	"fmt"

	"neurorace/internal/agent"
	"neurorace/internal/nn"
)

var ErrInvalidParams = errors.New("invalid evolution params")

const (
	DefaultEliteSoftRate     = 5
	DefaultHardRate          = 10
	DefaultChildrenPerCouple = 8
	DefaultDiversitySamples  = 1000
)

// DefaultArchitecture is three sensor inputs, five hidden nodes, two outputs.
var DefaultArchitecture = []int{agent.SensorCount, 5, agent.OutputCount}

// Params controls the generation boundary. Rates are whole percentages.
type Params struct {
	PopulationSize    int
	Architecture      []int
	Activation        string
	EliteSoftRate     int
	HardRate          int
	ChildrenPerCouple int
	DiversitySamples  int
	// TickLimit fails every live agent once a generation has run this many
	// ticks. Zero lets a generation run until every agent has crashed.
	TickLimit int
}

func DefaultParams(populationSize int) Params {
	return Params{
		PopulationSize:    populationSize,
		Architecture:      append([]int(nil), DefaultArchitecture...),
		Activation:        nn.DefaultActivation,
		EliteSoftRate:     DefaultEliteSoftRate,
		HardRate:          DefaultHardRate,
		ChildrenPerCouple: DefaultChildrenPerCouple,
		DiversitySamples:  DefaultDiversitySamples,
	}
}

// EliteCount is the top tenth of the population, carried over twice each.
func (p Params) EliteCount() int {
	return p.PopulationSize / 10
}

// ParentPoolSize is the top fifth of the population, paired into couples.
func (p Params) ParentPoolSize() int {
	return p.PopulationSize / 5
}

func (p Params) Validate() error {
	if p.PopulationSize < 10 || p.PopulationSize%10 != 0 {
		return fmt.Errorf("%w: population size must be a positive multiple of 10, got %d", ErrInvalidParams, p.PopulationSize)
	}
	if len(p.Architecture) < 2 {
		return fmt.Errorf("%w: architecture needs at least two levels, got %v", ErrInvalidParams, p.Architecture)
	}
	if p.Architecture[0] != agent.SensorCount {
		return fmt.Errorf("%w: architecture must start with %d inputs, got %d", ErrInvalidParams, agent.SensorCount, p.Architecture[0])
	}
	if last := p.Architecture[len(p.Architecture)-1]; last != agent.OutputCount {
		return fmt.Errorf("%w: architecture must end with %d outputs, got %d", ErrInvalidParams, agent.OutputCount, last)
	}
	for _, width := range p.Architecture {
		if width <= 0 {
			return fmt.Errorf("%w: architecture levels must be > 0, got %v", ErrInvalidParams, p.Architecture)
		}
	}
	if _, err := nn.GetActivation(p.activation()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if p.EliteSoftRate < 0 || p.EliteSoftRate > 100 {
		return fmt.Errorf("%w: elite soft rate must be in [0, 100], got %d", ErrInvalidParams, p.EliteSoftRate)
	}
	if p.HardRate < 0 || p.HardRate > 100 {
		return fmt.Errorf("%w: hard rate must be in [0, 100], got %d", ErrInvalidParams, p.HardRate)
	}
	if p.DiversitySamples < 0 {
		return fmt.Errorf("%w: diversity samples must be >= 0", ErrInvalidParams)
	}
	if p.TickLimit < 0 {
		return fmt.Errorf("%w: tick limit must be >= 0", ErrInvalidParams)
	}
	couples := p.ParentPoolSize() / 2
	if got := 2*p.EliteCount() + couples*p.ChildrenPerCouple; got != p.PopulationSize {
		return fmt.Errorf("%w: %d children per couple yields %d agents, want %d", ErrInvalidParams, p.ChildrenPerCouple, got, p.PopulationSize)
	}
	return nil
}

func (p Params) activation() string {
	if p.Activation == "" {
		return nn.DefaultActivation
	}
	return p.Activation
}
