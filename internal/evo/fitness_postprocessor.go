package evo

import (
	"math/rand"

	"neurorace/internal/agent"
)

// FitnessPostprocessor adjusts fitness values after the generation's
// statistics are taken and before ranking.
type FitnessPostprocessor interface {
	Name() string
	Process(rng *rand.Rand, agents []agent.Agent)
}

type NoopFitnessPostprocessor struct{}

func (NoopFitnessPostprocessor) Name() string {
	return "none"
}

func (NoopFitnessPostprocessor) Process(*rand.Rand, []agent.Agent) {}

// JitterPostprocessor scales every fitness by a uniform factor in
// [0.9, 1.1), drawing once per agent in population order.
type JitterPostprocessor struct{}

func (JitterPostprocessor) Name() string {
	return "jitter"
}

func (JitterPostprocessor) Process(rng *rand.Rand, agents []agent.Agent) {
	for i := range agents {
		agents[i].JitterFitness(rng)
	}
}
