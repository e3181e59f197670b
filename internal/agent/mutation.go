package agent

import (
	"math/rand"

	"neurorace/internal/nn"
)

const (
	SoftMutationDelta = 0.05
	JitterMin         = 0.9
	JitterSpan        = 0.2
)

// JitterFitness scales fitness by a uniform factor in [0.9, 1.1).
func (a *Agent) JitterFitness(rng *rand.Rand) {
	a.fitness *= rng.Float64()*JitterSpan + JitterMin
}

// SoftMutate nudges each weight with probability ratePercent/100 by a
// uniform delta in [-0.05, 0.05).
func (a *Agent) SoftMutate(rng *rand.Rand, ratePercent int) {
	a.network.UpdateWeights(func(_, _ int, w float64) float64 {
		if rng.Intn(100) < ratePercent {
			return w + (rng.Float64()-0.5)*2*SoftMutationDelta
		}
		return w
	})
}

// HardMutate replaces each weight with probability ratePercent/100 by a
// fresh draw from [-1, 1).
func (a *Agent) HardMutate(rng *rand.Rand, ratePercent int) {
	a.network.UpdateWeights(func(_, _ int, w float64) float64 {
		if rng.Intn(100) < ratePercent {
			return nn.RandomWeight(rng)
		}
		return w
	})
}
