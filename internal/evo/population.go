package evo

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"neurorace/internal/agent"
	"neurorace/internal/geom"
	"neurorace/internal/matrix"
	"neurorace/internal/nn"
)

// Population is one generation of agents. It is replaced wholesale at every
// generation boundary.
type Population struct {
	Generation int
	Agents     []agent.Agent
}

// GenerationStats is what the boundary measured on the outgoing generation.
type GenerationStats struct {
	MaxFitness  float64
	MeanFitness float64
	Diversity   float64
}

func InitialPopulation(rng *rand.Rand, params Params, start geom.Pose) (Population, error) {
	if rng == nil {
		return Population{}, fmt.Errorf("random source is required")
	}
	if err := params.Validate(); err != nil {
		return Population{}, err
	}
	agents := make([]agent.Agent, 0, params.PopulationSize)
	for i := 0; i < params.PopulationSize; i++ {
		network, err := nn.RandomNetwork(rng, params.activation(), params.Architecture)
		if err != nil {
			return Population{}, fmt.Errorf("agent %d: %w", i, err)
		}
		a, err := agent.New(network, start)
		if err != nil {
			return Population{}, fmt.Errorf("agent %d: %w", i, err)
		}
		agents = append(agents, a)
	}
	return Population{Generation: 1, Agents: agents}, nil
}

// Diversity averages the summed absolute weight difference over samples
// random pairs drawn with replacement. A pair may be the same agent twice.
func Diversity(rng *rand.Rand, agents []agent.Agent, samples int) (float64, error) {
	if len(agents) == 0 || samples <= 0 {
		return 0, nil
	}
	total := 0.0
	for i := 0; i < samples; i++ {
		a := agents[rng.Intn(len(agents))].Network()
		b := agents[rng.Intn(len(agents))].Network()
		d, err := WeightDistance(a, b)
		if err != nil {
			return 0, err
		}
		total += d
	}
	return total / float64(samples), nil
}

// WeightDistance sums |a_i - b_i| over every weight of two same-shaped
// networks.
func WeightDistance(a, b nn.Network) (float64, error) {
	if err := sameShape(a, b); err != nil {
		return 0, err
	}
	total := 0.0
	for layer := 0; layer < a.LayerCount(); layer++ {
		wa := a.Layer(layer).Values()
		wb := b.Layer(layer).Values()
		for i := range wa {
			total += math.Abs(wa[i] - wb[i])
		}
	}
	return total, nil
}

func FitnessStats(agents []agent.Agent) (maxFitness, meanFitness float64) {
	if len(agents) == 0 {
		return 0, 0
	}
	maxFitness = agents[0].Fitness()
	total := 0.0
	for i := range agents {
		f := agents[i].Fitness()
		total += f
		if f > maxFitness {
			maxFitness = f
		}
	}
	return maxFitness, total / float64(len(agents))
}

// Crossover builds a child layer by layer: weights before a random cut
// point come from a, the rest from b.
func Crossover(rng *rand.Rand, a, b nn.Network) (nn.Network, error) {
	if err := sameShape(a, b); err != nil {
		return nn.Network{}, err
	}
	layers := make([]matrix.Matrix, 0, a.LayerCount())
	for i := 0; i < a.LayerCount(); i++ {
		la, lb := a.Layer(i), b.Layer(i)
		dims := la.Dimensions()
		point := rng.Intn(dims.Size())
		data := lb.Values()
		copy(data[:point], la.Values()[:point])
		child, err := matrix.New(dims.Rows, dims.Columns, data)
		if err != nil {
			return nn.Network{}, err
		}
		layers = append(layers, child)
	}
	return nn.NewNetwork(a.Activation(), layers)
}

func sameShape(a, b nn.Network) error {
	if a.LayerCount() != b.LayerCount() {
		return fmt.Errorf("%w: %d layers vs %d", nn.ErrInvalidArchitecture, a.LayerCount(), b.LayerCount())
	}
	for i := 0; i < a.LayerCount(); i++ {
		if da, db := a.Layer(i).Dimensions(), b.Layer(i).Dimensions(); da != db {
			return fmt.Errorf("%w: layer %d is %s vs %s", matrix.ErrInvalidDimension, i, da, db)
		}
	}
	return nil
}

// Breeder performs the generation boundary.
type Breeder struct {
	Params        Params
	Start         geom.Pose
	Selector      Selector
	Postprocessor FitnessPostprocessor
}

// Next measures the outgoing population and breeds its replacement. Random
// draws happen in a fixed order: diversity sampling, fitness jitter, elite
// soft mutation, couple shuffling, then crossover points and hard mutation
// interleaved per child.
func (b Breeder) Next(rng *rand.Rand, current Population) (Population, GenerationStats, error) {
	if rng == nil {
		return Population{}, GenerationStats{}, fmt.Errorf("random source is required")
	}
	if err := b.Params.Validate(); err != nil {
		return Population{}, GenerationStats{}, err
	}
	if len(current.Agents) != b.Params.PopulationSize {
		return Population{}, GenerationStats{}, fmt.Errorf("population mismatch: got=%d want=%d", len(current.Agents), b.Params.PopulationSize)
	}
	selector := b.Selector
	if selector == nil {
		selector = ShuffledCouples{}
	}
	postprocessor := b.Postprocessor
	if postprocessor == nil {
		postprocessor = JitterPostprocessor{}
	}

	diversity, err := Diversity(rng, current.Agents, b.Params.DiversitySamples)
	if err != nil {
		return Population{}, GenerationStats{}, err
	}
	maxFitness, meanFitness := FitnessStats(current.Agents)
	stats := GenerationStats{MaxFitness: maxFitness, MeanFitness: meanFitness, Diversity: diversity}

	ranked := make([]agent.Agent, len(current.Agents))
	copy(ranked, current.Agents)
	postprocessor.Process(rng, ranked)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness() > ranked[j].Fitness()
	})

	next := make([]agent.Agent, 0, b.Params.PopulationSize)
	for i := 0; i < b.Params.EliteCount(); i++ {
		kept, err := agent.New(ranked[i].Network(), b.Start)
		if err != nil {
			return Population{}, GenerationStats{}, err
		}
		mutated, err := agent.New(ranked[i].Network(), b.Start)
		if err != nil {
			return Population{}, GenerationStats{}, err
		}
		mutated.SoftMutate(rng, b.Params.EliteSoftRate)
		next = append(next, kept, mutated)
	}

	pool := ranked[:b.Params.ParentPoolSize()]
	couples, err := selector.Couples(rng, len(pool))
	if err != nil {
		return Population{}, GenerationStats{}, err
	}
	for _, couple := range couples {
		first, second := pool[couple[0]].Network(), pool[couple[1]].Network()
		for i := 0; i < b.Params.ChildrenPerCouple; i++ {
			network, err := Crossover(rng, first, second)
			if err != nil {
				return Population{}, GenerationStats{}, err
			}
			child, err := agent.New(network, b.Start)
			if err != nil {
				return Population{}, GenerationStats{}, err
			}
			child.HardMutate(rng, b.Params.HardRate)
			next = append(next, child)
		}
	}

	return Population{Generation: current.Generation + 1, Agents: next}, stats, nil
}
