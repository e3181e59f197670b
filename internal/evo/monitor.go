package evo

import (
	"context"
	"fmt"
	"io"
	"math/rand"

	"neurorace/internal/model"
	"neurorace/internal/scape"
	"neurorace/internal/track"
)

// Observer receives one summary per completed generation.
type Observer interface {
	ObserveGeneration(ctx context.Context, summary model.GenerationSummary) error
}

type ObserverFunc func(ctx context.Context, summary model.GenerationSummary) error

func (f ObserverFunc) ObserveGeneration(ctx context.Context, summary model.GenerationSummary) error {
	return f(ctx, summary)
}

// LogObserver writes one key=value line per generation.
type LogObserver struct {
	W io.Writer
}

func (o LogObserver) ObserveGeneration(_ context.Context, s model.GenerationSummary) error {
	_, err := fmt.Fprintf(o.W, "generation=%d max_fitness=%.6f mean_fitness=%.6f diversity=%.6f ticks=%d\n",
		s.Generation, s.MaxFitness, s.MeanFitness, s.Diversity, s.Ticks)
	return err
}

type MonitorConfig struct {
	Track *track.Track
	// Params.PopulationSize of 0 takes the track layout's population size.
	Params        Params
	Seed          int64
	Generations   int
	Sink          scape.FrameSink
	Selector      Selector
	Postprocessor FitnessPostprocessor
	Observers     []Observer
}

type RunResult struct {
	Summaries      []model.GenerationSummary
	BestFitness    float64
	FinalDiversity float64
}

// Monitor owns the population, the racetrack and the random source, and
// drives generations one tick at a time.
type Monitor struct {
	cfg        MonitorConfig
	rng        *rand.Rand
	racetrack  *scape.Racetrack
	breeder    Breeder
	population Population
}

func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if cfg.Track == nil {
		return nil, fmt.Errorf("track is required")
	}
	if cfg.Generations < 0 {
		return nil, fmt.Errorf("generations must be >= 0")
	}
	if cfg.Params.PopulationSize == 0 {
		cfg.Params.PopulationSize = cfg.Track.PopulationSize()
	}
	if err := cfg.Params.Validate(); err != nil {
		return nil, err
	}
	if cfg.Selector == nil {
		cfg.Selector = ShuffledCouples{}
	}
	if cfg.Postprocessor == nil {
		cfg.Postprocessor = JitterPostprocessor{}
	}

	racetrack, err := scape.NewRacetrack(cfg.Track, cfg.Sink)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	population, err := InitialPopulation(rng, cfg.Params, cfg.Track.Start())
	if err != nil {
		return nil, err
	}
	return &Monitor{
		cfg:       cfg,
		rng:       rng,
		racetrack: racetrack,
		breeder: Breeder{
			Params:        cfg.Params,
			Start:         cfg.Track.Start(),
			Selector:      cfg.Selector,
			Postprocessor: cfg.Postprocessor,
		},
		population: population,
	}, nil
}

func (m *Monitor) Params() Params {
	return m.cfg.Params
}

// Population returns the current generation. The agent slice is a copy but
// shares network storage with the monitor and must be treated as read-only.
func (m *Monitor) Population() Population {
	agents := append(m.population.Agents[:0:0], m.population.Agents...)
	return Population{Generation: m.population.Generation, Agents: agents}
}

// Tick advances the current generation by one step and returns the number
// of agents still alive. Hitting the tick limit fails every survivor.
func (m *Monitor) Tick(ctx context.Context) (int, error) {
	alive, err := m.racetrack.Step(ctx, m.population.Agents, m.population.Generation)
	if err != nil {
		return 0, err
	}
	if alive > 0 && m.cfg.Params.TickLimit > 0 && m.racetrack.Tick() >= m.cfg.Params.TickLimit {
		for i := range m.population.Agents {
			m.population.Agents[i].Fail()
		}
		alive = 0
	}
	return alive, nil
}

// RunGeneration ticks until every agent has failed, then breeds the next
// population and notifies observers.
func (m *Monitor) RunGeneration(ctx context.Context) (model.GenerationSummary, error) {
	for {
		alive, err := m.Tick(ctx)
		if err != nil {
			return model.GenerationSummary{}, err
		}
		if alive == 0 {
			break
		}
	}

	ticks := m.racetrack.Tick()
	next, stats, err := m.breeder.Next(m.rng, m.population)
	if err != nil {
		return model.GenerationSummary{}, fmt.Errorf("generation %d: %w", m.population.Generation, err)
	}
	summary := model.GenerationSummary{
		Generation:  m.population.Generation,
		MaxFitness:  stats.MaxFitness,
		MeanFitness: stats.MeanFitness,
		Diversity:   stats.Diversity,
		Ticks:       ticks,
	}
	m.population = next
	m.racetrack.Reset(next.Generation)

	for _, observer := range m.cfg.Observers {
		if err := observer.ObserveGeneration(ctx, summary); err != nil {
			return summary, fmt.Errorf("observe generation %d: %w", summary.Generation, err)
		}
	}
	return summary, nil
}

// Run executes the configured number of generations.
func (m *Monitor) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{Summaries: make([]model.GenerationSummary, 0, m.cfg.Generations)}
	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		summary, err := m.RunGeneration(ctx)
		if err != nil {
			return result, err
		}
		result.Summaries = append(result.Summaries, summary)
		if gen == 0 || summary.MaxFitness > result.BestFitness {
			result.BestFitness = summary.MaxFitness
		}
		result.FinalDiversity = summary.Diversity
	}
	return result, nil
}
