package main

import (
	"neurorace/internal/config"
	"neurorace/pkg/neurorace"
)

type runFlagValues struct {
	runID        string
	seed         int64
	generations  int
	population   int
	tickLimit    int
	selector     string
	store        string
	dbPath       string
	artifactsDir string
}

func loadOrDefaultConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// applyRunFlags lets explicitly set flags win over values from the config file.
func applyRunFlags(cfg *config.Config, setFlags map[string]bool, v runFlagValues) {
	if setFlags["run-id"] {
		cfg.Run.RunID = v.runID
	}
	if setFlags["seed"] {
		cfg.Run.Seed = v.seed
	}
	if setFlags["gens"] {
		cfg.Run.Generations = v.generations
	}
	if setFlags["pop"] {
		cfg.Population.PopSize = v.population
	}
	if setFlags["tick-limit"] {
		cfg.Run.TickLimit = v.tickLimit
	}
	if setFlags["selector"] {
		cfg.Run.Selector = v.selector
	}
	if setFlags["store"] {
		cfg.Storage.Store = v.store
	}
	if setFlags["db-path"] {
		cfg.Storage.DBPath = v.dbPath
	}
	if setFlags["artifacts-dir"] {
		cfg.Storage.ArtifactsDir = v.artifactsDir
	}
}

func runRequestFromConfig(cfg config.Config) neurorace.RunRequest {
	layout := cfg.ApplyTrack(neurorace.DefaultTrack())
	params := cfg.Params(layout.PopulationSize)
	start := layout.Start
	return neurorace.RunRequest{
		RunID:             cfg.Run.RunID,
		Seed:              cfg.Run.Seed,
		Generations:       cfg.Run.Generations,
		Population:        params.PopulationSize,
		TickLimit:         params.TickLimit,
		Architecture:      params.Architecture,
		Activation:        params.Activation,
		Selector:          cfg.Run.Selector,
		EliteSoftRate:     &params.EliteSoftRate,
		HardRate:          &params.HardRate,
		ChildrenPerCouple: params.ChildrenPerCouple,
		DiversitySamples:  &params.DiversitySamples,
		Start:             &start,
	}
}
