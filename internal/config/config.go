package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"

	"neurorace/internal/evo"
	"neurorace/internal/geom"
	"neurorace/internal/nn"
	"neurorace/internal/storage"
	"neurorace/internal/track"
)

const (
	DefaultGenerations  = 50
	// DefaultTickLimit caps a generation at a few laps of the built-in track.
	// A tick_limit of 0 runs each generation until every car crashes.
	DefaultTickLimit    = 5000
	DefaultDBPath       = "neurorace.db"
	DefaultArtifactsDir = "runs"
)

// Config is a run configuration as read from an INI file.
type Config struct {
	Run        RunConfig
	Population PopulationConfig
	Track      TrackConfig
	Storage    StorageConfig
}

type RunConfig struct {
	RunID       string `ini:"run_id"`
	Seed        int64  `ini:"seed"`
	Generations int    `ini:"generations"`
	TickLimit   int    `ini:"tick_limit"` // 0 runs each generation until every car crashes
	Selector    string `ini:"selector"`
}

type PopulationConfig struct {
	// PopSize of 0 takes the track's population size.
	PopSize           int    `ini:"pop_size"`
	Architecture      []int  `ini:"architecture" delim:","`
	Activation        string `ini:"activation"`
	EliteSoftRate     int    `ini:"elite_soft_rate"`
	HardRate          int    `ini:"hard_rate"`
	ChildrenPerCouple int    `ini:"children_per_couple"`
	DiversitySamples  int    `ini:"diversity_samples"`
}

// TrackConfig overrides the built-in layout's start pose. Only keys present
// in the file take effect.
type TrackConfig struct {
	StartX       float64 `ini:"start_x"`
	StartY       float64 `ini:"start_y"`
	StartHeading float64 `ini:"start_heading"`

	hasX, hasY, hasHeading bool
}

type StorageConfig struct {
	Store        string `ini:"store"`
	DBPath       string `ini:"db_path"`
	ArtifactsDir string `ini:"artifacts_dir"`
}

func Default() Config {
	params := evo.DefaultParams(0)
	return Config{
		Run: RunConfig{
			Seed:        1,
			Generations: DefaultGenerations,
			TickLimit:   DefaultTickLimit,
			Selector:    "shuffled",
		},
		Population: PopulationConfig{
			Architecture:      params.Architecture,
			Activation:        params.Activation,
			EliteSoftRate:     params.EliteSoftRate,
			HardRate:          params.HardRate,
			ChildrenPerCouple: params.ChildrenPerCouple,
			DiversitySamples:  params.DiversitySamples,
		},
		Storage: StorageConfig{
			Store:        storage.DefaultStoreKind,
			DBPath:       DefaultDBPath,
			ArtifactsDir: DefaultArtifactsDir,
		},
	}
}

// Load reads an INI file on top of Default.
func Load(path string) (Config, error) {
	cfg, err := load(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config file '%s': %w", path, err)
	}
	return cfg, nil
}

// Parse reads INI text on top of Default.
func Parse(data []byte) (Config, error) {
	return load(data)
}

func load(source any) (Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment:         true,
		UnescapeValueCommentSymbols: true,
	}, source)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := file.Section("Run").StrictMapTo(&cfg.Run); err != nil {
		return Config{}, fmt.Errorf("failed to map [Run] section: %w", err)
	}
	if err := file.Section("Population").StrictMapTo(&cfg.Population); err != nil {
		return Config{}, fmt.Errorf("failed to map [Population] section: %w", err)
	}
	if err := file.Section("Track").StrictMapTo(&cfg.Track); err != nil {
		return Config{}, fmt.Errorf("failed to map [Track] section: %w", err)
	}
	if err := file.Section("Storage").StrictMapTo(&cfg.Storage); err != nil {
		return Config{}, fmt.Errorf("failed to map [Storage] section: %w", err)
	}

	trackSection := file.Section("Track")
	cfg.Track.hasX = trackSection.HasKey("start_x")
	cfg.Track.hasY = trackSection.HasKey("start_y")
	cfg.Track.hasHeading = trackSection.HasKey("start_heading")

	cfg.Run.RunID = strings.TrimSpace(cfg.Run.RunID)
	cfg.Run.Selector = strings.ToLower(strings.TrimSpace(cfg.Run.Selector))
	cfg.Population.Activation = strings.ToLower(strings.TrimSpace(cfg.Population.Activation))
	cfg.Storage.Store = strings.ToLower(strings.TrimSpace(cfg.Storage.Store))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Run.Generations <= 0 {
		return fmt.Errorf("generations must be > 0, got %d", c.Run.Generations)
	}
	if _, err := evo.SelectorByName(c.Run.Selector); err != nil {
		return err
	}
	switch c.Storage.Store {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Storage.Store)
	}
	if c.Population.PopSize == 0 {
		return nil
	}
	return c.Params(0).Validate()
}

// Params builds GA parameters. trackPopulation is used when the file does
// not set pop_size.
func (c Config) Params(trackPopulation int) evo.Params {
	size := c.Population.PopSize
	if size == 0 {
		size = trackPopulation
	}
	activation := c.Population.Activation
	if activation == "" {
		activation = nn.DefaultActivation
	}
	return evo.Params{
		PopulationSize:    size,
		Architecture:      append([]int(nil), c.Population.Architecture...),
		Activation:        activation,
		EliteSoftRate:     c.Population.EliteSoftRate,
		HardRate:          c.Population.HardRate,
		ChildrenPerCouple: c.Population.ChildrenPerCouple,
		DiversitySamples:  c.Population.DiversitySamples,
		TickLimit:         c.Run.TickLimit,
	}
}

// ApplyTrack returns layout with any configured start pose overrides.
func (c Config) ApplyTrack(layout track.Layout) track.Layout {
	start := layout.Start
	if c.Track.hasX {
		start.Position.X = c.Track.StartX
	}
	if c.Track.hasY {
		start.Position.Y = c.Track.StartY
	}
	if c.Track.hasHeading {
		start.Heading = geom.NormalizeDegrees(c.Track.StartHeading)
	}
	layout.Start = start
	return layout
}
