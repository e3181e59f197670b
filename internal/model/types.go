package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// GenerationSummary is emitted once per generation boundary. Fitness
// statistics are taken before the selection jitter is applied.
type GenerationSummary struct {
	Generation  int     `json:"generation"`
	MaxFitness  float64 `json:"max_fitness"`
	MeanFitness float64 `json:"mean_fitness"`
	Diversity   float64 `json:"diversity"`
	Ticks       int     `json:"ticks"`
}

// RunConfig is the resolved configuration a run was started with.
type RunConfig struct {
	Seed              int64  `json:"seed"`
	Generations       int    `json:"generations"`
	PopulationSize    int    `json:"population_size"`
	Architecture      []int  `json:"architecture"`
	Activation        string `json:"activation"`
	EliteSoftRate     int    `json:"elite_soft_rate"`
	HardRate          int    `json:"hard_rate"`
	ChildrenPerCouple int    `json:"children_per_couple"`
	DiversitySamples  int    `json:"diversity_samples"`
	TickLimit         int    `json:"tick_limit"`
	Track             string `json:"track"`
}

type RunRecord struct {
	VersionedRecord
	ID                   string    `json:"id"`
	CreatedAt            string    `json:"created_at"`
	Config               RunConfig `json:"config"`
	CompletedGenerations int       `json:"completed_generations"`
	BestFitness          float64   `json:"best_fitness"`
	FinalDiversity       float64   `json:"final_diversity"`
}
