package neurorace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ncruces/go-strftime"

	"neurorace/internal/evo"
	"neurorace/internal/geom"
	"neurorace/internal/model"
	"neurorace/internal/scape"
	"neurorace/internal/stats"
	"neurorace/internal/storage"
	"neurorace/internal/track"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "neurorace.db"
	defaultGenerations  = 50

	// createdAtFormat is RFC 3339 with fixed-width microseconds, so it sorts
	// as text.
	createdAtFormat = "%Y-%m-%dT%H:%M:%S.%fZ"
)

type (
	GenerationSummary = model.GenerationSummary
	RunRecord         = model.RunRecord
	Pose              = geom.Pose
	Layout            = track.Layout
	Frame             = scape.Frame
	FrameSink         = scape.FrameSink
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	// Log receives one key=value line per generation when set.
	Log io.Writer
}

type Client struct {
	store storage.Store
	log   io.Writer

	initOnce sync.Once
	initErr  error

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	RunID string
	Seed  int64
	// Generations of 0 runs the default 50; negative values are rejected.
	Generations int
	// Population of 0 takes the track's population size.
	Population int
	// TickLimit of 0 lets a generation run until every car crashes, which
	// may never happen once a driver learns to lap. Callers relying on it
	// should cancel ctx to stop the run.
	TickLimit    int
	Architecture []int
	Activation   string
	Selector     string
	// Each of the following falls back to its GA default on its own when
	// nil (or 0 for ChildrenPerCouple).
	EliteSoftRate     *int
	HardRate          *int
	ChildrenPerCouple int
	DiversitySamples  *int
	// Start overrides the track's start pose.
	Start        *Pose
	Sink         FrameSink
	OnGeneration func(GenerationSummary)
}

type RunSummary struct {
	RunID          string
	ArtifactsDir   string
	Summaries      []GenerationSummary
	BestFitness    float64
	FinalDiversity float64
	Elapsed        time.Duration
}

type RunsRequest struct {
	Limit int
}

type SummariesRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          opts.Log,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// DefaultTrack returns the bundled oval layout.
func DefaultTrack() Layout {
	return track.Default()
}

// Run trains a population on the default track for req.Generations
// generations, persisting the run record, every generation summary and the
// run's artifact files. When the run stops early, as on cancellation, the
// generations completed so far are still persisted and returned alongside
// the error.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}
	if req.Generations < 0 {
		return RunSummary{}, fmt.Errorf("generations must be >= 0, got %d", req.Generations)
	}
	if req.Generations == 0 {
		req.Generations = defaultGenerations
	}
	selector, err := evo.SelectorByName(req.Selector)
	if err != nil {
		return RunSummary{}, err
	}

	layout := track.Default()
	if req.Start != nil {
		layout.Start = *req.Start
	}
	tr, err := track.New(layout)
	if err != nil {
		return RunSummary{}, err
	}
	params := paramsFromRequest(req, tr.PopulationSize())
	if err := params.Validate(); err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	runID := req.RunID
	if runID == "" {
		runID = newRunID(now)
	}
	record := model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAt:       strftime.Format(createdAtFormat, now),
		Config: model.RunConfig{
			Seed:              req.Seed,
			Generations:       req.Generations,
			PopulationSize:    params.PopulationSize,
			Architecture:      append([]int(nil), params.Architecture...),
			Activation:        params.Activation,
			EliteSoftRate:     params.EliteSoftRate,
			HardRate:          params.HardRate,
			ChildrenPerCouple: params.ChildrenPerCouple,
			DiversitySamples:  params.DiversitySamples,
			TickLimit:         params.TickLimit,
			Track:             tr.Name(),
		},
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run %s: %w", runID, err)
	}

	observers := []evo.Observer{
		evo.ObserverFunc(func(ctx context.Context, s model.GenerationSummary) error {
			return c.store.AppendGenerationSummary(ctx, runID, s)
		}),
	}
	if c.log != nil {
		observers = append(observers, evo.LogObserver{W: c.log})
	}
	if req.OnGeneration != nil {
		observers = append(observers, evo.ObserverFunc(func(_ context.Context, s model.GenerationSummary) error {
			req.OnGeneration(s)
			return nil
		}))
	}

	monitor, err := evo.NewMonitor(evo.MonitorConfig{
		Track:       tr,
		Params:      params,
		Seed:        req.Seed,
		Generations: req.Generations,
		Sink:        req.Sink,
		Selector:    selector,
		Observers:   observers,
	})
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now()
	result, runErr := monitor.Run(ctx)

	// Completed generations are kept even when the run was cancelled.
	saveCtx := context.WithoutCancel(ctx)
	record.CompletedGenerations = len(result.Summaries)
	record.BestFitness = result.BestFitness
	record.FinalDiversity = result.FinalDiversity
	if err := c.store.SaveRun(saveCtx, record); err != nil && runErr == nil {
		runErr = fmt.Errorf("save run %s: %w", runID, err)
	}
	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{Run: record, Summaries: result.Summaries})
	if err != nil && runErr == nil {
		runErr = err
	}

	summary := RunSummary{
		RunID:          runID,
		Summaries:      result.Summaries,
		BestFitness:    result.BestFitness,
		FinalDiversity: result.FinalDiversity,
		Elapsed:        time.Since(started),
	}
	if runDir != "" {
		summary.ArtifactsDir = filepath.Clean(runDir)
	}
	return summary, runErr
}

// Runs lists runs newest first. When the store holds nothing, as with a
// fresh memory store, the artifacts directory is listed instead.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunRecord, error) {
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		runs, err = stats.ListRuns(c.artifactsDir)
		if err != nil {
			return nil, err
		}
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}
	return runs, nil
}

// Summaries returns a run's generation summaries in generation order, from
// the store or else from the run's CSV series.
func (c *Client) Summaries(ctx context.Context, req SummariesRequest) ([]GenerationSummary, error) {
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}

	summaries, ok, err := c.store.GetGenerationSummaries(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		summaries, ok, err = stats.ReadGenerationSeries(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("generation summaries not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(summaries) > req.Limit {
		summaries = summaries[len(summaries)-req.Limit:]
	}
	return summaries, nil
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if runID != "" {
		if err := c.ensureStore(ctx); err != nil {
			return "", err
		}
		return runID, nil
	}
	runs, err := c.Runs(ctx, RunsRequest{Limit: 1})
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[0].ID, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initOnce.Do(func() {
		c.initErr = c.store.Init(ctx)
	})
	return c.initErr
}

func paramsFromRequest(req RunRequest, trackPopulation int) evo.Params {
	size := req.Population
	if size == 0 {
		size = trackPopulation
	}
	params := evo.DefaultParams(size)
	if len(req.Architecture) > 0 {
		params.Architecture = append([]int(nil), req.Architecture...)
	}
	if req.Activation != "" {
		params.Activation = req.Activation
	}
	if req.EliteSoftRate != nil {
		params.EliteSoftRate = *req.EliteSoftRate
	}
	if req.HardRate != nil {
		params.HardRate = *req.HardRate
	}
	if req.ChildrenPerCouple != 0 {
		params.ChildrenPerCouple = req.ChildrenPerCouple
	}
	if req.DiversitySamples != nil {
		params.DiversitySamples = *req.DiversitySamples
	}
	params.TickLimit = req.TickLimit
	return params
}

// newRunID is a sortable timestamp plus a short random suffix.
func newRunID(now time.Time) string {
	return strftime.Format("%Y%m%d-%H%M%S", now) + "-" + uuid.NewString()[:8]
}
