package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"neurorace/internal/config"
	"neurorace/internal/storage"
	"neurorace/pkg/neurorace"
)

const exportsDir = "exports"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "summaries":
		return runSummaries(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "track":
		return runTrack(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind         *string
	dbPath       *string
	artifactsDir *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:         fs.String("store", storage.DefaultStoreKind, "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", config.DefaultDBPath, "sqlite database path"),
		artifactsDir: fs.String("artifacts-dir", config.DefaultArtifactsDir, "run artifacts directory"),
	}
}

func (f storeFlags) client() (*neurorace.Client, error) {
	return neurorace.New(neurorace.Options{
		StoreKind:    *f.kind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   exportsDir,
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional INI run config path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", 1, "rng seed")
	generations := fs.Int("gens", config.DefaultGenerations, "generation count")
	population := fs.Int("pop", 0, "population size, a multiple of 10 (0 uses the track default)")
	tickLimit := fs.Int("tick-limit", config.DefaultTickLimit, "max ticks per generation (0 runs until every car crashes)")
	selector := fs.String("selector", "shuffled", "couple selection: shuffled|ranked")
	quiet := fs.Bool("quiet", false, "suppress per-generation output")
	stores := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	cfg, err := loadOrDefaultConfig(*configPath)
	if err != nil {
		return err
	}
	applyRunFlags(&cfg, setFlags, runFlagValues{
		runID:        *runID,
		seed:         *seed,
		generations:  *generations,
		population:   *population,
		tickLimit:    *tickLimit,
		selector:     *selector,
		store:        *stores.kind,
		dbPath:       *stores.dbPath,
		artifactsDir: *stores.artifactsDir,
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := neurorace.New(neurorace.Options{
		StoreKind:    cfg.Storage.Store,
		DBPath:       cfg.Storage.DBPath,
		ArtifactsDir: cfg.Storage.ArtifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	req := runRequestFromConfig(cfg)
	progress := newProgress(os.Stdout, cfg.Run.Generations)
	if !*quiet {
		req.OnGeneration = progress.Generation
	}
	summary, err := client.Run(ctx, req)
	progress.Done()
	if err != nil {
		if summary.ArtifactsDir != "" {
			fmt.Printf("run stopped run_id=%s completed_gens=%d artifacts_dir=%s\n",
				summary.RunID, len(summary.Summaries), summary.ArtifactsDir)
		}
		return err
	}

	ticks := 0
	for _, s := range summary.Summaries {
		ticks += s.Ticks
	}
	fmt.Printf("run completed run_id=%s pop=%d gens=%d seed=%d ticks=%s elapsed=%s\n",
		summary.RunID, req.Population, len(summary.Summaries), req.Seed,
		humanize.Comma(int64(ticks)), summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("best_fitness=%.6f final_diversity=%.6f\n", summary.BestFitness, summary.FinalDiversity)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	stores := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := stores.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, neurorace.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s age=%q track=%s seed=%d pop=%d gens=%d/%d best_fitness=%.6f final_diversity=%.6f\n",
			r.ID,
			r.CreatedAt,
			createdAge(r.CreatedAt),
			r.Config.Track,
			r.Config.Seed,
			r.Config.PopulationSize,
			r.CompletedGenerations,
			r.Config.Generations,
			r.BestFitness,
			r.FinalDiversity,
		)
	}
	return nil
}

func runSummaries(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("summaries", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	limit := fs.Int("limit", 0, "only show the last N generations (0 shows all)")
	jsonOut := fs.Bool("json", false, "emit summaries as JSON")
	stores := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 0 {
		return errors.New("limit must be >= 0")
	}

	client, err := stores.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summaries, err := client.Summaries(ctx, neurorace.SummariesRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	for _, s := range summaries {
		fmt.Printf("generation=%d max_fitness=%.6f mean_fitness=%.6f diversity=%.6f ticks=%d\n",
			s.Generation, s.MaxFitness, s.MeanFitness, s.Diversity, s.Ticks)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", exportsDir, "export destination directory")
	stores := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := stores.client()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, neurorace.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runTrack(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit the layout as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	layout := neurorace.DefaultTrack()
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(layout)
	}
	fmt.Printf("track name=%s population=%d start_x=%.2f start_y=%.2f start_heading=%.2f chains=%d gates=%d\n",
		layout.Name, layout.PopulationSize,
		layout.Start.Position.X, layout.Start.Position.Y, layout.Start.Heading,
		len(layout.Chains), len(layout.Gates))
	for i, chain := range layout.Chains {
		fmt.Printf("chain=%d points=%d\n", i, len(chain))
	}
	for _, gate := range layout.Gates {
		fmt.Printf("gate=%d start=(%.2f,%.2f) end=(%.2f,%.2f)\n",
			gate.Index, gate.Start.X, gate.Start.Y, gate.End.X, gate.End.Y)
	}
	return nil
}

// createdAge renders a run timestamp relative to now, e.g. "3 minutes ago".
func createdAge(createdAt string) string {
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return "unknown"
	}
	return humanize.Time(t)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: neuroracectl <run|runs|summaries|export|track> [flags]", msg)
}
