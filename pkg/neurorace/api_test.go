package neurorace

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"neurorace/internal/evo"
)

func newTestClient(t *testing.T, storeKind string, artifactsDir string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:    storeKind,
		DBPath:       filepath.Join(t.TempDir(), "neurorace.db"),
		ArtifactsDir: artifactsDir,
		ExportsDir:   filepath.Join(t.TempDir(), "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func smallRun(runID string) RunRequest {
	return RunRequest{
		RunID:       runID,
		Seed:        11,
		Generations: 2,
		Population:  10,
		TickLimit:   120,
	}
}

func TestClientRunPersistsEverything(t *testing.T) {
	ctx := context.Background()
	artifactsDir := t.TempDir()
	client := newTestClient(t, "memory", artifactsDir)

	var seen []GenerationSummary
	req := smallRun("")
	req.OnGeneration = func(s GenerationSummary) { seen = append(seen, s) }
	summary, err := client.Run(ctx, req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || len(summary.Summaries) != 2 || len(seen) != 2 {
		t.Fatalf("unexpected run summary: %+v seen=%d", summary, len(seen))
	}
	for _, file := range []string{"run.json", "generations.csv"} {
		if _, err := os.Stat(filepath.Join(summary.ArtifactsDir, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}

	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID || runs[0].CompletedGenerations != 2 {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Config.PopulationSize != 10 || runs[0].Config.Track != "oval" {
		t.Fatalf("unexpected run config: %+v", runs[0])
	}
	createdAt, err := time.Parse(time.RFC3339Nano, runs[0].CreatedAt)
	if err != nil || !strings.Contains(runs[0].CreatedAt, ".") {
		t.Fatalf("expected sub-second created_at, got %q err=%v", runs[0].CreatedAt, err)
	}
	if createdAt.IsZero() {
		t.Fatalf("unexpected created_at: %q", runs[0].CreatedAt)
	}

	stored, err := client.Summaries(ctx, SummariesRequest{Latest: true})
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(stored) != 2 || stored[0] != summary.Summaries[0] || stored[1] != summary.Summaries[1] {
		t.Fatalf("stored summaries differ: %+v vs %+v", stored, summary.Summaries)
	}
	last, err := client.Summaries(ctx, SummariesRequest{RunID: summary.RunID, Limit: 1})
	if err != nil {
		t.Fatalf("summaries with limit: %v", err)
	}
	if len(last) != 1 || last[0].Generation != 2 {
		t.Fatalf("expected last generation only, got %+v", last)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.RunID != summary.RunID {
		t.Fatalf("unexpected export: %+v", exported)
	}
	if _, err := os.Stat(filepath.Join(exported.Directory, "generations.csv")); err != nil {
		t.Fatalf("expected exported series: %v", err)
	}
}

func TestClientRunIsDeterministic(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "memory", t.TempDir())
	first, err := client.Run(ctx, smallRun("a"))
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(ctx, smallRun("b"))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	for i := range first.Summaries {
		if first.Summaries[i] != second.Summaries[i] {
			t.Fatalf("generation %d differs: %+v vs %+v", i+1, first.Summaries[i], second.Summaries[i])
		}
	}
}

func TestClientFallsBackToArtifacts(t *testing.T) {
	ctx := context.Background()
	artifactsDir := t.TempDir()
	writer := newTestClient(t, "memory", artifactsDir)
	if _, err := writer.Run(ctx, smallRun("from-disk")); err != nil {
		t.Fatalf("run: %v", err)
	}

	reader := newTestClient(t, "memory", artifactsDir)
	runs, err := reader.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "from-disk" {
		t.Fatalf("expected run listed from artifacts, got %+v", runs)
	}
	summaries, err := reader.Summaries(ctx, SummariesRequest{RunID: "from-disk"})
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 summaries from csv, got %d", len(summaries))
	}
}

func TestClientSQLiteStore(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "sqlite", t.TempDir())
	summary, err := client.Run(ctx, smallRun("sqlite-run"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	stored, err := client.Summaries(ctx, SummariesRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored summaries, got %d", len(stored))
	}
}

func TestClientLogsGenerations(t *testing.T) {
	var log bytes.Buffer
	client, err := New(Options{ArtifactsDir: t.TempDir(), Log: &log})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if _, err := client.Run(context.Background(), smallRun("logged")); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.Count(log.String(), "generation="); got != 2 {
		t.Fatalf("expected 2 log lines, got %q", log.String())
	}
}

func TestClientRunRejectsInvalidRequests(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "memory", t.TempDir())

	req := smallRun("bad-pop")
	req.Population = 15
	if _, err := client.Run(ctx, req); !errors.Is(err, evo.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}

	req = smallRun("bad-selector")
	req.Selector = "roulette"
	if _, err := client.Run(ctx, req); err == nil {
		t.Fatal("expected unknown selector error")
	}

	req = smallRun("bad-generations")
	req.Generations = -1
	if _, err := client.Run(ctx, req); err == nil {
		t.Fatal("expected negative generations error")
	}
}

func TestClientRunIDResolution(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "memory", t.TempDir())
	if _, err := client.Summaries(ctx, SummariesRequest{}); err == nil {
		t.Fatal("expected missing run id error")
	}
	if _, err := client.Summaries(ctx, SummariesRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected conflicting selector error")
	}
	if _, err := client.Summaries(ctx, SummariesRequest{Latest: true}); err == nil {
		t.Fatal("expected no runs error")
	}
	if _, err := client.Summaries(ctx, SummariesRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestNewRejectsUnknownStore(t *testing.T) {
	if _, err := New(Options{StoreKind: "postgres"}); err == nil {
		t.Fatal("expected unsupported store error")
	}
}

func TestClientRunKeepsCompletedGenerationsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	artifactsDir := t.TempDir()
	client := newTestClient(t, "sqlite", artifactsDir)

	req := smallRun("cancelled")
	req.Generations = 10
	req.OnGeneration = func(s GenerationSummary) {
		if s.Generation == 2 {
			cancel()
		}
	}
	summary, err := client.Run(ctx, req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.RunID != "cancelled" || len(summary.Summaries) != 2 || summary.ArtifactsDir == "" {
		t.Fatalf("expected partial summary, got %+v", summary)
	}

	bg := context.Background()
	runs, err := client.Runs(bg, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].CompletedGenerations != 2 || runs[0].Config.Generations != 10 {
		t.Fatalf("expected record with 2 completed generations, got %+v", runs)
	}
	stored, err := client.Summaries(bg, SummariesRequest{RunID: "cancelled"})
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored summaries, got %d", len(stored))
	}

	reader := newTestClient(t, "memory", artifactsDir)
	fromDisk, err := reader.Summaries(bg, SummariesRequest{RunID: "cancelled"})
	if err != nil {
		t.Fatalf("summaries from artifacts: %v", err)
	}
	if len(fromDisk) != 2 {
		t.Fatalf("expected 2 summaries in artifacts, got %d", len(fromDisk))
	}
}

func TestClientRunDefaultsRatesIndependently(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, "memory", t.TempDir())

	hardRate := 0
	req := smallRun("hard-only")
	req.Generations = 1
	req.HardRate = &hardRate
	if _, err := client.Run(ctx, req); err != nil {
		t.Fatalf("run with only hard rate set: %v", err)
	}
	runs, err := client.Runs(ctx, RunsRequest{})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	cfg := runs[0].Config
	if cfg.HardRate != 0 || cfg.EliteSoftRate != evo.DefaultEliteSoftRate ||
		cfg.ChildrenPerCouple != evo.DefaultChildrenPerCouple || cfg.DiversitySamples != evo.DefaultDiversitySamples {
		t.Fatalf("unexpected rates: %+v", cfg)
	}
}
