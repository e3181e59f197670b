package storage

import (
	"context"
	"testing"

	"neurorace/internal/model"
)

func testRun(id, createdAt string) model.RunRecord {
	return model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAt:       createdAt,
		Config: model.RunConfig{
			Seed:           7,
			Generations:    3,
			PopulationSize: 20,
			Architecture:   []int{3, 5, 2},
			Activation:     "sigmoid",
			Track:          "oval",
		},
		CompletedGenerations: 3,
		BestFitness:          412.5,
		FinalDiversity:       8.25,
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}

	older := testRun("run-a", "2026-01-02T10:00:00Z")
	newer := testRun("run-b", "2026-01-03T10:00:00Z")
	for _, run := range []model.RunRecord{older, newer} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}

	loaded, ok, err := store.GetRun(ctx, older.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatalf("expected run %s", older.ID)
	}
	if loaded.BestFitness != older.BestFitness || loaded.Config.Seed != older.Config.Seed || len(loaded.Config.Architecture) != 3 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	older.BestFitness = 500
	if err := store.SaveRun(ctx, older); err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != newer.ID || runs[1].ID != older.ID {
		t.Fatalf("expected newest run first, got %+v", runs)
	}
	if runs[1].BestFitness != 500 {
		t.Fatalf("expected overwritten run, got %+v", runs[1])
	}

	if _, ok, err := store.GetGenerationSummaries(ctx, older.ID); err != nil || ok {
		t.Fatalf("expected no summaries yet, ok=%t err=%v", ok, err)
	}
	for _, s := range []model.GenerationSummary{
		{Generation: 2, MaxFitness: 30, MeanFitness: 12, Diversity: 9, Ticks: 40},
		{Generation: 1, MaxFitness: 20, MeanFitness: 10, Diversity: 11, Ticks: 35},
		{Generation: 2, MaxFitness: 31, MeanFitness: 13, Diversity: 8.5, Ticks: 41},
	} {
		if err := store.AppendGenerationSummary(ctx, older.ID, s); err != nil {
			t.Fatalf("append summary: %v", err)
		}
	}
	summaries, ok, err := store.GetGenerationSummaries(ctx, older.ID)
	if err != nil {
		t.Fatalf("get summaries: %v", err)
	}
	if !ok || len(summaries) != 2 {
		t.Fatalf("expected 2 summaries, got %+v", summaries)
	}
	if summaries[0].Generation != 1 || summaries[1].Generation != 2 || summaries[1].MaxFitness != 31 {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}

	// Run ids lead with their start time, so equal timestamps fall back to
	// the larger id.
	first := testRun("20260105-100000-aaaaaaaa", "2026-01-05T10:00:00Z")
	second := testRun("20260105-100000-bbbbbbbb", "2026-01-05T10:00:00Z")
	for _, run := range []model.RunRecord{second, first} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.ID, err)
		}
	}
	runs, err = store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 4 || runs[0].ID != second.ID || runs[1].ID != first.ID || runs[2].ID != newer.ID {
		t.Fatalf("expected id tie-break on equal timestamps, got %+v", runs)
	}
}
