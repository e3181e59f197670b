package storage

import (
	"context"

	"neurorace/internal/model"
)

// Store persists run records and their per-generation summaries.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first; equal timestamps order by id,
	// largest first.
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	// AppendGenerationSummary replaces any summary already stored for the
	// same generation.
	AppendGenerationSummary(ctx context.Context, runID string, summary model.GenerationSummary) error
	GetGenerationSummaries(ctx context.Context, runID string) ([]model.GenerationSummary, bool, error)
}
