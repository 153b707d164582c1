// Package store persists census runs, their annotated rows and grouped
// asset totals.
package store

import (
	"context"

	"github.com/sells-group/census-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Year   string          `json:"year,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

const defaultListLimit = 100

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

// Store defines the persistence interface for census runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, year, dataset string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveRows(ctx context.Context, runID string, rows []model.AnnotatedRow) (int64, error)
	SaveAggregate(ctx context.Context, runID string, dimension model.Field, totals map[string]int64) error
	GetAggregate(ctx context.Context, runID string, dimension model.Field) ([]model.AggregateEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// rowColumns is the column order used when persisting annotated rows.
var rowColumns = []string{"run_id", "seq", "scale", "primary_code", "roc_sic", "asset", "isic"}

// aggregateColumns is the column order of run_aggregates.
var aggregateColumns = []string{"run_id", "dimension", "group_key", "total"}
