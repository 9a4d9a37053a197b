// Package store persists run history so completed batches can be listed,
// inspected and re-exported after the fact.
package store

import (
	"context"

	"github.com/ike-ops/expedientes-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, sourceFile string, total int) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats model.RunStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Outcomes are saved in write-back batches, so a crashed run still has
	// every batch flushed before the crash.
	SaveOutcomes(ctx context.Context, runID string, expedientes []*model.Expediente) error
	ListOutcomes(ctx context.Context, runID string) ([]*model.Expediente, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
