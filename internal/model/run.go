package model

import "time"

// RunStatus is the lifecycle state of a stored run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted record of one batch execution.
type Run struct {
	ID         string    `json:"id"`
	SourceFile string    `json:"source_file"`
	Status     RunStatus `json:"status"`
	Total      int       `json:"total"`
	Stats      *RunStats `json:"stats,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
