package model

import (
	"fmt"
	"math"
	"time"
)

// Statistics aggregates the outcome of a completed run.
type Statistics struct {
	Total                int     `json:"total"`
	Completed            int     `json:"completed"`
	Failed               int     `json:"failed"`
	Pending              int     `json:"pending"`
	WithCost             int     `json:"with_cost"`
	Active               int     `json:"active"`
	TotalCost            Cents   `json:"total_cost"`
	AvgProcessingSeconds int     `json:"avg_processing_seconds"`
	SuccessRate          float64 `json:"success_rate"`
}

// RunReport is the aggregate produced at the end of a run. Immutable after
// creation except for metadata tagging.
type RunReport struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Expedientes []*Expediente     `json:"expedientes"`
	Statistics  Statistics        `json:"statistics"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ComputeStatistics folds the processed records into run statistics.
func ComputeStatistics(expedientes []*Expediente) Statistics {
	s := Statistics{Total: len(expedientes)}

	var totalProcessing time.Duration
	var processed int
	for _, e := range expedientes {
		switch e.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
		if e.HasCost() {
			s.WithCost++
			s.TotalCost += *e.Cost
		}
		if e.IsActive() {
			s.Active++
		}
		if !e.ProcessedAt.IsZero() && !e.CreatedAt.IsZero() {
			totalProcessing += e.ProcessedAt.Sub(e.CreatedAt)
			processed++
		}
	}

	s.Pending = s.Total - s.Completed - s.Failed
	if processed > 0 {
		s.AvgProcessingSeconds = int(math.Round(totalProcessing.Seconds() / float64(processed)))
	}
	if s.Total > 0 {
		s.SuccessRate = math.Round(float64(s.Completed)/float64(s.Total)*10000) / 100
	}
	return s
}

// NewRunReport builds the immutable run report from the processed records.
func NewRunReport(id string, expedientes []*Expediente) *RunReport {
	now := time.Now()
	return &RunReport{
		ID:          id,
		Title:       fmt.Sprintf("Reporte de expedientes - %s", now.Format("2006-01-02")),
		Expedientes: expedientes,
		Statistics:  ComputeStatistics(expedientes),
		CreatedAt:   now,
	}
}

// SetMetadata tags the report after creation.
func (r *RunReport) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
}
