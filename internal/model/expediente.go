package model

import "time"

// Status represents the processing state of an expediente within a run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Validation is the label written back to the spreadsheet. Values are the
// portal's Spanish labels so the output file matches what operators expect.
type Validation string

const (
	ValidationAccepted Validation = "ACEPTADO"
	ValidationPending  Validation = "PENDIENTES"
	ValidationNotFound Validation = "NO ENCONTRADO"
)

// Expediente is one unit of work: a case identifier plus the previously
// saved cost to reconcile against the portal's authoritative cost.
type Expediente struct {
	ID        string `json:"id"`
	SavedCost Cents  `json:"saved_cost"`
	Name      string `json:"name,omitempty"`

	Status Status `json:"status"`

	// Result fields, populated when a search outcome is folded in.
	Cost             *Cents     `json:"cost,omitempty"`
	PortalStatus     string     `json:"portal_status,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	RegistrationDate string     `json:"registration_date,omitempty"`
	Service          string     `json:"service,omitempty"`
	Subservice       string     `json:"subservice,omitempty"`
	Validation       Validation `json:"validation,omitempty"`
	RuleApplied      int        `json:"rule_applied,omitempty"`
	ValidationTime   time.Time  `json:"validation_time,omitzero"`
	Error            string     `json:"error,omitempty"`

	ProcessedAt time.Time `json:"processed_at,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewExpediente creates a pending expediente from a source row.
func NewExpediente(id string, savedCost Cents, name string) *Expediente {
	return &Expediente{
		ID:        id,
		SavedCost: savedCost,
		Name:      name,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// MarkProcessed folds a successful search outcome into the record.
func (e *Expediente) MarkProcessed(o *SearchOutcome) {
	e.Status = StatusCompleted
	e.Cost = o.Cost
	e.PortalStatus = o.PortalStatus
	e.Notes = o.Notes
	e.RegistrationDate = o.RegistrationDate
	e.Service = o.Service
	e.Subservice = o.Subservice
	e.Validation = o.Validation
	e.RuleApplied = o.RuleApplied
	e.ValidationTime = o.ValidationTime
	e.ProcessedAt = time.Now()
}

// MarkNotFound folds an empty outcome. The portal had no row for the id, so
// the record keeps its pending status instead of counting as completed, while
// the NO ENCONTRADO label and placeholder fields still reach the output file.
func (e *Expediente) MarkNotFound(o *SearchOutcome) {
	e.MarkProcessed(o)
	e.Status = StatusPending
}

// MarkFailed records a per-record failure. The row is still written back,
// clearly marked, so a failed record is visible in the output file.
func (e *Expediente) MarkFailed(errMsg string) {
	e.Status = StatusFailed
	e.Error = errMsg
	e.Validation = ValidationNotFound
	e.Cost = nil
	e.PortalStatus = "N/A"
	e.Notes = "N/A"
	e.RegistrationDate = "N/A"
	e.Service = "N/A"
	e.Subservice = "N/A"
	e.RuleApplied = 0
	e.ValidationTime = time.Now()
	e.ProcessedAt = time.Now()
}

// HasCost reports whether the portal returned a meaningful cost.
func (e *Expediente) HasCost() bool {
	return e.Cost != nil
}

// IsActive reports whether the portal status marks the case as open.
func (e *Expediente) IsActive() bool {
	return e.PortalStatus == "Activo" || e.PortalStatus == "En trámite"
}

// SearchOutcome is the result of querying the portal for one expediente.
// It is folded into the record by the runner and never persisted on its own.
type SearchOutcome struct {
	ExpedienteID     string
	Success          bool
	Cost             *Cents
	PortalStatus     string
	Notes            string
	RegistrationDate string
	Service          string
	Subservice       string
	Validation       Validation
	RuleApplied      int
	ValidationTime   time.Time
	ProcessingTime   time.Duration
	Error            string
}

// SuccessOutcome builds an outcome for a row with meaningful cost content.
func SuccessOutcome(id string, cost Cents) *SearchOutcome {
	return &SearchOutcome{
		ExpedienteID:   id,
		Success:        true,
		Cost:           &cost,
		Validation:     ValidationPending,
		ValidationTime: time.Now(),
	}
}

// EmptyOutcome builds the "no results" outcome. Not an error: the portal
// simply has nothing for this expediente.
func EmptyOutcome(id string) *SearchOutcome {
	return &SearchOutcome{
		ExpedienteID:     id,
		Success:          true,
		PortalStatus:     "N/A",
		Notes:            "N/A",
		RegistrationDate: "N/A",
		Service:          "N/A",
		Subservice:       "N/A",
		Validation:       ValidationNotFound,
		ValidationTime:   time.Now(),
	}
}

// FailureOutcome builds the outcome for a record whose search failed.
func FailureOutcome(id string, err error, elapsed time.Duration) *SearchOutcome {
	o := EmptyOutcome(id)
	o.Success = false
	o.Error = err.Error()
	o.ProcessingTime = elapsed
	return o
}

// RunStats are the session counters, incremented in lockstep with the
// engine's phases and read-only everywhere else.
type RunStats struct {
	TotalReviewed int `json:"total_reviewed"`
	TotalWithCost int `json:"total_with_cost"`
	TotalAccepted int `json:"total_accepted"`
}
