// Package runner orchestrates a full reconciliation run: load the source
// spreadsheet, drive the portal session record by record, write results back
// in batches and persist the run history.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ike-ops/expedientes-cli/internal/automation"
	"github.com/ike-ops/expedientes-cli/internal/config"
	"github.com/ike-ops/expedientes-cli/internal/excel"
	"github.com/ike-ops/expedientes-cli/internal/model"
	"github.com/ike-ops/expedientes-cli/internal/store"
)

// State is the runner lifecycle. Transitions are strictly forward within a
// run; a finished runner can start a new run from idle.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateFinalizing   State = "finalizing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// ErrAlreadyRunning means a second run was started while one is in flight.
var ErrAlreadyRunning = eris.New("runner: a run is already in progress")

// Engine is the portal session the runner drives, one record at a time.
type Engine interface {
	Initialize(ctx context.Context) error
	Login(ctx context.Context, creds automation.Credentials) error
	SearchExpediente(ctx context.Context, id string, savedCost model.Cents) *model.SearchOutcome
	Stats() model.RunStats
	Close(ctx context.Context) error
}

// RecordError is one failed record in the run result.
type RecordError struct {
	ExpedienteID string `json:"expediente_id"`
	Message      string `json:"message"`
}

// Result summarizes a finished run.
type Result struct {
	RunID          string         `json:"run_id"`
	Success        bool           `json:"success"`
	ProcessedCount int            `json:"processed_count"`
	SuccessCount   int            `json:"success_count"`
	ErrorCount     int            `json:"error_count"`
	Errors         []RecordError  `json:"errors,omitempty"`
	Stats          model.RunStats `json:"stats"`
	Report         *model.RunReport
}

// Runner executes one batch at a time over a single browser session.
type Runner struct {
	cfg      config.RunnerConfig
	engine   Engine
	store    store.Store
	notifier Notifier

	mu    sync.Mutex
	state State

	// Source and sink, swappable in tests.
	read  func(path string) ([]*model.Expediente, error)
	write func(path string, expedientes []*model.Expediente) (int, error)
}

// New creates a runner. The store may be nil when history is disabled.
func New(cfg config.RunnerConfig, engine Engine, st store.Store, notifier Notifier) *Runner {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Runner{
		cfg:      cfg,
		engine:   engine,
		store:    st,
		notifier: notifier,
		state:    StateIdle,
		read:     excel.ReadExpedientes,
		write:    excel.WriteBack,
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run processes every expediente in the source file serially. Record-level
// failures are tolerated and reported; only session-level failures (source
// unreadable, browser missing, login rejected) abort the run.
func (r *Runner) Run(ctx context.Context, sourcePath string, creds automation.Credentials) (*Result, error) {
	r.mu.Lock()
	if r.state == StateInitializing || r.state == StateRunning || r.state == StateFinalizing {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	r.state = StateInitializing
	r.mu.Unlock()

	result, err := r.run(ctx, sourcePath, creds)
	if err != nil {
		r.setState(StateFailed)
		return result, err
	}
	r.setState(StateCompleted)
	return result, nil
}

func (r *Runner) run(ctx context.Context, sourcePath string, creds automation.Credentials) (*Result, error) {
	log := zap.L().With(zap.String("source", sourcePath))

	expedientes, err := r.read(sourcePath)
	if err != nil {
		return nil, err
	}
	total := len(expedientes)
	log.Info("run starting", zap.Int("total", total))

	var runID string
	if r.store != nil {
		run, err := r.store.CreateRun(ctx, sourcePath, total)
		if err != nil {
			return nil, err
		}
		runID = run.ID
	}

	if err := r.engine.Initialize(ctx); err != nil {
		r.recordRunStatus(ctx, runID, model.RunStatusFailed)
		return nil, err
	}
	defer func() {
		if closeErr := r.engine.Close(context.WithoutCancel(ctx)); closeErr != nil {
			log.Warn("browser close failed", zap.Error(closeErr))
		}
	}()

	if err := r.engine.Login(ctx, creds); err != nil {
		r.recordRunStatus(ctx, runID, model.RunStatusFailed)
		return nil, err
	}

	r.setState(StateRunning)

	result := &Result{RunID: runID}
	limiter := rate.NewLimiter(rate.Every(time.Duration(r.cfg.DelaySecs)*time.Second), 1)
	batchSize := r.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5
	}

	var pending []*model.Expediente
	for i, e := range expedientes {
		if err := limiter.Wait(ctx); err != nil {
			// Cancellation mid-run: flush what we have so the spreadsheet
			// reflects every record processed so far.
			r.flush(ctx, sourcePath, runID, pending, log)
			r.recordRunStatus(ctx, runID, model.RunStatusFailed)
			return result, eris.Wrap(err, "runner: interrupted")
		}

		e.Status = model.StatusProcessing

		outcome := r.engine.SearchExpediente(ctx, e.ID, e.SavedCost)
		switch {
		case !outcome.Success:
			e.MarkFailed(outcome.Error)
			result.ErrorCount++
			result.Errors = append(result.Errors, RecordError{ExpedienteID: e.ID, Message: outcome.Error})
		case outcome.Validation == model.ValidationNotFound:
			// Empty result: the record stays pending so the report does not
			// count it among the completed ones.
			e.MarkNotFound(outcome)
		default:
			e.MarkProcessed(outcome)
		}
		result.ProcessedCount++

		r.notifier.Notify(r.progress(i+1, total, e.ID, fmt.Sprintf("Expediente %s procesado", e.ID), false))

		pending = append(pending, e)
		if len(pending) >= batchSize || i == total-1 {
			r.flush(ctx, sourcePath, runID, pending, log)
			pending = nil
		}
	}

	r.setState(StateFinalizing)

	result.SuccessCount = result.ProcessedCount - result.ErrorCount
	result.Success = true
	result.Stats = r.engine.Stats()
	result.Report = model.NewRunReport(runID, expedientes)
	result.Report.SetMetadata("source_file", sourcePath)

	if r.store != nil && runID != "" {
		if err := r.store.CompleteRun(ctx, runID, model.RunStatusCompleted, result.Stats); err != nil {
			log.Warn("run history update failed", zap.Error(err))
		}
	}

	r.notifier.Notify(r.progress(total, total, "", "Proceso completado", true))
	log.Info("run finished",
		zap.Int("processed", result.ProcessedCount),
		zap.Int("errors", result.ErrorCount),
		zap.Int("accepted", result.Stats.TotalAccepted),
	)
	return result, nil
}

// flush writes a batch back to the spreadsheet and the history store. Flush
// failures are logged, not fatal: the records stay in memory and the final
// report still carries them.
func (r *Runner) flush(ctx context.Context, sourcePath, runID string, batch []*model.Expediente, log *zap.Logger) {
	if len(batch) == 0 {
		return
	}
	if _, err := r.write(sourcePath, batch); err != nil {
		log.Error("spreadsheet write-back failed", zap.Int("batch", len(batch)), zap.Error(err))
	}
	if r.store != nil && runID != "" {
		if err := r.store.SaveOutcomes(ctx, runID, batch); err != nil {
			log.Error("history write failed", zap.Int("batch", len(batch)), zap.Error(err))
		}
	}
}

func (r *Runner) recordRunStatus(ctx context.Context, runID string, status model.RunStatus) {
	if r.store == nil || runID == "" {
		return
	}
	if err := r.store.CompleteRun(context.WithoutCancel(ctx), runID, status, r.engine.Stats()); err != nil {
		zap.L().Warn("run history update failed", zap.Error(err))
	}
}

func (r *Runner) progress(current, total int, id, message string, final bool) Progress {
	p := Progress{
		Current:   current,
		Total:     total,
		CurrentID: id,
		Message:   message,
		Stats:     r.engine.Stats(),
		Final:     final,
	}
	if total > 0 {
		p.Percentage = float64(current) / float64(total) * 100
	}
	return p
}
