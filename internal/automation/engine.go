// Package automation drives one authenticated portal session end-to-end for
// a batch of expedientes: login, per-record search and scrape, and the
// accept/confirm sequence for automatic liberation.
package automation

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ike-ops/expedientes-cli/internal/config"
	"github.com/ike-ops/expedientes-cli/internal/model"
	"github.com/ike-ops/expedientes-cli/internal/policy"
)

// Result row cell layout, by fixed column index.
const (
	cellCost         = 2
	cellStatus       = 3
	cellNotes        = 4
	cellRegistration = 5
	cellService      = 6
	cellSubservice   = 7
)

var (
	// ErrNotInitialized means a search was attempted before Initialize.
	ErrNotInitialized = eris.New("automation: engine not initialized")
	// ErrNoCredentials means the credential collaborator returned nothing.
	ErrNoCredentials = eris.New("automation: no credentials configured")
)

// Credentials authenticate the portal session.
type Credentials struct {
	Username string
	Password string
}

// Engine owns a single browser session for the duration of a run. It is not
// safe for concurrent use; the run loop is strictly serial.
type Engine struct {
	cfg       config.PortalConfig
	policyCfg policy.Config
	portal    Portal
	newPortal func(ctx context.Context, cfg config.PortalConfig) (Portal, error)
	stats     model.RunStats
}

// NewEngine creates an engine for one run. The release policy configuration
// is fixed for the run's duration.
func NewEngine(cfg config.PortalConfig, policyCfg policy.Config) *Engine {
	return &Engine{
		cfg:       cfg,
		policyCfg: policyCfg,
		newPortal: NewPortal,
	}
}

// Initialize launches the browser and opens the session page. A missing
// browser binary is fatal for the whole run.
func (e *Engine) Initialize(ctx context.Context) error {
	portal, err := e.newPortal(ctx, e.cfg)
	if err != nil {
		return err
	}
	e.portal = portal
	e.stats = model.RunStats{}
	return nil
}

// Login authenticates the session. Fatal for the run on failure.
func (e *Engine) Login(ctx context.Context, creds Credentials) error {
	if e.portal == nil {
		return ErrNotInitialized
	}
	if creds.Username == "" || creds.Password == "" {
		return ErrNoCredentials
	}
	return e.portal.Login(ctx, creds.Username, creds.Password)
}

// SearchExpediente performs the per-record unit of work: navigate, search,
// scrape the first result row, reconcile against the saved cost and, when
// the policy says release, run the liberation sequence. Any failure is
// converted into a failure outcome for this record only; it never aborts
// the session.
func (e *Engine) SearchExpediente(ctx context.Context, id string, savedCost model.Cents) (outcome *model.SearchOutcome) {
	start := time.Now()
	log := zap.L().With(zap.String("expediente", id))

	defer func() {
		if r := recover(); r != nil {
			log.Error("search panicked", zap.Any("panic", r))
			outcome = model.FailureOutcome(id, eris.Errorf("automation: %v", r), time.Since(start))
		}
		outcome.ProcessingTime = time.Since(start)
		e.stats.TotalReviewed++
	}()

	if e.portal == nil {
		return model.FailureOutcome(id, ErrNotInitialized, time.Since(start))
	}

	if err := e.portal.OpenSearch(ctx); err != nil {
		log.Error("navigation failed", zap.Error(err))
		return model.FailureOutcome(id, err, time.Since(start))
	}
	if err := e.portal.Search(ctx, id); err != nil {
		log.Error("search failed", zap.Error(err))
		return model.FailureOutcome(id, err, time.Since(start))
	}

	cells, err := e.portal.FirstRow(ctx)
	if err != nil {
		log.Error("row extraction failed", zap.Error(err))
		return model.FailureOutcome(id, err, time.Since(start))
	}

	// The portal renders a placeholder row for genuinely empty results; only
	// a non-empty, non-zero cost cell counts as a real hit.
	if !hasMeaningfulCost(cells) {
		log.Debug("no meaningful result row")
		return model.EmptyOutcome(id)
	}

	cost, err := model.ParseCents(cellAt(cells, cellCost))
	if err != nil {
		log.Error("cost parse failed", zap.Error(err), zap.String("raw", cellAt(cells, cellCost)))
		return model.FailureOutcome(id, err, time.Since(start))
	}
	e.stats.TotalWithCost++

	outcome = model.SuccessOutcome(id, cost)
	outcome.PortalStatus = cellAt(cells, cellStatus)
	outcome.Notes = cellAt(cells, cellNotes)
	outcome.RegistrationDate = cellAt(cells, cellRegistration)
	outcome.Service = cellAt(cells, cellService)
	outcome.Subservice = cellAt(cells, cellSubservice)

	decision := policy.Decide(cost, savedCost, e.policyCfg)
	outcome.RuleApplied = decision.Rule

	if decision.Release {
		e.stats.TotalAccepted++
		log.Info("releasing expediente",
			zap.Int("rule", decision.Rule),
			zap.String("system_cost", cost.String()),
			zap.String("saved_cost", savedCost.String()),
		)
		if err := e.portal.Liberate(ctx); err != nil {
			// Degraded success: the data was retrieved, only the confirming
			// click failed. The case stays pending instead of failing.
			log.Warn("liberation failed, leaving pending", zap.Error(err))
			outcome.Validation = model.ValidationPending
		} else {
			outcome.Validation = model.ValidationAccepted
		}
	}

	return outcome
}

// Stats returns a copy of the session counters.
func (e *Engine) Stats() model.RunStats {
	return e.stats
}

// Close shuts down the browser session. Safe on an uninitialized engine.
func (e *Engine) Close(ctx context.Context) error {
	if e.portal == nil {
		return nil
	}
	err := e.portal.Close(ctx)
	e.portal = nil
	return err
}

func hasMeaningfulCost(cells []string) bool {
	raw := strings.TrimSpace(cellAt(cells, cellCost))
	return raw != "" && raw != "$0" && raw != "$0.00"
}

func cellAt(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return cells[idx]
}
