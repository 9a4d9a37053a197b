package automation

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ike-ops/expedientes-cli/internal/config"
	"github.com/ike-ops/expedientes-cli/internal/model"
	"github.com/ike-ops/expedientes-cli/internal/policy"
)

// fakePortal scripts portal behavior per expediente id.
type fakePortal struct {
	rows         map[string][]string
	loginErr     error
	openErr      error
	searchErr    map[string]error
	liberateErr  error
	liberated    []string
	lastSearched string
	closed       int
}

func (f *fakePortal) Login(ctx context.Context, username, password string) error {
	return f.loginErr
}

func (f *fakePortal) OpenSearch(ctx context.Context) error { return f.openErr }

func (f *fakePortal) Search(ctx context.Context, id string) error {
	f.lastSearched = id
	if err, ok := f.searchErr[id]; ok {
		return err
	}
	return nil
}

func (f *fakePortal) FirstRow(ctx context.Context) ([]string, error) {
	return f.rows[f.lastSearched], nil
}

func (f *fakePortal) Liberate(ctx context.Context) error {
	if f.liberateErr != nil {
		return f.liberateErr
	}
	f.liberated = append(f.liberated, f.lastSearched)
	return nil
}

func (f *fakePortal) Close(ctx context.Context) error {
	f.closed++
	return nil
}

func newTestEngine(t *testing.T, portal Portal, policyCfg policy.Config) *Engine {
	t.Helper()
	e := NewEngine(config.PortalConfig{}, policyCfg)
	e.newPortal = func(ctx context.Context, cfg config.PortalConfig) (Portal, error) {
		return portal, nil
	}
	require.NoError(t, e.Initialize(context.Background()))
	return e
}

func resultRow(cost string) []string {
	return []string{"", "1001", cost, "Activo", "notas", "2026-01-15", "Grua", "Arrastre"}
}

func TestSearchExpedienteExactMatchReleases(t *testing.T) {
	portal := &fakePortal{rows: map[string][]string{"1001": resultRow("$500.00")}}
	e := newTestEngine(t, portal, policy.Config{})

	outcome := e.SearchExpediente(context.Background(), "1001", model.Cents(50000))

	require.True(t, outcome.Success)
	require.NotNil(t, outcome.Cost)
	assert.Equal(t, model.Cents(50000), *outcome.Cost)
	assert.Equal(t, model.ValidationAccepted, outcome.Validation)
	assert.Equal(t, policy.RuleExact, outcome.RuleApplied)
	assert.Equal(t, []string{"1001"}, portal.liberated)
	assert.Equal(t, "Activo", outcome.PortalStatus)
	assert.Equal(t, "Grua", outcome.Service)

	stats := e.Stats()
	assert.Equal(t, 1, stats.TotalReviewed)
	assert.Equal(t, 1, stats.TotalWithCost)
	assert.Equal(t, 1, stats.TotalAccepted)
}

func TestSearchExpedienteNoRelease(t *testing.T) {
	portal := &fakePortal{rows: map[string][]string{"1001": resultRow("$400.00")}}
	e := newTestEngine(t, portal, policy.Config{})

	outcome := e.SearchExpediente(context.Background(), "1001", model.Cents(50000))

	require.True(t, outcome.Success)
	assert.Equal(t, model.ValidationPending, outcome.Validation)
	assert.Equal(t, policy.RuleNone, outcome.RuleApplied)
	assert.Empty(t, portal.liberated)
	assert.Equal(t, 0, e.Stats().TotalAccepted)
}

func TestSearchExpedienteEmptyResult(t *testing.T) {
	tests := []struct {
		name string
		row  []string
	}{
		{"no row at all", nil},
		{"blank cost cell", resultRow("")},
		{"zero placeholder", resultRow("$0")},
		{"zero decimal placeholder", resultRow("$0.00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			portal := &fakePortal{rows: map[string][]string{"1001": tt.row}}
			e := newTestEngine(t, portal, policy.Config{})

			outcome := e.SearchExpediente(context.Background(), "1001", 0)

			require.True(t, outcome.Success)
			assert.Nil(t, outcome.Cost)
			assert.Equal(t, model.ValidationNotFound, outcome.Validation)
			assert.Equal(t, 1, e.Stats().TotalReviewed)
			assert.Equal(t, 0, e.Stats().TotalWithCost)
		})
	}
}

func TestSearchExpedienteLiberationFailureDowngrades(t *testing.T) {
	portal := &fakePortal{
		rows:        map[string][]string{"1001": resultRow("$500.00")},
		liberateErr: eris.New("modal never appeared"),
	}
	e := newTestEngine(t, portal, policy.Config{})

	outcome := e.SearchExpediente(context.Background(), "1001", model.Cents(50000))

	// Releasable but unconfirmed is a degraded success, not a failure.
	require.True(t, outcome.Success)
	assert.Equal(t, model.ValidationPending, outcome.Validation)
	assert.Equal(t, policy.RuleExact, outcome.RuleApplied)
	assert.Equal(t, 1, e.Stats().TotalAccepted)
}

func TestSearchExpedienteStepFailureIsPerRecord(t *testing.T) {
	portal := &fakePortal{
		rows:      map[string][]string{"1002": resultRow("$300.00")},
		searchErr: map[string]error{"1001": eris.New("input not found")},
	}
	e := newTestEngine(t, portal, policy.Config{})

	bad := e.SearchExpediente(context.Background(), "1001", 0)
	require.False(t, bad.Success)
	assert.Contains(t, bad.Error, "input not found")
	assert.Equal(t, model.ValidationNotFound, bad.Validation)

	// The session survives and the next record still works.
	good := e.SearchExpediente(context.Background(), "1002", model.Cents(30000))
	require.True(t, good.Success)
	assert.Equal(t, model.ValidationAccepted, good.Validation)
	assert.Equal(t, 2, e.Stats().TotalReviewed)
}

func TestSearchExpedienteMarginRule(t *testing.T) {
	portal := &fakePortal{rows: map[string][]string{"1002": resultRow("$330.00")}}
	e := newTestEngine(t, portal, policy.Config{MarginLogic: true})

	outcome := e.SearchExpediente(context.Background(), "1002", model.Cents(30000))

	require.True(t, outcome.Success)
	assert.Equal(t, model.ValidationAccepted, outcome.Validation)
	assert.Equal(t, policy.RuleMargin, outcome.RuleApplied)
}

func TestLoginRequiresCredentials(t *testing.T) {
	e := newTestEngine(t, &fakePortal{}, policy.Config{})
	err := e.Login(context.Background(), Credentials{})
	require.ErrorIs(t, err, ErrNoCredentials)
}

func TestLoginFatalError(t *testing.T) {
	portal := &fakePortal{loginErr: ErrLogin}
	e := newTestEngine(t, portal, policy.Config{})
	err := e.Login(context.Background(), Credentials{Username: "u", Password: "p"})
	require.ErrorIs(t, err, ErrLogin)
}

func TestCloseIdempotent(t *testing.T) {
	portal := &fakePortal{}
	e := newTestEngine(t, portal, policy.Config{})

	require.NoError(t, e.Close(context.Background()))
	require.NoError(t, e.Close(context.Background()))
	assert.Equal(t, 1, portal.closed)

	// Uninitialized engine close is a no-op.
	fresh := NewEngine(config.PortalConfig{}, policy.Config{})
	require.NoError(t, fresh.Close(context.Background()))
}

func TestSearchBeforeInitializeFails(t *testing.T) {
	e := NewEngine(config.PortalConfig{}, policy.Config{})
	outcome := e.SearchExpediente(context.Background(), "1001", 0)
	require.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "not initialized")
}
