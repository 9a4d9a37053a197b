package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ike-ops/expedientes-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dsn)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "expedientes.xlsx", 42)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "expedientes.xlsx", got.SourceFile)
	assert.Equal(t, 42, got.Total)
	assert.Nil(t, got.Stats)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestCompleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "expedientes.xlsx", 3)
	require.NoError(t, err)

	stats := model.RunStats{TotalReviewed: 3, TotalWithCost: 2, TotalAccepted: 1}
	require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunStatusCompleted, stats))

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, got.Status)
	require.NotNil(t, got.Stats)
	assert.Equal(t, stats, *got.Stats)
}

func TestCompleteRunMissing(t *testing.T) {
	s := newTestStore(t)
	err := s.CompleteRun(context.Background(), "no-such-run", model.RunStatusCompleted, model.RunStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestListRunsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateRun(ctx, "a.xlsx", 1)
	require.NoError(t, err)
	_, err = s.CreateRun(ctx, "b.xlsx", 2)
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, first.ID, model.RunStatusCompleted, model.RunStats{}))

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	completed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, first.ID, completed[0].ID)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSaveAndListOutcomes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "a.xlsx", 2)
	require.NoError(t, err)

	cost := model.Cents(125050)
	e1 := model.NewExpediente("1001", 125050, "Pérez")
	e1.MarkProcessed(&model.SearchOutcome{
		Success:    true,
		Cost:       &cost,
		Validation: model.ValidationAccepted,
	})
	e2 := model.NewExpediente("1002", 5000, "")
	e2.MarkFailed("search timed out")

	require.NoError(t, s.SaveOutcomes(ctx, run.ID, []*model.Expediente{e1, e2}))

	got, err := s.ListOutcomes(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]*model.Expediente{got[0].ID: got[0], got[1].ID: got[1]}
	require.NotNil(t, byID["1001"].Cost)
	assert.Equal(t, cost, *byID["1001"].Cost)
	assert.Equal(t, model.ValidationAccepted, byID["1001"].Validation)
	assert.Equal(t, model.StatusFailed, byID["1002"].Status)
	assert.Equal(t, "search timed out", byID["1002"].Error)
}

func TestSaveOutcomesUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "a.xlsx", 1)
	require.NoError(t, err)

	e := model.NewExpediente("1001", 100, "")
	e.MarkFailed("first attempt")
	require.NoError(t, s.SaveOutcomes(ctx, run.ID, []*model.Expediente{e}))

	cost := model.Cents(100)
	retry := model.NewExpediente("1001", 100, "")
	retry.MarkProcessed(&model.SearchOutcome{Success: true, Cost: &cost, Validation: model.ValidationAccepted})
	require.NoError(t, s.SaveOutcomes(ctx, run.ID, []*model.Expediente{retry}))

	got, err := s.ListOutcomes(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.StatusCompleted, got[0].Status)
}

func TestSaveOutcomesEmptyBatch(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveOutcomes(context.Background(), "any", nil))
}
