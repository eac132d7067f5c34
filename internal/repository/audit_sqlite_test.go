package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"fz-pos-api/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLAuditRepository {
	t.Helper()
	repo, err := NewSQLiteAuditRepository(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSQLiteAudit_InsertAndList(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	e := &model.AuditEntry{SessionID: "s1", Action: model.AuditScanResolved, Code: "FZ-A", ProductID: 7, CreatedAt: base}
	require.NoError(t, repo.Insert(ctx, e))
	assert.NotZero(t, e.ID)

	require.NoError(t, repo.BatchInsert(ctx, []model.AuditEntry{
		{SessionID: "s1", Action: model.AuditScanUnresolved, Code: "FZ-X", CreatedAt: base.Add(time.Second)},
		{SessionID: "s2", Action: model.AuditOrderCreated, OrderID: 99, Detail: "POS-99", CreatedAt: base.Add(2 * time.Second)},
	}))

	all, err := repo.List(ctx, model.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.AuditOrderCreated, all[0].Action)
	assert.Equal(t, base.Add(2*time.Second), all[0].CreatedAt)

	s1, err := repo.List(ctx, model.AuditFilter{SessionID: "s1"})
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, "FZ-X", s1[0].Code)
	assert.Equal(t, int64(7), s1[1].ProductID)

	recent, err := repo.List(ctx, model.AuditFilter{Since: base.Add(time.Second), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(99), recent[0].OrderID)

	byAction, err := repo.List(ctx, model.AuditFilter{Action: model.AuditScanUnresolved})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
}

func TestSQLiteAudit_StatsAndRetention(t *testing.T) {
	repo := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.BatchInsert(ctx, []model.AuditEntry{
		{SessionID: "s1", Action: model.AuditScanResolved, CreatedAt: base},
		{SessionID: "s1", Action: model.AuditScanResolved, CreatedAt: base.Add(time.Hour)},
		{SessionID: "s2", Action: model.AuditPaymentSettled, CreatedAt: base.Add(2 * time.Hour)},
	}))

	stats, err := repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Sessions)
	assert.Equal(t, int64(2), stats.ByAction[model.AuditScanResolved])
	require.NotNil(t, stats.Oldest)
	assert.Equal(t, base, *stats.Oldest)
	assert.Equal(t, base.Add(2*time.Hour), *stats.Newest)

	deleted, err := repo.DeleteBefore(ctx, base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	stats, err = repo.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestSQLiteAudit_EmptyStats(t *testing.T) {
	repo := newTestSQLite(t)

	stats, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.Oldest)
	assert.Empty(t, stats.ByAction)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, 5, listLimit(5))
	assert.Equal(t, maxListLimit, listLimit(5000))
}
