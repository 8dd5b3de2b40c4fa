package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"geoexport/internal/db"
	"geoexport/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "meta.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.RunMigrations(conn))
	return conn
}

func newRun(id string, startedAt time.Time) domain.ExportRun {
	return domain.ExportRun{
		ID:          id,
		Layers:      []string{"wells", "parcels"},
		Destination: "/exports/site.csv",
		TriggerType: domain.TriggerTypeManual,
		Status:      domain.ExportRunStatusRunning,
		StartedAt:   startedAt,
	}
}

func TestExportRunRepo_CreateAndGet(t *testing.T) {
	repo := NewExportRunRepo(testDB(t))
	ctx := context.Background()

	started := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newRun("run-1", started)))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"wells", "parcels"}, got.Layers)
	assert.Equal(t, domain.ExportRunStatusRunning, got.Status)
	assert.Equal(t, started, got.StartedAt)
	assert.Nil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorMessage)
}

func TestExportRunRepo_GetMissing(t *testing.T) {
	repo := NewExportRunRepo(testDB(t))

	_, err := repo.Get(context.Background(), "absent")
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestExportRunRepo_FinishSuccess(t *testing.T) {
	repo := NewExportRunRepo(testDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newRun("run-1", time.Now().UTC())))

	require.NoError(t, repo.Finish(ctx, "run-1", domain.ExportRunStatusSucceeded, 42, nil))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExportRunStatusSucceeded, got.Status)
	assert.Equal(t, 42, got.RowCount)
	assert.NotNil(t, got.FinishedAt)
	assert.Nil(t, got.ErrorMessage)
}

func TestExportRunRepo_FinishFailureKeepsMessage(t *testing.T) {
	repo := NewExportRunRepo(testDB(t))
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newRun("run-1", time.Now().UTC())))

	msg := "Dissolve: out of memory"
	require.NoError(t, repo.Finish(ctx, "run-1", domain.ExportRunStatusFailed, 0, &msg))

	got, err := repo.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ExportRunStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, msg, *got.ErrorMessage)
}

func TestExportRunRepo_FinishMissing(t *testing.T) {
	repo := NewExportRunRepo(testDB(t))

	err := repo.Finish(context.Background(), "absent", domain.ExportRunStatusSucceeded, 0, nil)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestExportRunRepo_ListNewestFirst(t *testing.T) {
	repo := NewExportRunRepo(testDB(t))
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := newRun(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, repo.Create(ctx, run))
	}

	runs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
