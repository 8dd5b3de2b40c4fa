package scheduler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"

	"geoexport/internal/db"
	"geoexport/internal/domain"
	"geoexport/internal/export"
	"geoexport/internal/geostore"
	"geoexport/internal/layers"
	"geoexport/internal/repository"
	"geoexport/internal/service"
	"geoexport/internal/testutil"
)

func testScheduler(t *testing.T, set *layers.Set) *Scheduler {
	t.Helper()
	store := testutil.NewFakeStore()
	store.AddDataset("tanks", &testutil.FakeDataset{
		Fields: []domain.Field{{Name: "Name", Type: domain.FieldString}},
		Rows:   []map[string]interface{}{{"Name": "t1"}},
	})

	conn, err := db.OpenSQLite(filepath.Join(t.TempDir(), "meta.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.RunMigrations(conn))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exporter := export.NewExporter(store, geostore.NewSession(), logger)
	svc := service.NewExportService(exporter, repository.NewExportRunRepo(conn), set, t.TempDir(), "", logger)
	return New(svc, logger)
}

func TestStart_RegistersScheduledLayers(t *testing.T) {
	set := &layers.Set{Layers: []layers.Layer{
		{Name: "tanks", Dataset: "tanks", Columns: "Name", ScheduleCron: "0 2 * * *"},
		{Name: "adhoc", Dataset: "tanks", Columns: "Name"},
	}}
	s := testScheduler(t, set)

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.Len(t, s.cron.Entries(), 1)
}

func TestStart_InvalidCronExpression(t *testing.T) {
	set := &layers.Set{Layers: []layers.Layer{
		{Name: "tanks", Dataset: "tanks", Columns: "Name", ScheduleCron: "not a cron"},
	}}
	s := testScheduler(t, set)

	assert.Error(t, s.Start())
}

func TestRunScheduled_RecordsRun(t *testing.T) {
	set := &layers.Set{Layers: []layers.Layer{
		{Name: "tanks", Dataset: "tanks", Columns: "Name", ScheduleCron: "0 2 * * *"},
	}}
	s := testScheduler(t, set)

	s.runScheduled(set.Layers[0])

	runs, err := s.exports.Runs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.TriggerTypeScheduled, runs[0].TriggerType)
	assert.Equal(t, domain.ExportRunStatusSucceeded, runs[0].Status)
}
