package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoexport/internal/domain"
	"geoexport/internal/testutil"
)

// assertNoTemps checks that a run left no temporary dataset or session
// registration behind.
func assertNoTemps(t *testing.T, store *testutil.FakeStore, session interface{ Registered() []string }) {
	t.Helper()
	for name := range store.Datasets {
		assert.False(t, strings.HasPrefix(name, "tmp_"), "temporary dataset %q left behind", name)
	}
	assert.Empty(t, session.Registered())
}

func TestExportSelectionToCSV_EmptyOutPath(t *testing.T) {
	store := testutil.NewFakeStore()
	e, _ := newTestExporter(store)

	n, err := e.ExportSelectionToCSV(context.Background(), Request{Dataset: domain.Dataset{Name: "parcels"}})
	assert.Equal(t, -1, n)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestExportSelectionToCSV_MissingDataset(t *testing.T) {
	store := testutil.NewFakeStore()
	e, _ := newTestExporter(store)

	req := Request{
		Dataset: domain.Dataset{Name: "nope"},
		OutPath: filepath.Join(t.TempDir(), "out.csv"),
		Columns: "Site",
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	assert.Equal(t, -1, n)
	var nf *domain.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestExportSelectionToCSV_NoColumnsSurvive(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, session := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: out,
		Columns: "Ghost,AlsoGhost",
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	assertNoTemps(t, store, session)
}

func TestExportSelectionToCSV_EmptySelection(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields()})
	e, session := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: out,
		Columns: "Site,Area",
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, "Site,Area\r\n", readFile(t, out))
	assertNoTemps(t, store, session)
}

func TestExportSelectionToCSV_PlainExport(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, session := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: out,
		Columns: "Site,Area",
		OrderBy: []string{"Site"},
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "Site,Area\r\nA,10\r\nA,5\r\nB,7\r\n", readFile(t, out))
	assertNoTemps(t, store, session)
	// The source dataset itself is never touched.
	assert.NotContains(t, store.Deleted, "parcels")
}

func TestExportSelectionToCSV_GroupBySumRename(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, session := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset:              domain.Dataset{Name: "parcels"},
		OutPath:              out,
		Columns:              "Site,Area",
		GroupBy:              []string{"Site"},
		Statistics:           []domain.Statistic{{Field: "Area", Func: domain.StatSum}},
		RenameAfterAggregate: true,
		OrderBy:              []string{"Site"},
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, "Site,Area\r\nA,15\r\nB,7\r\n", readFile(t, out))
	assertNoTemps(t, store, session)
}

func TestExportSelectionToCSV_InvalidGroupFallsBackToDirect(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, session := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: out,
		Columns: "Site,Area",
		GroupBy: []string{"Ghost"},
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assertNoTemps(t, store, session)
}

func TestExportSelectionToCSV_EngineFailureCleansTemps(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	store.FailOps["Dissolve"] = "out of memory"
	e, session := newTestExporter(store)

	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: filepath.Join(t.TempDir(), "out.csv"),
		Columns: "Site",
		GroupBy: []string{"Site"},
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	assert.Equal(t, -1, n)
	var engineErr *domain.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "out of memory", engineErr.Message)

	assertNoTemps(t, store, session)
	// The working copy existed and was removed.
	found := false
	for _, name := range store.Deleted {
		if strings.HasPrefix(name, "tmp_copy_") {
			found = true
		}
	}
	assert.True(t, found, "working copy was not cleaned up")
}

func TestExportSelectionToCSV_RadiusFieldBroadcast(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, _ := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: out,
		Columns: "Site,Radius",
		Radius:  "500",
		OrderBy: []string{"Site"},
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "Site,Radius\r\nA,500\r\nA,500\r\nB,500\r\n", readFile(t, out))
}

func TestExportSelectionToCSV_RadiusSentinelSkipsField(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, _ := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: out,
		Columns: "Site,Radius",
		Radius:  domain.RadiusNone,
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	// No Radius field was added, so the column is dropped from the output.
	assert.True(t, strings.HasPrefix(readFile(t, out), "Site\r\n"))
}

func TestExportSelectionToCSV_DistanceJoinTruncates(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("wells", &testutil.FakeDataset{
		Fields: []domain.Field{
			{Name: "Name", Type: domain.FieldString},
			{Name: testutil.FakeXColumn, Type: domain.FieldDouble},
			{Name: testutil.FakeYColumn, Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{
			{"Name": "w1", testutil.FakeXColumn: 0.0, testutil.FakeYColumn: 0.0},
		},
	})
	store.AddDataset("roads", &testutil.FakeDataset{
		Fields: []domain.Field{
			{Name: testutil.FakeXColumn, Type: domain.FieldDouble},
			{Name: testutil.FakeYColumn, Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{
			{testutil.FakeXColumn: 12.7, testutil.FakeYColumn: 0.0},
			{testutil.FakeXColumn: 40.0, testutil.FakeYColumn: 40.0},
		},
	})
	e, session := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset:         domain.Dataset{Name: "wells"},
		OutPath:         out,
		Columns:         "Name,Distance",
		IncludeDistance: true,
		TargetDataset:   "roads",
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Name,Distance\r\nw1,12\r\n", readFile(t, out))
	assertNoTemps(t, store, session)
}

func TestExportSelectionToCSV_AreaFieldOnPolygons(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("zones", &testutil.FakeDataset{
		Geometry: domain.GeometryPolygon,
		Fields: []domain.Field{
			{Name: "Name", Type: domain.FieldString},
			{Name: testutil.FakeAreaColumn, Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{
			{"Name": "z1", testutil.FakeAreaColumn: 25000.0},
		},
	})
	e, _ := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset:     domain.Dataset{Name: "zones"},
		OutPath:     out,
		Columns:     "Name,Area",
		IncludeArea: true,
		AreaUnit:    domain.AreaHectares,
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Name,Area\r\nz1,2.5\r\n", readFile(t, out))
}

func TestExportSelectionToCSV_AreaSkippedOnNonPolygons(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("wells", &testutil.FakeDataset{
		Geometry: domain.GeometryPoint,
		Fields:   []domain.Field{{Name: "Name", Type: domain.FieldString}},
		Rows:     []map[string]interface{}{{"Name": "w1"}},
	})
	e, _ := newTestExporter(store)

	out := filepath.Join(t.TempDir(), "out.csv")
	req := Request{
		Dataset:     domain.Dataset{Name: "wells"},
		OutPath:     out,
		Columns:     "Name,Area",
		IncludeArea: true,
	}
	n, err := e.ExportSelectionToCSV(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// Area never materialized, so projection drops it.
	assert.Equal(t, "Name\r\nw1\r\n", readFile(t, out))
}

func TestExportSelectionToShapefile_ShpTarget(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, session := newTestExporter(store)

	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: filepath.Join(t.TempDir(), "parcels.shp"),
	}
	n, err := e.ExportSelectionToShapefile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assertNoTemps(t, store, session)
}

func TestExportSelectionToShapefile_NativeCopyTarget(t *testing.T) {
	store := testutil.NewFakeStore()
	store.AddDataset("parcels", &testutil.FakeDataset{Fields: parcelFields(), Rows: parcelRows()})
	e, session := newTestExporter(store)

	req := Request{
		Dataset: domain.Dataset{Name: "parcels"},
		OutPath: "parcels_archive",
	}
	n, err := e.ExportSelectionToShapefile(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, store.DatasetExists(context.Background(), domain.Dataset{Name: "parcels_archive"}))
	assertNoTemps(t, store, session)
}
