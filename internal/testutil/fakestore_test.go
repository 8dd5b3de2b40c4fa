package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// The fake's dissolve must emit the same output layout as the real engine:
// fid, geom or frequency, group columns, then generated statistic fields.
func TestFakeDissolve_Layout(t *testing.T) {
	store := NewFakeStore()
	store.AddDataset("in", &FakeDataset{
		Fields: []domain.Field{
			{Name: "Site", Type: domain.FieldString},
			{Name: "Area", Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{
			{"Site": "A", "Area": 1.0},
		},
	})

	op := geostore.Dissolve{
		Input:   "in",
		Output:  "out",
		GroupBy: []string{"Site"},
		Statistics: []domain.Statistic{
			{Field: "Area", Func: domain.StatSum},
			{Field: "Area", Func: domain.StatCount},
		},
	}
	require.NoError(t, store.Run(context.Background(), op))

	fields, err := store.Fields(context.Background(), "out")
	require.NoError(t, err)
	require.Len(t, fields, 5)
	assert.Equal(t, "fid", fields[0].Name)
	assert.Equal(t, "frequency", fields[1].Name)
	assert.Equal(t, "Site", fields[2].Name)
	assert.Equal(t, "SUM_Area", fields[3].Name)
	assert.Equal(t, "COUNT_Area", fields[4].Name)
	assert.Equal(t, domain.FieldDouble, fields[3].Type)
	assert.Equal(t, domain.FieldInteger, fields[4].Type)
}

func TestFakeClip_FiltersByDistance(t *testing.T) {
	store := NewFakeStore()
	store.AddDataset("in", &FakeDataset{
		Fields: []domain.Field{
			{Name: "Name", Type: domain.FieldString},
			{Name: FakeXColumn, Type: domain.FieldDouble},
			{Name: FakeYColumn, Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{
			{"Name": "near", FakeXColumn: 3.0, FakeYColumn: 4.0},
			{"Name": "far", FakeXColumn: 30.0, FakeYColumn: 40.0},
			{"Name": "no coords"},
		},
	})

	op := geostore.Clip{Input: "in", X: 0, Y: 0, Radius: 10, Output: "out"}
	require.NoError(t, store.Run(context.Background(), op))

	out := store.Datasets["out"]
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "near", out.Rows[0]["Name"])
	assert.Equal(t, "no coords", out.Rows[1]["Name"])
}

func TestFakeNearJoin_NearestDistance(t *testing.T) {
	store := NewFakeStore()
	store.AddDataset("in", &FakeDataset{
		Fields: []domain.Field{
			{Name: FakeXColumn, Type: domain.FieldDouble},
			{Name: FakeYColumn, Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{{FakeXColumn: 0.0, FakeYColumn: 0.0}},
	})
	store.AddDataset("target", &FakeDataset{
		Fields: []domain.Field{
			{Name: FakeXColumn, Type: domain.FieldDouble},
			{Name: FakeYColumn, Type: domain.FieldDouble},
		},
		Rows: []map[string]interface{}{
			{FakeXColumn: 3.0, FakeYColumn: 4.0},
			{FakeXColumn: 10.0, FakeYColumn: 0.0},
		},
	})

	op := geostore.NearJoin{Input: "in", Target: "target", Output: "out"}
	require.NoError(t, store.Run(context.Background(), op))

	out := store.Datasets["out"]
	require.Len(t, out.Rows, 1)
	assert.Equal(t, 5.0, out.Rows[0]["Distance"])
}

func TestFakeFailOps(t *testing.T) {
	store := NewFakeStore()
	store.AddDataset("in", &FakeDataset{})
	store.FailOps["CopyFeatures"] = "boom"

	err := store.Run(context.Background(), geostore.CopyFeatures{Input: "in", Output: "out"})
	var engineErr *domain.EngineError
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "boom", engineErr.Message)
}
