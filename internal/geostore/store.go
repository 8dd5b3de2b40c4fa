// Package geostore provides the feature/table store capability consumed by
// the export pipeline: dataset introspection, field management, read cursors,
// and blocking invocation of named engine operations.
package geostore

import (
	"context"

	"geoexport/internal/domain"
)

// Cursor iterates rows of a dataset. Callers must Close it when done.
type Cursor interface {
	// Next advances to the next row, returning false at the end of the set.
	Next() bool
	// Row returns the current row as a column-name → value mapping.
	Row() map[string]interface{}
	// Columns returns the column names in dataset order.
	Columns() []string
	// Err returns the first error encountered during iteration.
	Err() error
	Close() error
}

// Store is the dataset engine surface the pipeline depends on. Every method
// is synchronous from the caller's perspective: named operations are
// dispatched to the engine and polled to terminal status before returning.
type Store interface {
	// DatasetExists reports whether the dataset resolves. Single-file
	// datasets are checked on disk, remote workspaces are treated as always
	// existing (verification deferred), everything else is a catalog query.
	// An unreadable workspace yields false, not an error.
	DatasetExists(ctx context.Context, ds domain.Dataset) bool

	// Fields returns the field list of a dataset.
	Fields(ctx context.Context, dataset string) ([]domain.Field, error)

	// AddField adds a field to a dataset.
	AddField(ctx context.Context, dataset string, f domain.Field) error

	// DeleteField removes a field. Required fields are refused.
	DeleteField(ctx context.Context, dataset, field string) error

	// GeometryType samples one feature and returns the simplified geometry
	// type, or GeometryNone for plain tables.
	GeometryType(ctx context.Context, dataset string) (domain.GeometryType, error)

	// Read opens a cursor over the dataset. orderBy columns, when present,
	// are applied ascending with case-insensitive string comparison; the
	// ordering is fully materialized before the first row is yielded.
	Read(ctx context.Context, dataset string, orderBy []string) (Cursor, error)

	// Run dispatches a named operation and blocks until it reaches terminal
	// status, polling at the store's configured interval. A failed or
	// cancelled operation returns a domain.EngineError carrying the engine's
	// diagnostic text.
	Run(ctx context.Context, op Op) error

	// DeleteDataset drops the backing artifact if it exists.
	DeleteDataset(ctx context.Context, dataset string) error
}

// Op is a named engine operation. Concrete op types carry their own
// parameters; the store translates each to engine commands.
type Op interface {
	OpName() string
}

// CopyFeatures copies a dataset to a new name.
type CopyFeatures struct {
	Input  string
	Output string
}

func (CopyFeatures) OpName() string { return "CopyFeatures" }

// Clip selects the features of Input within Radius ground units of the
// location of interest, writing them to Output.
type Clip struct {
	Input  string
	X, Y   float64
	Radius float64
	Output string
}

func (Clip) OpName() string { return "Clip" }

// Buffer writes Input geometries expanded by Distance to Output.
type Buffer struct {
	Input    string
	Distance float64
	Output   string
}

func (Buffer) OpName() string { return "Buffer" }

// Intersect writes the features of Input that spatially intersect any feature
// of Mask to Output.
type Intersect struct {
	Input  string
	Mask   string
	Output string
}

func (Intersect) OpName() string { return "Intersect" }

// Dissolve groups Input by the GroupBy columns, producing one output row per
// distinct key with one generated field per statistic.
//
// Output layout convention (exploited by the aggregate-name reconciler): two
// leading system fields (fid, then geom for feature datasets or frequency
// for plain tables), then the group columns in order, then one generated
// field per statistic in statistic order. The generated field names are
// implementation-defined.
type Dissolve struct {
	Input      string
	Output     string
	GroupBy    []string
	Statistics []domain.Statistic
}

func (Dissolve) OpName() string { return "Dissolve" }

// NearJoin attaches to every row of Input the ground distance to its nearest
// feature in Target, as a field named "Distance". All left rows are kept;
// rows with no match get a null distance.
type NearJoin struct {
	Input  string
	Target string
	Output string
}

func (NearJoin) OpName() string { return "NearJoin" }

// CalculateField sets Field on every row of Dataset to the engine expression.
type CalculateField struct {
	Dataset    string
	Field      string
	Expression string
}

func (CalculateField) OpName() string { return "CalculateField" }

// ExportShapefile writes Input to a shapefile at Path.
type ExportShapefile struct {
	Input string
	Path  string
}

func (ExportShapefile) OpName() string { return "ExportShapefile" }
