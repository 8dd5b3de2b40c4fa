package domain

import "strings"

// FieldType classifies a dataset field.
type FieldType string

// Field types understood by the pipeline.
const (
	FieldString   FieldType = "string"
	FieldInteger  FieldType = "integer"
	FieldDouble   FieldType = "double"
	FieldDate     FieldType = "date"
	FieldGeometry FieldType = "geometry"
	FieldOther    FieldType = "other"
)

// IsNumeric reports whether the type holds numeric values.
func (t FieldType) IsNumeric() bool {
	return t == FieldInteger || t == FieldDouble
}

// Field describes one column of a dataset.
type Field struct {
	Name     string
	Alias    string
	Type     FieldType
	Length   int
	Required bool // system-managed (identity/geometry); never deleted by the pipeline
}

// GeometryType is the simplified geometry class of a feature dataset,
// determined by sampling one feature.
type GeometryType string

// Simplified geometry types.
const (
	GeometryNone    GeometryType = ""
	GeometryPoint   GeometryType = "point"
	GeometryLine    GeometryType = "line"
	GeometryPolygon GeometryType = "polygon"
)

// Dataset identifies a tabular or spatial record collection by workspace
// location + name. It is valid only while both resolve; the pipeline never
// caches it across stages except through the lifecycle manager's temp names.
type Dataset struct {
	Workspace string // store path, directory, or remote:// address
	Name      string
}

// IsRemote reports whether the dataset lives in a server-style workspace.
// Existence checks for remote workspaces are deferred to the engine.
func (d Dataset) IsRemote() bool {
	return strings.Contains(d.Workspace, "://")
}

// AreaUnit selects the unit for the derived area field.
type AreaUnit string

// Supported area units.
const (
	AreaSquareMeters     AreaUnit = "m2"
	AreaHectares         AreaUnit = "ha"
	AreaSquareKilometers AreaUnit = "km2"
)

// Divisor returns the factor that converts square meters to the unit.
// Unknown units fall back to square meters.
func (u AreaUnit) Divisor() float64 {
	switch u {
	case AreaHectares:
		return 1e4
	case AreaSquareKilometers:
		return 1e6
	default:
		return 1
	}
}

// StatFunc is an aggregate function applied to a field within a group.
type StatFunc string

// Aggregate functions supported by the grouping operation.
const (
	StatFirst StatFunc = "FIRST"
	StatSum   StatFunc = "SUM"
	StatMin   StatFunc = "MIN"
	StatMax   StatFunc = "MAX"
	StatMean  StatFunc = "MEAN"
	StatCount StatFunc = "COUNT"
)

// Statistic pairs a field with the aggregate applied to it. The order of a
// statistic list determines the positional layout of the grouping operation's
// generated output fields.
type Statistic struct {
	Field string
	Func  StatFunc
}

// RadiusNone is the sentinel radius value meaning "no radius tag field".
const RadiusNone = "none"
