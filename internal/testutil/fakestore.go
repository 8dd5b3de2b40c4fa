// Package testutil provides a shared in-memory fake of the geostore.Store
// interface for use in tests across the codebase. This follows the Go
// convention of a shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"geoexport/internal/domain"
	"geoexport/internal/geostore"
)

// Synthetic coordinate and area columns the fake uses in place of real
// geometry. Datasets populate them to exercise Clip, NearJoin, and area
// calculation without a spatial engine.
const (
	FakeXColumn    = "_x"
	FakeYColumn    = "_y"
	FakeAreaColumn = "_area"
)

// FakeDataset is one in-memory table or feature class.
type FakeDataset struct {
	Fields   []domain.Field
	Rows     []map[string]interface{}
	Geometry domain.GeometryType
}

// clone deep-copies the dataset.
func (d *FakeDataset) clone() *FakeDataset {
	out := &FakeDataset{Geometry: d.Geometry}
	out.Fields = append(out.Fields, d.Fields...)
	for _, r := range d.Rows {
		row := make(map[string]interface{}, len(r))
		for k, v := range r {
			row[k] = v
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// FakeStore implements geostore.Store in memory.
type FakeStore struct {
	mu       sync.Mutex
	Datasets map[string]*FakeDataset
	// FailOps maps an operation name to an error message; matching ops fail
	// with a domain.EngineError carrying that message.
	FailOps map[string]string
	// Executed records every operation passed to Run, in order.
	Executed []geostore.Op
	// Deleted records every dataset name passed to DeleteDataset.
	Deleted []string
}

// NewFakeStore returns an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{Datasets: make(map[string]*FakeDataset), FailOps: make(map[string]string)}
}

var _ geostore.Store = (*FakeStore)(nil)

// AddDataset registers a dataset under the given name.
func (s *FakeStore) AddDataset(name string, ds *FakeDataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Datasets[name] = ds
}

// DatasetExists reports whether the name is registered.
func (s *FakeStore) DatasetExists(_ context.Context, ds domain.Dataset) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.Datasets[ds.Name]
	return ok
}

// Fields returns a copy of the dataset's field list.
func (s *FakeStore) Fields(_ context.Context, dataset string) ([]domain.Field, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.Datasets[dataset]
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", dataset)
	}
	out := make([]domain.Field, len(ds.Fields))
	copy(out, ds.Fields)
	return out, nil
}

// AddField appends a field, initialised to nil on every row.
func (s *FakeStore) AddField(_ context.Context, dataset string, f domain.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.Datasets[dataset]
	if !ok {
		return domain.ErrNotFound("dataset %q not found", dataset)
	}
	for _, existing := range ds.Fields {
		if strings.EqualFold(existing.Name, f.Name) {
			return domain.ErrEngine("AddField", "field %q already exists", f.Name)
		}
	}
	ds.Fields = append(ds.Fields, f)
	for _, row := range ds.Rows {
		row[f.Name] = nil
	}
	return nil
}

// DeleteField removes a field. Required fields are refused, mirroring the
// engine's safety check.
func (s *FakeStore) DeleteField(_ context.Context, dataset, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.Datasets[dataset]
	if !ok {
		return domain.ErrNotFound("dataset %q not found", dataset)
	}
	for i, f := range ds.Fields {
		if strings.EqualFold(f.Name, field) {
			if f.Required {
				return domain.ErrValidation("field %q on %q is required and cannot be deleted", field, dataset)
			}
			ds.Fields = append(ds.Fields[:i], ds.Fields[i+1:]...)
			for _, row := range ds.Rows {
				delete(row, f.Name)
			}
			return nil
		}
	}
	return domain.ErrNotFound("field %q not found on %q", field, dataset)
}

// GeometryType returns the dataset's declared geometry type.
func (s *FakeStore) GeometryType(_ context.Context, dataset string) (domain.GeometryType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.Datasets[dataset]
	if !ok {
		return domain.GeometryNone, domain.ErrNotFound("dataset %q not found", dataset)
	}
	return ds.Geometry, nil
}

// Read returns a cursor over a snapshot of the rows, sorted ascending and
// case-insensitively by the orderBy columns.
func (s *FakeStore) Read(_ context.Context, dataset string, orderBy []string) (geostore.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.Datasets[dataset]
	if !ok {
		return nil, domain.ErrNotFound("dataset %q not found", dataset)
	}
	snapshot := ds.clone()
	if len(orderBy) > 0 {
		sort.SliceStable(snapshot.Rows, func(i, j int) bool {
			for _, col := range orderBy {
				a := sortKey(snapshot.Rows[i][col])
				b := sortKey(snapshot.Rows[j][col])
				if a != b {
					return a < b
				}
			}
			return false
		})
	}
	cols := make([]string, len(snapshot.Fields))
	for i, f := range snapshot.Fields {
		cols[i] = f.Name
	}
	return &sliceCursor{columns: cols, rows: snapshot.Rows, pos: -1}, nil
}

// DeleteDataset drops the dataset if present and records the deletion.
func (s *FakeStore) DeleteDataset(_ context.Context, dataset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Datasets, dataset)
	s.Deleted = append(s.Deleted, dataset)
	return nil
}

// Run executes the operation synchronously against the in-memory tables.
func (s *FakeStore) Run(_ context.Context, op geostore.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Executed = append(s.Executed, op)
	if msg, ok := s.FailOps[op.OpName()]; ok {
		return domain.ErrEngine(op.OpName(), "%s", msg)
	}

	switch o := op.(type) {
	case geostore.CopyFeatures:
		src, ok := s.Datasets[o.Input]
		if !ok {
			return domain.ErrEngine(op.OpName(), "dataset %q not found", o.Input)
		}
		s.Datasets[o.Output] = src.clone()
		return nil

	case geostore.Clip:
		return s.clip(o)

	case geostore.Buffer:
		src, ok := s.Datasets[o.Input]
		if !ok {
			return domain.ErrEngine(op.OpName(), "dataset %q not found", o.Input)
		}
		s.Datasets[o.Output] = src.clone()
		return nil

	case geostore.Intersect:
		src, ok := s.Datasets[o.Input]
		if !ok {
			return domain.ErrEngine(op.OpName(), "dataset %q not found", o.Input)
		}
		if _, ok := s.Datasets[o.Mask]; !ok {
			return domain.ErrEngine(op.OpName(), "dataset %q not found", o.Mask)
		}
		s.Datasets[o.Output] = src.clone()
		return nil

	case geostore.Dissolve:
		return s.dissolve(o)

	case geostore.NearJoin:
		return s.nearJoin(o)

	case geostore.CalculateField:
		return s.calculateField(o)

	case geostore.ExportShapefile:
		if _, ok := s.Datasets[o.Input]; !ok {
			return domain.ErrEngine(op.OpName(), "dataset %q not found", o.Input)
		}
		return nil

	default:
		return domain.ErrEngine(op.OpName(), "unsupported operation")
	}
}

// clip keeps rows within the radius of (X, Y), measured on the synthetic
// coordinate columns. Rows without coordinates are kept.
func (s *FakeStore) clip(o geostore.Clip) error {
	src, ok := s.Datasets[o.Input]
	if !ok {
		return domain.ErrEngine(o.OpName(), "dataset %q not found", o.Input)
	}
	out := &FakeDataset{Geometry: src.Geometry}
	out.Fields = append(out.Fields, src.Fields...)
	for _, row := range src.Rows {
		x, okX := asFloat(row[FakeXColumn])
		y, okY := asFloat(row[FakeYColumn])
		if okX && okY {
			if math.Hypot(x-o.X, y-o.Y) > o.Radius {
				continue
			}
		}
		copied := make(map[string]interface{}, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out.Rows = append(out.Rows, copied)
	}
	s.Datasets[o.Output] = out
	return nil
}

// dissolve groups the input and emits the documented output layout: fid,
// then geom or frequency, then the group columns, then one generated field
// per statistic named FUNC_field.
func (s *FakeStore) dissolve(o geostore.Dissolve) error {
	src, ok := s.Datasets[o.Input]
	if !ok {
		return domain.ErrEngine(o.OpName(), "dataset %q not found", o.Input)
	}
	if len(o.GroupBy) == 0 || len(o.Statistics) == 0 {
		return domain.ErrEngine(o.OpName(), "group columns and statistics are required")
	}

	fieldType := func(name string) domain.FieldType {
		for _, f := range src.Fields {
			if strings.EqualFold(f.Name, name) {
				return f.Type
			}
		}
		return domain.FieldOther
	}

	out := &FakeDataset{Geometry: src.Geometry}
	out.Fields = append(out.Fields, domain.Field{Name: "fid", Alias: "fid", Type: domain.FieldInteger, Required: true})
	if src.Geometry != domain.GeometryNone {
		out.Fields = append(out.Fields, domain.Field{Name: "geom", Alias: "geom", Type: domain.FieldGeometry, Required: true})
	} else {
		out.Fields = append(out.Fields, domain.Field{Name: "frequency", Alias: "frequency", Type: domain.FieldInteger})
	}
	for _, g := range o.GroupBy {
		out.Fields = append(out.Fields, domain.Field{Name: g, Alias: g, Type: fieldType(g)})
	}
	for _, st := range o.Statistics {
		genType := fieldType(st.Field)
		switch st.Func {
		case domain.StatCount:
			genType = domain.FieldInteger
		case domain.StatSum, domain.StatMean:
			genType = domain.FieldDouble
		}
		name := fmt.Sprintf("%s_%s", st.Func, st.Field)
		out.Fields = append(out.Fields, domain.Field{Name: name, Alias: name, Type: genType})
	}

	// Group rows in first-seen key order.
	type group struct {
		key    []interface{}
		rows   []map[string]interface{}
		keyStr string
	}
	var groups []*group
	index := make(map[string]*group)
	for _, row := range src.Rows {
		key := make([]interface{}, len(o.GroupBy))
		parts := make([]string, len(o.GroupBy))
		for i, g := range o.GroupBy {
			key[i] = row[g]
			parts[i] = fmt.Sprintf("%v", row[g])
		}
		ks := strings.Join(parts, "\x00")
		grp, ok := index[ks]
		if !ok {
			grp = &group{key: key, keyStr: ks}
			index[ks] = grp
			groups = append(groups, grp)
		}
		grp.rows = append(grp.rows, row)
	}

	for i, grp := range groups {
		row := make(map[string]interface{})
		row["fid"] = i + 1
		if src.Geometry != domain.GeometryNone {
			row["geom"] = nil
		} else {
			row["frequency"] = len(grp.rows)
		}
		for j, g := range o.GroupBy {
			row[g] = grp.key[j]
		}
		for _, st := range o.Statistics {
			name := fmt.Sprintf("%s_%s", st.Func, st.Field)
			row[name] = aggregate(st, grp.rows)
		}
		out.Rows = append(out.Rows, row)
	}

	s.Datasets[o.Output] = out
	return nil
}

// nearJoin attaches the Euclidean distance to the nearest target row,
// measured on the synthetic coordinate columns. An empty target yields nil.
func (s *FakeStore) nearJoin(o geostore.NearJoin) error {
	src, ok := s.Datasets[o.Input]
	if !ok {
		return domain.ErrEngine(o.OpName(), "dataset %q not found", o.Input)
	}
	target, ok := s.Datasets[o.Target]
	if !ok {
		return domain.ErrEngine(o.OpName(), "dataset %q not found", o.Target)
	}

	out := src.clone()
	out.Fields = append(out.Fields, domain.Field{Name: "Distance", Alias: "Distance", Type: domain.FieldDouble})
	for _, row := range out.Rows {
		x, okX := asFloat(row[FakeXColumn])
		y, okY := asFloat(row[FakeYColumn])
		var best interface{}
		if okX && okY {
			bestDist := math.Inf(1)
			for _, t := range target.Rows {
				tx, okTX := asFloat(t[FakeXColumn])
				ty, okTY := asFloat(t[FakeYColumn])
				if !okTX || !okTY {
					continue
				}
				if d := math.Hypot(x-tx, y-ty); d < bestDist {
					bestDist = d
				}
			}
			if !math.IsInf(bestDist, 1) {
				best = bestDist
			}
		}
		row["Distance"] = best
	}
	s.Datasets[o.Output] = out
	return nil
}

// calculateField interprets the expression forms the pipeline emits: a
// quoted string literal (constant broadcast), a quoted identifier (copy from
// another field), or an area expression over the synthetic area column.
func (s *FakeStore) calculateField(o geostore.CalculateField) error {
	ds, ok := s.Datasets[o.Dataset]
	if !ok {
		return domain.ErrEngine(o.OpName(), "dataset %q not found", o.Dataset)
	}

	expr := strings.TrimSpace(o.Expression)
	switch {
	case strings.HasPrefix(expr, "'") && strings.HasSuffix(expr, "'"):
		val := strings.ReplaceAll(expr[1:len(expr)-1], "''", "'")
		for _, row := range ds.Rows {
			row[o.Field] = val
		}
	case strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`):
		source := strings.ReplaceAll(expr[1:len(expr)-1], `""`, `"`)
		for _, row := range ds.Rows {
			row[o.Field] = row[source]
		}
	case strings.HasPrefix(expr, "ST_Area(geom)"):
		divisor := 1.0
		if _, after, found := strings.Cut(expr, "/"); found {
			if d, err := strconv.ParseFloat(strings.TrimSpace(after), 64); err == nil && d != 0 {
				divisor = d
			}
		}
		for _, row := range ds.Rows {
			if a, ok := asFloat(row[FakeAreaColumn]); ok {
				row[o.Field] = a / divisor
			}
		}
	default:
		return domain.ErrEngine(o.OpName(), "unsupported expression %q", o.Expression)
	}
	return nil
}

// aggregate computes one statistic over the group's rows.
func aggregate(st domain.Statistic, rows []map[string]interface{}) interface{} {
	switch st.Func {
	case domain.StatFirst:
		if len(rows) == 0 {
			return nil
		}
		return rows[0][st.Field]
	case domain.StatCount:
		n := 0
		for _, r := range rows {
			if r[st.Field] != nil {
				n++
			}
		}
		return n
	case domain.StatSum, domain.StatMean:
		sum, n := 0.0, 0
		for _, r := range rows {
			if v, ok := asFloat(r[st.Field]); ok {
				sum += v
				n++
			}
		}
		if n == 0 {
			return nil
		}
		if st.Func == domain.StatMean {
			return sum / float64(n)
		}
		return sum
	case domain.StatMin, domain.StatMax:
		var best interface{}
		bestF := 0.0
		for _, r := range rows {
			v, ok := asFloat(r[st.Field])
			if !ok {
				continue
			}
			if best == nil || (st.Func == domain.StatMin && v < bestF) || (st.Func == domain.StatMax && v > bestF) {
				best, bestF = v, v
			}
		}
		return best
	}
	return nil
}

// asFloat converts any numeric value to float64.
func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

// sortKey renders a value for ordering: case-insensitive for strings,
// zero-padded for numbers.
func sortKey(v interface{}) string {
	if f, ok := asFloat(v); ok {
		return fmt.Sprintf("%020.6f", f)
	}
	if s, ok := v.(string); ok {
		return strings.ToLower(s)
	}
	return fmt.Sprintf("%v", v)
}

// sliceCursor iterates an in-memory row slice.
type sliceCursor struct {
	columns []string
	rows    []map[string]interface{}
	pos     int
}

func (c *sliceCursor) Next() bool {
	c.pos++
	return c.pos < len(c.rows)
}

func (c *sliceCursor) Row() map[string]interface{} {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil
	}
	return c.rows[c.pos]
}

func (c *sliceCursor) Columns() []string { return c.columns }
func (c *sliceCursor) Err() error        { return nil }
func (c *sliceCursor) Close() error      { return nil }
