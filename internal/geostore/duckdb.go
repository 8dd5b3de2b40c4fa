package geostore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"geoexport/internal/domain"
)

// Single-file dataset formats checked on disk rather than via the catalog.
var singleFileExts = map[string]bool{
	".shp": true,
	".csv": true,
	".txt": true,
	".dbf": true,
}

// DuckDBStore implements Store against a DuckDB database with the spatial
// extension loaded. Datasets are tables; feature datasets carry a geom
// GEOMETRY column and a fid identity column, both system-managed.
type DuckDBStore struct {
	db           *sql.DB
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewDuckDBStore wraps an open DuckDB connection. pollInterval controls how
// often dispatched operations are polled for completion (0 means 1s).
func NewDuckDBStore(db *sql.DB, pollInterval time.Duration, logger *slog.Logger) *DuckDBStore {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &DuckDBStore{db: db, logger: logger, pollInterval: pollInterval}
}

var _ Store = (*DuckDBStore)(nil)

// OpenDuckDB opens the DuckDB database at path and loads the spatial
// extension.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	for _, stmt := range []string{"INSTALL spatial;", "LOAD spatial;"} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("extension setup (%s): %w", stmt, err)
		}
	}
	return db, nil
}

// DatasetExists implements the three-way existence rule. Lookup faults are
// reported as "does not exist"; callers cannot distinguish absent from
// inaccessible.
func (s *DuckDBStore) DatasetExists(ctx context.Context, ds domain.Dataset) bool {
	if ext := strings.ToLower(filepath.Ext(ds.Name)); singleFileExts[ext] {
		_, err := os.Stat(filepath.Join(ds.Workspace, ds.Name))
		return err == nil
	}
	if ds.IsRemote() {
		// Server-style workspace: existence verification is deferred.
		return true
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM information_schema.tables WHERE table_name = ?", ds.Name).Scan(&one)
	return err == nil
}

// Fields returns the dataset's field list in ordinal order.
func (s *DuckDBStore) Fields(ctx context.Context, dataset string) ([]domain.Field, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT column_name, data_type, COALESCE(character_maximum_length, 0)
		FROM information_schema.columns
		WHERE table_name = ?
		ORDER BY ordinal_position`, dataset)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", dataset, err)
	}
	defer rows.Close() //nolint:errcheck

	var fields []domain.Field
	for rows.Next() {
		var name, dataType string
		var length int
		if err := rows.Scan(&name, &dataType, &length); err != nil {
			return nil, fmt.Errorf("describe %s: %w", dataset, err)
		}
		fields = append(fields, domain.Field{
			Name:     name,
			Alias:    name,
			Type:     fieldTypeFromSQL(dataType),
			Length:   length,
			Required: isRequiredField(name),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", dataset, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound("dataset %q not found", dataset)
	}
	return fields, nil
}

// AddField adds a column to the dataset.
func (s *DuckDBStore) AddField(ctx context.Context, dataset string, f domain.Field) error {
	sqlType := sqlTypeFromField(f)
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
		QuoteIdent(dataset), QuoteIdent(f.Name), sqlType)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return domain.ErrEngine("AddField", "%v", err)
	}
	return nil
}

// DeleteField drops a column. Required (system-managed) fields are refused.
func (s *DuckDBStore) DeleteField(ctx context.Context, dataset, field string) error {
	if isRequiredField(field) {
		return domain.ErrValidation("field %q on %q is required and cannot be deleted", field, dataset)
	}
	stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", QuoteIdent(dataset), QuoteIdent(field))
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return domain.ErrEngine("DeleteField", "%v", err)
	}
	return nil
}

// GeometryType samples one feature's geometry. Datasets without a geom
// column, or with no populated geometry, report GeometryNone.
func (s *DuckDBStore) GeometryType(ctx context.Context, dataset string) (domain.GeometryType, error) {
	fields, err := s.Fields(ctx, dataset)
	if err != nil {
		return domain.GeometryNone, err
	}
	hasGeom := false
	for _, f := range fields {
		if f.Type == domain.FieldGeometry {
			hasGeom = true
			break
		}
	}
	if !hasGeom {
		return domain.GeometryNone, nil
	}

	var gt string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT ST_GeometryType(geom) FROM %s WHERE geom IS NOT NULL LIMIT 1",
		QuoteIdent(dataset))).Scan(&gt)
	if err == sql.ErrNoRows {
		return domain.GeometryNone, nil
	}
	if err != nil {
		return domain.GeometryNone, fmt.Errorf("sample geometry of %s: %w", dataset, err)
	}
	switch {
	case strings.Contains(strings.ToUpper(gt), "POLYGON"):
		return domain.GeometryPolygon, nil
	case strings.Contains(strings.ToUpper(gt), "LINE"):
		return domain.GeometryLine, nil
	case strings.Contains(strings.ToUpper(gt), "POINT"):
		return domain.GeometryPoint, nil
	default:
		return domain.GeometryNone, nil
	}
}

// Read opens a cursor, optionally ordered. Order columns must already be
// validated by the caller; string columns compare case-insensitively.
func (s *DuckDBStore) Read(ctx context.Context, dataset string, orderBy []string) (Cursor, error) {
	query := "SELECT * FROM " + QuoteIdent(dataset)
	if len(orderBy) > 0 {
		fields, err := s.Fields(ctx, dataset)
		if err != nil {
			return nil, err
		}
		query += " ORDER BY " + buildOrderBy(orderBy, fields)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.ErrEngine("Read", "%v", err)
	}
	return newSQLCursor(rows)
}

// DeleteDataset drops the backing table if it exists.
func (s *DuckDBStore) DeleteDataset(ctx context.Context, dataset string) error {
	stmt := "DROP TABLE IF EXISTS " + QuoteIdent(dataset)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return domain.ErrEngine("Delete", "%v", err)
	}
	return nil
}

// Run dispatches the operation and polls its handle to terminal status.
func (s *DuckDBStore) Run(ctx context.Context, op Op) error {
	h, err := s.execute(ctx, op)
	if err != nil {
		return err
	}
	status, msg := Wait(ctx, h, s.pollInterval)
	switch status {
	case StatusSucceeded:
		return nil
	case StatusCancelled:
		// Treated as a failure by the pipeline; there is no partial resume.
		return domain.ErrEngine(op.OpName(), "operation cancelled: %s", msg)
	default:
		return domain.ErrEngine(op.OpName(), "%s", msg)
	}
}

// execute translates the op to SQL and dispatches it on a goroutine,
// returning the handle the caller polls.
func (s *DuckDBStore) execute(ctx context.Context, op Op) (*Handle, error) {
	stmt, err := s.buildSQL(ctx, op)
	if err != nil {
		return nil, err
	}

	h := NewHandle()
	go func() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if ctx.Err() != nil {
				h.finish(StatusCancelled, ctx.Err().Error())
				return
			}
			h.finish(StatusFailed, err.Error())
			return
		}
		h.finish(StatusSucceeded, "")
	}()
	return h, nil
}

// buildSQL renders one engine statement per op.
func (s *DuckDBStore) buildSQL(ctx context.Context, op Op) (string, error) {
	switch o := op.(type) {
	case CopyFeatures:
		return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s",
			QuoteIdent(o.Output), QuoteIdent(o.Input)), nil

	case Clip:
		return fmt.Sprintf(
			"CREATE TABLE %s AS SELECT * FROM %s WHERE ST_DWithin(geom, ST_Point(%g, %g), %g)",
			QuoteIdent(o.Output), QuoteIdent(o.Input), o.X, o.Y, o.Radius), nil

	case Buffer:
		return fmt.Sprintf(
			"CREATE TABLE %s AS SELECT fid, ST_Buffer(geom, %g) AS geom FROM %s",
			QuoteIdent(o.Output), o.Distance, QuoteIdent(o.Input)), nil

	case Intersect:
		return fmt.Sprintf(
			"CREATE TABLE %s AS SELECT l.* FROM %s l WHERE EXISTS (SELECT 1 FROM %s m WHERE ST_Intersects(l.geom, m.geom))",
			QuoteIdent(o.Output), QuoteIdent(o.Input), QuoteIdent(o.Mask)), nil

	case Dissolve:
		return s.buildDissolveSQL(ctx, o)

	case NearJoin:
		// Correlated nearest-neighbor: one-to-one, all left rows kept,
		// null distance when the target is empty.
		return fmt.Sprintf(`CREATE TABLE %s AS
			SELECT l.*,
			       (SELECT ST_Distance(l.geom, r.geom) FROM %s r
			        ORDER BY ST_Distance(l.geom, r.geom) LIMIT 1) AS "Distance"
			FROM %s l`,
			QuoteIdent(o.Output), QuoteIdent(o.Target), QuoteIdent(o.Input)), nil

	case CalculateField:
		return fmt.Sprintf("UPDATE %s SET %s = %s",
			QuoteIdent(o.Dataset), QuoteIdent(o.Field), o.Expression), nil

	case ExportShapefile:
		return fmt.Sprintf("COPY (SELECT * FROM %s) TO %s WITH (FORMAT GDAL, DRIVER 'ESRI Shapefile')",
			QuoteIdent(o.Input), StringLiteral(o.Path)), nil

	default:
		return "", domain.ErrValidation("unknown operation %q", op.OpName())
	}
}

// buildDissolveSQL resolves the input's geometry class and renders the
// group-by statement.
func (s *DuckDBStore) buildDissolveSQL(ctx context.Context, o Dissolve) (string, error) {
	if len(o.GroupBy) == 0 {
		return "", domain.ErrValidation("dissolve requires at least one group column")
	}
	if len(o.Statistics) == 0 {
		return "", domain.ErrValidation("dissolve requires at least one statistic")
	}
	gt, err := s.GeometryType(ctx, o.Input)
	if err != nil {
		return "", err
	}
	return dissolveSQL(o, gt)
}

// dissolveSQL renders the group-by statement with the documented output
// layout: fid, then geom (feature datasets) or frequency (tables), then the
// group columns, then one generated field per statistic in statistic order.
// Reconciliation arithmetic elsewhere depends on this column order.
func dissolveSQL(o Dissolve, gt domain.GeometryType) (string, error) {
	cols := []string{"CAST(row_number() OVER () AS INTEGER) AS fid"}
	if gt != domain.GeometryNone {
		cols = append(cols, "ST_Union_Agg(geom) AS geom")
	} else {
		cols = append(cols, "CAST(count(*) AS INTEGER) AS frequency")
	}

	groupExprs := make([]string, len(o.GroupBy))
	for i, g := range o.GroupBy {
		groupExprs[i] = QuoteIdent(g)
	}
	cols = append(cols, groupExprs...)

	for _, st := range o.Statistics {
		expr, err := statExpr(st)
		if err != nil {
			return "", err
		}
		cols = append(cols, fmt.Sprintf("%s AS %s",
			expr, QuoteIdent(fmt.Sprintf("%s_%s", st.Func, st.Field))))
	}

	return fmt.Sprintf("CREATE TABLE %s AS SELECT %s FROM %s GROUP BY %s",
		QuoteIdent(o.Output),
		strings.Join(cols, ", "),
		QuoteIdent(o.Input),
		strings.Join(groupExprs, ", ")), nil
}

// statExpr maps a statistic to its aggregate expression.
func statExpr(st domain.Statistic) (string, error) {
	col := QuoteIdent(st.Field)
	switch st.Func {
	case domain.StatFirst:
		return "first(" + col + ")", nil
	case domain.StatSum:
		return "sum(" + col + ")", nil
	case domain.StatMin:
		return "min(" + col + ")", nil
	case domain.StatMax:
		return "max(" + col + ")", nil
	case domain.StatMean:
		return "avg(" + col + ")", nil
	case domain.StatCount:
		return "count(" + col + ")", nil
	default:
		return "", domain.ErrValidation("unsupported statistic %q", st.Func)
	}
}

// buildOrderBy renders an ascending ORDER BY clause; string columns compare
// case-insensitively.
func buildOrderBy(orderBy []string, fields []domain.Field) string {
	types := make(map[string]domain.FieldType, len(fields))
	for _, f := range fields {
		types[strings.ToLower(f.Name)] = f.Type
	}
	terms := make([]string, len(orderBy))
	for i, col := range orderBy {
		if types[strings.ToLower(col)] == domain.FieldString {
			terms[i] = "lower(" + QuoteIdent(col) + ")"
		} else {
			terms[i] = QuoteIdent(col)
		}
	}
	return strings.Join(terms, ", ")
}

// fieldTypeFromSQL maps a DuckDB data type to the pipeline's field types.
func fieldTypeFromSQL(dataType string) domain.FieldType {
	t := strings.ToUpper(dataType)
	switch {
	case strings.HasPrefix(t, "VARCHAR"), t == "TEXT":
		return domain.FieldString
	case t == "TINYINT", t == "SMALLINT", t == "INTEGER", t == "BIGINT", t == "HUGEINT",
		t == "UTINYINT", t == "USMALLINT", t == "UINTEGER", t == "UBIGINT":
		return domain.FieldInteger
	case t == "FLOAT", t == "DOUBLE", t == "REAL", strings.HasPrefix(t, "DECIMAL"):
		return domain.FieldDouble
	case t == "DATE", strings.HasPrefix(t, "TIMESTAMP"):
		return domain.FieldDate
	case t == "GEOMETRY":
		return domain.FieldGeometry
	default:
		return domain.FieldOther
	}
}

// sqlTypeFromField maps the pipeline's field types back to DuckDB types.
func sqlTypeFromField(f domain.Field) string {
	switch f.Type {
	case domain.FieldString:
		if f.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", f.Length)
		}
		return "VARCHAR"
	case domain.FieldInteger:
		return "INTEGER"
	case domain.FieldDouble:
		return "DOUBLE"
	case domain.FieldDate:
		return "DATE"
	case domain.FieldGeometry:
		return "GEOMETRY"
	default:
		return "VARCHAR"
	}
}

// isRequiredField reports whether the name is a system-managed field.
func isRequiredField(name string) bool {
	switch strings.ToLower(name) {
	case "fid", "geom":
		return true
	}
	return false
}

// QuoteIdent quotes an identifier for the engine, doubling embedded quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// StringLiteral renders a single-quoted engine string literal.
func StringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
