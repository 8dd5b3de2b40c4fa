package geostore

import (
	"database/sql"
	"fmt"
)

// sqlCursor adapts *sql.Rows to the Cursor interface, producing one
// column-name → value map per row. Rows are not retained after Next advances.
type sqlCursor struct {
	rows    *sql.Rows
	columns []string
	current map[string]interface{}
	err     error
}

func newSQLCursor(rows *sql.Rows) (*sqlCursor, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("cursor columns: %w", err)
	}
	return &sqlCursor{rows: rows, columns: cols}, nil
}

func (c *sqlCursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		c.current = nil
		return false
	}

	vals := make([]interface{}, len(c.columns))
	ptrs := make([]interface{}, len(c.columns))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		c.err = err
		c.current = nil
		return false
	}

	row := make(map[string]interface{}, len(c.columns))
	for i, col := range c.columns {
		if b, ok := vals[i].([]byte); ok {
			row[col] = string(b)
		} else {
			row[col] = vals[i]
		}
	}
	c.current = row
	return true
}

func (c *sqlCursor) Row() map[string]interface{} { return c.current }

func (c *sqlCursor) Columns() []string { return c.columns }

func (c *sqlCursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *sqlCursor) Close() error { return c.rows.Close() }
