// Package frame holds tabular query results in memory.
package frame

import (
	"fmt"
	"time"
)

// Column describes one column of a frame. Type is the database type name when
// known, and empty otherwise.
type Column struct {
	Name string
	Type string
}

// Frame is an in-memory table: named columns and rows of values. Every row has
// exactly one value per column; nil marks a NULL.
type Frame struct {
	Columns []Column
	Rows    [][]any
}

// New returns a frame with the given columns and rows.
func New(columns []Column, rows [][]any) (*Frame, error) {
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(columns))
		}
	}
	return &Frame{Columns: columns, Rows: rows}, nil
}

func (f *Frame) NumRows() int {
	return len(f.Rows)
}

func (f *Frame) NumCols() int {
	return len(f.Columns)
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Column returns every value of the named column in row order.
func (f *Frame) Column(name string) ([]any, bool) {
	idx := f.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	values := make([]any, len(f.Rows))
	for i, row := range f.Rows {
		values[i] = row[idx]
	}
	return values, true
}

// Value returns the value at row i in the named column.
func (f *Frame) Value(i int, column string) (any, bool) {
	idx := f.ColumnIndex(column)
	if idx < 0 || i < 0 || i >= len(f.Rows) {
		return nil, false
	}
	return f.Rows[i][idx], true
}

// Head returns a frame sharing the first n rows of f.
func (f *Frame) Head(n int) *Frame {
	if n < 0 || n > len(f.Rows) {
		n = len(f.Rows)
	}
	return &Frame{Columns: f.Columns, Rows: f.Rows[:n]}
}

// NonNullCount returns the number of non-NULL values in column i.
func (f *Frame) NonNullCount(i int) int {
	count := 0
	for _, row := range f.Rows {
		if row[i] != nil {
			count++
		}
	}
	return count
}

// FormatValue renders a single cell for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
