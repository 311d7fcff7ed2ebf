package staging

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

// DefaultTable is the table name used when none is given.
const DefaultTable = "node_data"

const (
	TypeText      = "text"
	TypeTimestamp = "timestamp"
)

// ErrSchemaMismatch is returned when a frame cannot be written with the fixed schema.
var ErrSchemaMismatch = errors.New("frame does not match staging schema")

// NodeDataSchema is the fixed layout of a staged table.
var NodeDataSchema = []frame.Column{
	{Name: "nodeid", Type: TypeText},
	{Name: "nodename", Type: TypeText},
	{Name: "clustername", Type: TypeText},
	{Name: "instancetype", Type: TypeText},
	{Name: "tags", Type: TypeText},
	{Name: "created", Type: TypeTimestamp},
	{Name: "snapshottime", Type: TypeTimestamp},
	{Name: "platform", Type: TypeText},
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func columnNames(schema []frame.Column) []string {
	names := make([]string, len(schema))
	for i, c := range schema {
		names[i] = c.Name
	}
	return names
}

func createTableSQL(table string, schema []frame.Column) string {
	defs := make([]string, len(schema))
	for i, c := range schema {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + strings.ToUpper(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", postgres.TableIdentifier(table).Sanitize(), strings.Join(defs, ", "))
}

// conformRows maps the rows of f onto schema. Schema columns missing from f are
// NULL. A column of f that is not in schema, or a value that cannot be coerced
// to its column type, is an ErrSchemaMismatch.
func conformRows(f *frame.Frame, schema []frame.Column) ([][]any, error) {
	wanted := make(map[string]bool, len(schema))
	for _, c := range schema {
		wanted[c.Name] = true
	}
	var extra []string
	for _, c := range f.Columns {
		if !wanted[c.Name] {
			extra = append(extra, c.Name)
		}
	}
	if len(extra) > 0 {
		return nil, fmt.Errorf("%w: unexpected columns %s (allowed: %s)", ErrSchemaMismatch, strings.Join(extra, ", "), strings.Join(columnNames(schema), ", "))
	}

	source := make([]int, len(schema))
	for i, c := range schema {
		source[i] = f.ColumnIndex(c.Name)
	}

	rows := make([][]any, len(f.Rows))
	for r, row := range f.Rows {
		if len(row) != len(f.Columns) {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrSchemaMismatch, r, len(row), len(f.Columns))
		}
		out := make([]any, len(schema))
		for i, c := range schema {
			if source[i] < 0 {
				continue
			}
			v, err := coerce(row[source[i]], c.Type)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %s: %w", ErrSchemaMismatch, r, c.Name, err)
			}
			out[i] = v
		}
		rows[r] = out
	}
	return rows, nil
}

func coerce(v any, typ string) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case TypeTimestamp:
		return coerceTimestamp(v)
	default:
		return frame.FormatValue(v), nil
	}
}

func coerceTimestamp(v any) (any, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return *v, nil
	case []byte:
		return coerceTimestamp(string(v))
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot parse %q as a timestamp", v)
	default:
		return nil, fmt.Errorf("cannot use %T as a timestamp", v)
	}
}
