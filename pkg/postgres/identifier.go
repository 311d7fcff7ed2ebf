package postgres

import (
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// TableIdentifier splits a possibly schema-qualified table name. Only the
// first dot separates the schema, and a name with an empty side is taken
// whole.
func TableIdentifier(table string) pgx.Identifier {
	if schema, name, ok := strings.Cut(table, "."); ok && schema != "" && name != "" {
		return pgx.Identifier{schema, name}
	}
	return pgx.Identifier{table}
}

// ColumnsQuery returns the INFORMATION_SCHEMA.COLUMNS query for table. A
// schema-qualified name also filters on table_schema.
func ColumnsQuery(table string) string {
	ident := TableIdentifier(table)
	name := ident[len(ident)-1]
	query := "SELECT * FROM INFORMATION_SCHEMA.COLUMNS WHERE table_name=" + pq.QuoteLiteral(name)
	if len(ident) == 2 {
		query += " AND table_schema=" + pq.QuoteLiteral(ident[0])
	}
	return query
}
