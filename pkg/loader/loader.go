// Package loader reads PostgreSQL tables and queries into in-memory frames.
package loader

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/metrics"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadTable reads every row of table into a frame. A table name of the form
// schema.table is split on the first dot.
//
// On failure the frame is nil and the error wraps one of the postgres failure
// reasons (ErrInvalidParams, ErrConnect, ErrAuth, ErrTableNotFound, ErrQuery).
func LoadTable(ctx context.Context, log *slog.Logger, params postgres.Params, table string) (*frame.Frame, error) {
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("%w: table name is required", postgres.ErrInvalidParams)
	}
	return load(ctx, log, params, "table "+table, func(ctx context.Context, db Querier) (*frame.Frame, error) {
		return ReadTable(ctx, db, table)
	})
}

// Query runs a read query and returns its result as a frame. Failures are
// reported the same way as LoadTable.
func Query(ctx context.Context, log *slog.Logger, params postgres.Params, sql string) (*frame.Frame, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, fmt.Errorf("%w: query is required", postgres.ErrInvalidParams)
	}
	return load(ctx, log, params, "query", func(ctx context.Context, db Querier) (*frame.Frame, error) {
		return ReadQuery(ctx, db, sql)
	})
}

func load(ctx context.Context, log *slog.Logger, params postgres.Params, source string, read func(context.Context, Querier) (*frame.Frame, error)) (f *frame.Frame, err error) {
	start := time.Now()
	defer func() {
		metrics.LoadTotal.WithLabelValues(metrics.Result(err)).Inc()
		metrics.OperationDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())
	}()

	pool, err := postgres.Open(ctx, log, params)
	if err != nil {
		log.Debug("loader: failed to open engine", "source", source, "error", err)
		return nil, err
	}
	defer pool.Close()

	f, err = read(ctx, pool)
	if err != nil {
		log.Debug("loader: read failed", "source", source, "error", err)
		return nil, err
	}

	metrics.RowsLoadedTotal.Add(float64(f.NumRows()))
	log.Info("loader: loaded frame", "source", source, "rows", f.NumRows(), "columns", f.NumCols(), "duration", time.Since(start))
	return f, nil
}

// ReadTable reads every row of table from db.
func ReadTable(ctx context.Context, db Querier, table string) (*frame.Frame, error) {
	return ReadQuery(ctx, db, "SELECT * FROM "+postgres.TableIdentifier(table).Sanitize())
}

// ReadQuery runs sql on db and collects every row.
func ReadQuery(ctx context.Context, db Querier, sql string) (*frame.Frame, error) {
	rows, err := db.Query(ctx, sql)
	if err != nil {
		return nil, postgres.Classify(fmt.Errorf("failed to execute query: %w", err))
	}
	defer rows.Close()

	var typeMap *pgtype.Map
	if conn := rows.Conn(); conn != nil {
		typeMap = conn.TypeMap()
	}

	var data [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, postgres.Classify(fmt.Errorf("failed to read row: %w", err))
		}
		for i, v := range values {
			values[i] = normalizeValue(v)
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Classify(fmt.Errorf("error iterating rows: %w", err))
	}

	fields := rows.FieldDescriptions()
	columns := make([]frame.Column, len(fields))
	for i, fd := range fields {
		columns[i] = frame.Column{Name: fd.Name, Type: typeName(typeMap, fd.DataTypeOID)}
	}

	return frame.New(columns, data)
}

func typeName(m *pgtype.Map, oid uint32) string {
	if m == nil {
		return ""
	}
	if t, ok := m.TypeForOID(oid); ok {
		return t.Name
	}
	return ""
}

// normalizeValue converts driver-specific values into plain Go values.
func normalizeValue(v any) any {
	switch v := v.(type) {
	case [16]byte:
		return uuid.UUID(v).String()
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	default:
		return v
	}
}
