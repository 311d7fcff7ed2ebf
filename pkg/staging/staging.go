// Package staging writes in-memory frames into PostgreSQL tables so the
// assistant can be trained against ad-hoc data.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malbeclabs/pgassist/pkg/assistant"
	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/metrics"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CreateTableFromFrame replaces table with the rows of f laid out as
// NodeDataSchema and returns the table name used. An empty table name means
// DefaultTable. The drop, create and copy run in one transaction, so a failed
// write leaves any previous table intact.
func CreateTableFromFrame(ctx context.Context, log *slog.Logger, db DB, f *frame.Frame, table string) (name string, err error) {
	start := time.Now()
	defer func() {
		metrics.StageTotal.WithLabelValues(metrics.Result(err)).Inc()
		metrics.OperationDuration.WithLabelValues("stage").Observe(time.Since(start).Seconds())
	}()

	if f == nil {
		return "", fmt.Errorf("%w: frame is nil", ErrSchemaMismatch)
	}
	if strings.TrimSpace(table) == "" {
		table = DefaultTable
	}

	rows, err := conformRows(f, NodeDataSchema)
	if err != nil {
		return "", err
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return "", postgres.Classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Warn("staging: rollback failed", "table", table, "error", rbErr)
		}
	}()

	ident := postgres.TableIdentifier(table)
	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+ident.Sanitize()); err != nil {
		return "", postgres.Classify(fmt.Errorf("failed to drop table %s: %w", table, err))
	}
	if _, err := tx.Exec(ctx, createTableSQL(table, NodeDataSchema)); err != nil {
		return "", postgres.Classify(fmt.Errorf("failed to create table %s: %w", table, err))
	}
	copied, err := tx.CopyFrom(ctx, ident, columnNames(NodeDataSchema), pgx.CopyFromRows(rows))
	if err != nil {
		return "", postgres.Classify(fmt.Errorf("failed to copy rows into %s: %w", table, err))
	}
	if err := tx.Commit(ctx); err != nil {
		return "", postgres.Classify(fmt.Errorf("failed to commit staging of %s: %w", table, err))
	}

	metrics.RowsStagedTotal.Add(float64(copied))
	log.Info("staging: staged frame", "table", table, "rows", copied, "duration", time.Since(start))
	return table, nil
}

// Result is what SetupWithFrame hands back. The caller must call Close.
type Result struct {
	Assistant *assistant.Assistant
	Table     string
	Engine    *pgxpool.Pool
}

// Close releases the assistant's connection and the engine.
func (r *Result) Close() error {
	var err error
	if r.Assistant != nil {
		err = r.Assistant.Close()
	}
	if r.Engine != nil {
		r.Engine.Close()
	}
	return err
}

// SetupWithFrame stages f into table on the database described by params and
// returns an assistant connected to that database.
func SetupWithFrame(ctx context.Context, log *slog.Logger, f *frame.Frame, params postgres.Params, table string, opts ...assistant.Option) (*Result, error) {
	engine, err := postgres.Open(ctx, log, params)
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}

	name, err := CreateTableFromFrame(ctx, log, engine, f, table)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to stage frame: %w", err)
	}

	a := assistant.New(log, opts...)
	if err := a.Connect(ctx, params); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to connect assistant: %w", err)
	}

	return &Result{Assistant: a, Table: name, Engine: engine}, nil
}
