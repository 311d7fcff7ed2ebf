// Package assistant is an NL-to-SQL assistant for PostgreSQL. It is trained
// with schema documentation and example queries, generates SQL for natural
// language questions through an LLM, and runs SQL against its own connection.
package assistant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

var (
	ErrNotConnected = errors.New("assistant is not connected to a database")
	ErrNotTrained   = errors.New("assistant has no training data")
	ErrInvalidPlan  = errors.New("invalid training plan")
	ErrNoLLM        = errors.New("assistant has no LLM client")
)

// Assistant holds a database handle, the training store and an optional LLM client.
type Assistant struct {
	log   *slog.Logger
	db    *sql.DB
	llm   LLMClient
	clock clockwork.Clock
	store *store
}

type Option func(*Assistant)

// WithLLM sets the client used by GenerateSQL.
func WithLLM(llm LLMClient) Option {
	return func(a *Assistant) {
		a.llm = llm
	}
}

// WithClock sets the clock used to timestamp training entries.
func WithClock(clock clockwork.Clock) Option {
	return func(a *Assistant) {
		a.clock = clock
	}
}

// WithDB attaches an already open database handle instead of calling Connect.
func WithDB(db *sql.DB) Option {
	return func(a *Assistant) {
		a.db = db
	}
}

func New(log *slog.Logger, opts ...Option) *Assistant {
	a := &Assistant{
		log:   log,
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.store = newStore(a.clock)
	return a
}

// Connect opens the assistant's own connection to the database described by
// params and pings it. An existing connection is closed first.
func (a *Assistant) Connect(ctx context.Context, params postgres.Params) error {
	params = params.WithDefaults()
	if err := params.Validate(); err != nil {
		return err
	}

	db, err := sql.Open("postgres", params.URI())
	if err != nil {
		return fmt.Errorf("%w: failed to open database: %w", postgres.ErrInvalidParams, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return postgres.Classify(fmt.Errorf("failed to ping database: %w", err))
	}

	if a.db != nil {
		_ = a.db.Close()
	}
	a.db = db
	a.log.Info("assistant: connected", "uri", params.RedactedURI())
	return nil
}

// Close closes the database handle, if any.
func (a *Assistant) Close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// RunSQL runs query and returns its rows as a frame.
func (a *Assistant) RunSQL(ctx context.Context, query string) (*frame.Frame, error) {
	if a.db == nil {
		return nil, ErrNotConnected
	}
	a.log.Debug("assistant: running sql", "sql", query)

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, postgres.Classify(fmt.Errorf("failed to execute query: %w", err))
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, postgres.Classify(fmt.Errorf("failed to get columns: %w", err))
	}
	columns := make([]frame.Column, len(names))
	for i, name := range names {
		columns[i] = frame.Column{Name: name}
	}
	if types, err := rows.ColumnTypes(); err == nil && len(types) == len(columns) {
		for i, ct := range types {
			columns[i].Type = strings.ToLower(ct.DatabaseTypeName())
		}
	}

	var data [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, postgres.Classify(fmt.Errorf("failed to scan row: %w", err))
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		data = append(data, values)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.Classify(fmt.Errorf("error iterating rows: %w", err))
	}

	return frame.New(columns, data)
}
