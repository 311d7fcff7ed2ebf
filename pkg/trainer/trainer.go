// Package trainer connects the assistant to a live database and trains it on
// the information schema of a table.
package trainer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/malbeclabs/pgassist/pkg/assistant"
	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/metrics"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

// Assistant is the subset of *assistant.Assistant used for training.
type Assistant interface {
	RunSQL(ctx context.Context, query string) (*frame.Frame, error)
	TrainingPlanGeneric(schema *frame.Frame) (*assistant.TrainingPlan, error)
	Train(ctx context.Context, plan *assistant.TrainingPlan) ([]string, error)
}

// Report summarizes a training run.
type Report struct {
	Schema  *frame.Frame
	Plan    *assistant.TrainingPlan
	Trained int
}

// Setup returns an assistant connected to the database described by params.
func Setup(ctx context.Context, log *slog.Logger, params postgres.Params, opts ...assistant.Option) (*assistant.Assistant, error) {
	a := assistant.New(log, opts...)
	if err := a.Connect(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to set up assistant: %w", err)
	}
	return a, nil
}

// InformationSchemaQuery returns the column metadata query for table. A
// schema-qualified name resolves the same way the loader and staging do.
func InformationSchemaQuery(table string) string {
	return postgres.ColumnsQuery(table)
}

// AnalyzeAndTrain fetches the column metadata of table, builds a training plan
// from it and trains a on the plan. Progress is written to out. The first
// failing step aborts the run.
func AnalyzeAndTrain(ctx context.Context, log *slog.Logger, out io.Writer, a Assistant, table string) (report *Report, err error) {
	start := time.Now()
	defer func() {
		metrics.TrainTotal.WithLabelValues(metrics.Result(err)).Inc()
		metrics.OperationDuration.WithLabelValues("train").Observe(time.Since(start).Seconds())
	}()

	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("%w: table name is required", postgres.ErrInvalidParams)
	}

	schema, err := a.RunSQL(ctx, InformationSchemaQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schema information: %w", err)
	}
	log.Debug("trainer: fetched schema information", "table", table, "columns", schema.NumRows())
	fmt.Fprintln(out, "\nTable Schema Information:")
	schema.Render(out, 0)

	plan, err := a.TrainingPlanGeneric(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to generate training plan: %w", err)
	}
	fmt.Fprintln(out, "\nTraining Plan:")
	fmt.Fprint(out, plan.String())

	fmt.Fprintln(out, "\nStarting training...")
	ids, err := a.Train(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to train: %w", err)
	}
	fmt.Fprintln(out, "Training completed!")

	log.Info("trainer: trained assistant", "table", table, "entries", len(ids), "duration", time.Since(start))
	return &Report{Schema: schema, Plan: plan, Trained: len(ids)}, nil
}
