package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/malbeclabs/pgassist/pkg/frame"
)

// Columns of INFORMATION_SCHEMA.COLUMNS used to build a plan.
const (
	catalogColumn = "table_catalog"
	schemaColumn  = "table_schema"
	tableColumn   = "table_name"
)

// Per-table columns included in each documentation item, when present.
var planDetailColumns = []string{catalogColumn, schemaColumn, tableColumn, "column_name", "data_type", "is_nullable"}

// TrainingPlan is produced by TrainingPlanGeneric and consumed by Train. Its
// items are not exposed.
type TrainingPlan struct {
	items []planItem
}

type planItem struct {
	group string // catalog.schema
	name  string // table
	doc   string
}

// Len returns the number of items in the plan.
func (p *TrainingPlan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

func (p *TrainingPlan) String() string {
	if p.Len() == 0 {
		return "Empty training plan"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Training plan (%d items):\n", len(p.items))
	for _, item := range p.items {
		fmt.Fprintf(&sb, "Train on Information Schema: %s %s\n", item.group, item.name)
	}
	return sb.String()
}

// TrainingPlanGeneric builds a plan from the rows of an INFORMATION_SCHEMA.COLUMNS
// query. It emits one documentation item per table, in order of first appearance.
func (a *Assistant) TrainingPlanGeneric(schema *frame.Frame) (*TrainingPlan, error) {
	if schema == nil {
		return nil, fmt.Errorf("%w: schema frame is nil", ErrInvalidPlan)
	}
	for _, col := range []string{catalogColumn, schemaColumn, tableColumn} {
		if schema.ColumnIndex(col) < 0 {
			return nil, fmt.Errorf("%w: schema frame has no %s column", ErrInvalidPlan, col)
		}
	}
	if schema.NumRows() == 0 {
		return nil, fmt.Errorf("%w: schema frame has no rows", ErrInvalidPlan)
	}
	for i, row := range schema.Rows {
		if len(row) != len(schema.Columns) {
			return nil, fmt.Errorf("%w: schema row %d has %d values, expected %d", ErrInvalidPlan, i, len(row), len(schema.Columns))
		}
	}

	type tableKey struct{ catalog, schema, table string }
	var order []tableKey
	groups := make(map[tableKey][][]any)
	for i := range schema.Rows {
		catalog, _ := schema.Value(i, catalogColumn)
		sch, _ := schema.Value(i, schemaColumn)
		table, _ := schema.Value(i, tableColumn)
		key := tableKey{frame.FormatValue(catalog), frame.FormatValue(sch), frame.FormatValue(table)}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], schema.Rows[i])
	}

	var detail []int
	for _, col := range planDetailColumns {
		if idx := schema.ColumnIndex(col); idx >= 0 {
			detail = append(detail, idx)
		}
	}

	plan := &TrainingPlan{}
	for _, key := range order {
		sub := &frame.Frame{Columns: make([]frame.Column, len(detail))}
		for i, idx := range detail {
			sub.Columns[i] = schema.Columns[idx]
		}
		for _, row := range groups[key] {
			values := make([]any, len(detail))
			for i, idx := range detail {
				values[i] = row[idx]
			}
			sub.Rows = append(sub.Rows, values)
		}

		var doc strings.Builder
		fmt.Fprintf(&doc, "The following columns are in the %s table in the %s database:\n\n", key.table, key.catalog)
		sub.Markdown(&doc)

		plan.items = append(plan.items, planItem{
			group: key.catalog + "." + key.schema,
			name:  key.table,
			doc:   doc.String(),
		})
	}

	a.log.Debug("assistant: built training plan", "items", len(plan.items))
	return plan, nil
}

// Train stores every item of plan as documentation and returns the new entry ids.
func (a *Assistant) Train(ctx context.Context, plan *TrainingPlan) ([]string, error) {
	if plan.Len() == 0 {
		return nil, fmt.Errorf("%w: plan is empty", ErrInvalidPlan)
	}
	ids := make([]string, 0, plan.Len())
	for _, item := range plan.items {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		id := a.store.add(EntryDocumentation, "", item.doc)
		a.log.Debug("assistant: trained on item", "group", item.group, "name", item.name, "id", id)
		ids = append(ids, id)
	}
	a.log.Info("assistant: training completed", "items", len(ids))
	return ids, nil
}

// AddDocumentation stores a free-form documentation entry.
func (a *Assistant) AddDocumentation(doc string) (string, error) {
	if strings.TrimSpace(doc) == "" {
		return "", fmt.Errorf("documentation is empty")
	}
	return a.store.add(EntryDocumentation, "", doc), nil
}

// AddQuestionSQL stores an example question with the SQL that answers it.
func (a *Assistant) AddQuestionSQL(question, sql string) (string, error) {
	if strings.TrimSpace(question) == "" || strings.TrimSpace(sql) == "" {
		return "", fmt.Errorf("question and sql are both required")
	}
	return a.store.add(EntrySQL, question, cleanSQL(sql)), nil
}

// TrainingData returns a copy of every stored entry in insertion order.
func (a *Assistant) TrainingData() []TrainingEntry {
	return a.store.list()
}

// RemoveTrainingData deletes the entry with the given id.
func (a *Assistant) RemoveTrainingData(id string) bool {
	return a.store.remove(id)
}

// TrainingDataFrame renders the stored entries as a frame.
func (a *Assistant) TrainingDataFrame() *frame.Frame {
	entries := a.store.list()
	f := &frame.Frame{Columns: []frame.Column{
		{Name: "id", Type: "text"},
		{Name: "training_data_type", Type: "text"},
		{Name: "question", Type: "text"},
		{Name: "content", Type: "text"},
		{Name: "created_at", Type: "timestamp"},
	}}
	for _, e := range entries {
		var question any
		if e.Question != "" {
			question = e.Question
		}
		f.Rows = append(f.Rows, []any{e.ID, string(e.Type), question, e.Content, e.CreatedAt})
	}
	return f
}
