package staging

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/pgassist/internal/pgtesting"
	"github.com/malbeclabs/pgassist/pkg/frame"
	"github.com/malbeclabs/pgassist/pkg/loader"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func nodeFrame(t *testing.T, ids ...string) *frame.Frame {
	t.Helper()
	columns := make([]frame.Column, len(NodeDataSchema))
	copy(columns, NodeDataSchema)
	var rows [][]any
	for i, id := range ids {
		rows = append(rows, []any{
			id,
			"node-" + id,
			"cluster-a",
			"p4d.24xlarge",
			"gpu,prod",
			time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			"2024-02-01 12:00:00",
			"aws",
		})
	}
	f, err := frame.New(columns, rows)
	require.NoError(t, err)
	return f
}

func TestStaging_CreateTableSQL(t *testing.T) {
	require.Equal(t,
		`CREATE TABLE "node_data" ("nodeid" TEXT, "nodename" TEXT, "clustername" TEXT, "instancetype" TEXT, "tags" TEXT, "created" TIMESTAMP, "snapshottime" TIMESTAMP, "platform" TEXT)`,
		createTableSQL("node_data", NodeDataSchema),
	)
	require.True(t, strings.HasPrefix(createTableSQL("ops.nodes", NodeDataSchema), `CREATE TABLE "ops"."nodes" (`))
}

func TestStaging_ConformRows(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("reorders and null-fills missing columns", func(t *testing.T) {
		f := &frame.Frame{
			Columns: []frame.Column{{Name: "platform"}, {Name: "created"}, {Name: "nodeid"}},
			Rows:    [][]any{{"aws", created, 42}},
		}
		rows, err := conformRows(f, NodeDataSchema)
		require.NoError(t, err)
		want := [][]any{{"42", nil, nil, nil, nil, created, nil, "aws"}}
		if diff := cmp.Diff(want, rows); diff != "" {
			t.Fatalf("rows mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("parses timestamp strings", func(t *testing.T) {
		f := &frame.Frame{
			Columns: []frame.Column{{Name: "created"}, {Name: "snapshottime"}},
			Rows: [][]any{
				{"2024-01-02T03:04:05Z", "2024-01-02 03:04:05"},
				{"2024-01-02", ""},
				{[]byte("2024-01-02T03:04:05"), nil},
			},
		}
		rows, err := conformRows(f, NodeDataSchema)
		require.NoError(t, err)
		require.Equal(t, created, rows[0][5])
		require.Equal(t, created, rows[0][6])
		require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), rows[1][5])
		require.Nil(t, rows[1][6])
		require.Equal(t, created, rows[2][5])
		require.Nil(t, rows[2][6])
	})

	t.Run("rejects extra columns", func(t *testing.T) {
		f := &frame.Frame{
			Columns: []frame.Column{{Name: "nodeid"}, {Name: "gpus"}, {Name: "region"}},
			Rows:    [][]any{{"n1", 8, "us"}},
		}
		_, err := conformRows(f, NodeDataSchema)
		require.ErrorIs(t, err, ErrSchemaMismatch)
		require.ErrorContains(t, err, "unexpected columns gpus, region")
	})

	t.Run("rejects ragged rows", func(t *testing.T) {
		f := &frame.Frame{
			Columns: []frame.Column{{Name: "nodeid"}, {Name: "platform"}},
			Rows:    [][]any{{"n1", "aws"}, {"n2"}},
		}
		_, err := conformRows(f, NodeDataSchema)
		require.ErrorIs(t, err, ErrSchemaMismatch)
		require.ErrorContains(t, err, "row 1 has 1 values, expected 2")
	})

	t.Run("rejects bad timestamps", func(t *testing.T) {
		f := &frame.Frame{
			Columns: []frame.Column{{Name: "created"}},
			Rows:    [][]any{{"yesterday"}},
		}
		_, err := conformRows(f, NodeDataSchema)
		require.ErrorIs(t, err, ErrSchemaMismatch)
		require.ErrorContains(t, err, `row 0 column created: cannot parse "yesterday" as a timestamp`)

		f.Rows = [][]any{{3.5}}
		_, err = conformRows(f, NodeDataSchema)
		require.ErrorIs(t, err, ErrSchemaMismatch)
		require.ErrorContains(t, err, "cannot use float64 as a timestamp")
	})
}

func TestStaging_CreateTableFromFrame_Validation(t *testing.T) {
	// Validation happens before the database is touched, so a nil DB is never used.
	_, err := CreateTableFromFrame(context.Background(), testLogger(), nil, nil, "")
	require.ErrorIs(t, err, ErrSchemaMismatch)

	f := &frame.Frame{Columns: []frame.Column{{Name: "unexpected"}}}
	_, err = CreateTableFromFrame(context.Background(), testLogger(), nil, f, "")
	require.ErrorIs(t, err, ErrSchemaMismatch)
}

func openPool(t *testing.T, params postgres.Params) *pgxpool.Pool {
	t.Helper()
	pool, err := postgres.Open(t.Context(), testLogger(), params)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestStaging_CreateTableFromFrame_Replace(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	pool := openPool(t, db.Params)
	ctx := t.Context()

	name, err := CreateTableFromFrame(ctx, testLogger(), pool, nodeFrame(t, "a", "b", "c"), "")
	require.NoError(t, err)
	require.Equal(t, DefaultTable, name)
	require.Equal(t, 3, db.Count(DefaultTable))

	_, err = CreateTableFromFrame(ctx, testLogger(), pool, nodeFrame(t, "x", "y"), "")
	require.NoError(t, err)
	require.Equal(t, 2, db.Count(DefaultTable))

	f, err := loader.ReadQuery(ctx, pool, "SELECT nodeid FROM node_data ORDER BY nodeid")
	require.NoError(t, err)
	require.Equal(t, [][]any{{"x"}, {"y"}}, f.Rows)
}

func TestStaging_CreateTableFromFrame_Schema(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	pool := openPool(t, db.Params)
	ctx := t.Context()

	partial := &frame.Frame{
		Columns: []frame.Column{{Name: "nodeid"}, {Name: "snapshottime"}},
		Rows:    [][]any{{"n1", "2024-02-01T12:00:00Z"}},
	}
	_, err := CreateTableFromFrame(ctx, testLogger(), pool, partial, "nodes")
	require.NoError(t, err)

	f, err := loader.ReadTable(ctx, pool, "nodes")
	require.NoError(t, err)
	require.Equal(t, []string{"nodeid", "nodename", "clustername", "instancetype", "tags", "created", "snapshottime", "platform"}, f.ColumnNames())
	require.Equal(t, "timestamp", f.Columns[5].Type)
	require.Equal(t, 1, f.NumRows())
	nodename, _ := f.Value(0, "nodename")
	require.Nil(t, nodename)
	snapshot, _ := f.Value(0, "snapshottime")
	require.True(t, snapshot.(time.Time).Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))

	// A mismatched frame is rejected and the existing table is untouched.
	extra := &frame.Frame{Columns: []frame.Column{{Name: "nodeid"}, {Name: "gpus"}}, Rows: [][]any{{"n2", 8}}}
	_, err = CreateTableFromFrame(ctx, testLogger(), pool, extra, "nodes")
	require.ErrorIs(t, err, ErrSchemaMismatch)
	require.Equal(t, 1, db.Count("nodes"))
}

func TestStaging_CreateTableFromFrame_SchemaQualified(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	db.Exec(`CREATE SCHEMA ops`)
	pool := openPool(t, db.Params)
	ctx := t.Context()

	name, err := CreateTableFromFrame(ctx, testLogger(), pool, nodeFrame(t, "a", "b"), "ops.nodes")
	require.NoError(t, err)
	require.Equal(t, "ops.nodes", name)
	require.Equal(t, 2, db.Count("ops.nodes"))

	// The qualified name lands in the schema, not in a dotted public table.
	var inPublic int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM information_schema.tables WHERE table_schema='public' AND table_name='ops.nodes'`).Scan(&inPublic))
	require.Zero(t, inPublic)

	f, err := loader.LoadTable(ctx, testLogger(), db.Params, "ops.nodes")
	require.NoError(t, err)
	require.Equal(t, 2, f.NumRows())

	_, err = CreateTableFromFrame(ctx, testLogger(), pool, nodeFrame(t, "c"), "ops.nodes")
	require.NoError(t, err)
	require.Equal(t, 1, db.Count("ops.nodes"))
}

func TestStaging_SetupWithFrame(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	ctx := t.Context()

	res, err := SetupWithFrame(ctx, testLogger(), nodeFrame(t, "a", "b", "c"), db.Params, "")
	require.NoError(t, err)
	defer res.Close()

	require.Equal(t, DefaultTable, res.Table)
	require.NotNil(t, res.Engine)
	require.NoError(t, res.Engine.Ping(ctx))

	f, err := res.Assistant.RunSQL(ctx, "SELECT instancetype, count(*) AS n FROM node_data GROUP BY instancetype")
	require.NoError(t, err)
	require.Equal(t, [][]any{{"p4d.24xlarge", int64(3)}}, f.Rows)
}

func TestStaging_SetupWithFrame_Failures(t *testing.T) {
	_, err := SetupWithFrame(context.Background(), testLogger(), nodeFrame(t, "a"), postgres.Params{Database: "testdb"}, "")
	require.ErrorIs(t, err, postgres.ErrInvalidParams)
}
