package loader

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/malbeclabs/pgassist/internal/pgtesting"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestLoader_NormalizeValue(t *testing.T) {
	id := [16]byte{0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78, 0x12, 0x34, 0x56, 0x78}
	require.Equal(t, "12345678-1234-5678-1234-567812345678", normalizeValue(id))

	var num pgtype.Numeric
	require.NoError(t, num.Scan("12.5"))
	require.Equal(t, 12.5, normalizeValue(num))

	require.Nil(t, normalizeValue(pgtype.Numeric{}))
	require.Equal(t, "x", normalizeValue("x"))
	require.Nil(t, normalizeValue(nil))
}

func TestLoader_LoadTable_InvalidParams(t *testing.T) {
	ctx := context.Background()

	f, err := LoadTable(ctx, testLogger(), postgres.Params{Database: "testdb"}, "gpu_jobs")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrInvalidParams)
	require.NotEmpty(t, err.Error())

	f, err = LoadTable(ctx, testLogger(), postgres.Params{Database: "testdb", User: "u", Password: "p"}, " ")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrInvalidParams)

	f, err = Query(ctx, testLogger(), postgres.Params{Database: "testdb", User: "u", Password: "p"}, "")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrInvalidParams)
}

func TestLoader_LoadTable_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Nothing listens on port 1 locally, so the dial is refused.
	params := postgres.Params{Host: "127.0.0.1", Port: "1", Database: "testdb", User: "u", Password: "p", SSLMode: "disable"}
	f, err := LoadTable(ctx, testLogger(), params, "gpu_jobs")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrConnect)
	require.NotEmpty(t, err.Error())
}

func TestLoader_LoadTable_RoundTrip(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	db.Exec(
		`CREATE TABLE gpu_jobs (
			id INTEGER PRIMARY KEY,
			name TEXT,
			gpus INTEGER,
			cost NUMERIC(10, 2),
			submitted_at TIMESTAMPTZ
		)`,
		`INSERT INTO gpu_jobs VALUES
			(1, 'train-a', 8, 12.50, '2024-01-02T03:04:05Z'),
			(2, 'train-b', 4, NULL, '2024-01-03T03:04:05Z'),
			(3, NULL, 1, 0.75, NULL)`,
	)

	f, err := LoadTable(t.Context(), testLogger(), db.Params, "gpu_jobs")
	require.NoError(t, err)
	require.Equal(t, 3, f.NumRows())
	require.Equal(t, []string{"id", "name", "gpus", "cost", "submitted_at"}, f.ColumnNames())
	require.Equal(t, "int4", f.Columns[0].Type)
	require.Equal(t, "text", f.Columns[1].Type)
	require.Equal(t, "timestamptz", f.Columns[4].Type)

	name, ok := f.Value(0, "name")
	require.True(t, ok)
	require.Equal(t, "train-a", name)

	cost, _ := f.Value(0, "cost")
	require.Equal(t, 12.5, cost)

	missing, _ := f.Value(2, "name")
	require.Nil(t, missing)

	submitted, _ := f.Value(0, "submitted_at")
	require.IsType(t, time.Time{}, submitted)
	require.True(t, submitted.(time.Time).Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestLoader_LoadTable_SchemaQualified(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	db.Exec(
		`CREATE SCHEMA jobs`,
		`CREATE TABLE jobs.gpu_jobs (id INTEGER)`,
		`INSERT INTO jobs.gpu_jobs VALUES (1), (2)`,
	)

	f, err := LoadTable(t.Context(), testLogger(), db.Params, "jobs.gpu_jobs")
	require.NoError(t, err)
	require.Equal(t, 2, f.NumRows())
}

func TestLoader_LoadTable_EmptyTable(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	db.Exec(`CREATE TABLE empty_jobs (id INTEGER, name TEXT)`)

	f, err := LoadTable(t.Context(), testLogger(), db.Params, "empty_jobs")
	require.NoError(t, err)
	require.Equal(t, 0, f.NumRows())
	require.Equal(t, []string{"id", "name"}, f.ColumnNames())
}

func TestLoader_LoadTable_Failures(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)

	f, err := LoadTable(t.Context(), testLogger(), db.Params, "does_not_exist")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrTableNotFound)

	badAuth := db.Params
	badAuth.Password = "wrong"
	f, err = LoadTable(t.Context(), testLogger(), badAuth, "does_not_exist")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrAuth)

	badDB := db.Params
	badDB.Database = "nope"
	f, err = LoadTable(t.Context(), testLogger(), badDB, "does_not_exist")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrConnect)
}

func TestLoader_Query(t *testing.T) {
	db := pgtesting.NewDefaultDB(t)
	db.Exec(
		`CREATE TABLE gpu_jobs (id INTEGER, gpus INTEGER)`,
		`INSERT INTO gpu_jobs VALUES (1, 8), (2, 4), (3, 1)`,
	)

	f, err := Query(t.Context(), testLogger(), db.Params, "SELECT id FROM gpu_jobs WHERE gpus > 2 ORDER BY id")
	require.NoError(t, err)
	require.Equal(t, [][]any{{int32(1)}, {int32(2)}}, f.Rows)

	f, err = Query(t.Context(), testLogger(), db.Params, "SELEC nonsense")
	require.Nil(t, f)
	require.ErrorIs(t, err, postgres.ErrQuery)
}
