package pgtesting

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/malbeclabs/pgassist/pkg/postgres"
)

type DBConfig struct {
	Database       string
	Username       string
	Password       string
	ContainerImage string
}

func (cfg *DBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "testdb"
	}
	if cfg.Username == "" {
		cfg.Username = "u"
	}
	if cfg.Password == "" {
		cfg.Password = "p"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "postgres:16-alpine"
	}
	return nil
}

// DB is a throwaway PostgreSQL server running in a container.
type DB struct {
	Params    postgres.Params
	container *tcpostgres.PostgresContainer
	t         testing.TB
}

func NewDefaultDB(t testing.TB) *DB {
	return NewDB(t, nil)
}

// NewDB starts a PostgreSQL container and terminates it when the test ends.
// The test is skipped in -short mode.
func NewDB(t testing.TB, cfg *DBConfig) *DB {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := t.Context()

	if cfg == nil {
		cfg = &DBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("failed to validate DB config: %v", err)
	}

	// Retry container start up to 3 times for retryable errors
	var container *tcpostgres.PostgresContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcpostgres.Run(ctx,
			cfg.ContainerImage,
			tcpostgres.WithDatabase(cfg.Database),
			tcpostgres.WithUsername(cfg.Username),
			tcpostgres.WithPassword(cfg.Password),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			lastErr = err
			if isRetryableContainerStartErr(err) && attempt < 3 {
				time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
				continue
			}
			require.NoError(t, err)
		}
		break
	}
	if container == nil {
		t.Fatalf("failed to start postgres container after retries: %v", lastErr)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to cleanup postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	return &DB{
		Params: postgres.Params{
			Host:     host,
			Port:     mappedPort.Port(),
			Database: cfg.Database,
			User:     cfg.Username,
			Password: cfg.Password,
			SSLMode:  "disable",
		},
		container: container,
		t:         t,
	}
}

// Exec runs each statement on a fresh connection, failing the test on error.
func (db *DB) Exec(statements ...string) {
	db.t.Helper()
	ctx := db.t.Context()

	conn, err := pgx.Connect(ctx, db.Params.URI())
	require.NoError(db.t, err)
	defer conn.Close(context.Background())

	for _, stmt := range statements {
		_, err := conn.Exec(ctx, stmt)
		require.NoError(db.t, err, "statement: %s", stmt)
	}
}

// Count returns the number of rows in table, which may be schema-qualified.
func (db *DB) Count(table string) int {
	db.t.Helper()
	ctx := db.t.Context()

	conn, err := pgx.Connect(ctx, db.Params.URI())
	require.NoError(db.t, err)
	defer conn.Close(context.Background())

	var n int
	err = conn.QueryRow(ctx, "SELECT count(*) FROM "+postgres.TableIdentifier(table).Sanitize()).Scan(&n)
	require.NoError(db.t, err)
	return n
}

func isRetryableContainerStartErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "/containers/") && strings.Contains(s, "json") ||
		strings.Contains(s, "Get \"http://%2Fvar%2Frun%2Fdocker.sock")
}
