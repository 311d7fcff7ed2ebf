package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/malbeclabs/pgassist/pkg/metrics"
	"github.com/malbeclabs/pgassist/pkg/postgres"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// BuildInfo is stamped into the binary by LDFLAGS.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func Run(info BuildInfo) ExitCode {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stdout, "Error: failed to load .env: %v\n", err)
		return exitCodeError
	}
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.Date).Set(1)
	return execute(newRootCmd(), os.Args[1:], os.Stdout)
}

func execute(rootCmd *cobra.Command, args []string, out io.Writer) ExitCode {
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pgassist",
		Short:         "Load PostgreSQL tables, stage frames and train an NL-to-SQL assistant.",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := cmd.Help()
			if err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolP("verbose", "v", false, "set debug logging level")
	flags.StringP("config", "c", "", "YAML file with connection parameters")
	flags.String("host", "", "database host (or set POSTGRES_HOST env var)")
	flags.String("port", "", "database port (or set POSTGRES_PORT env var)")
	flags.String("database", "", "database name (or set POSTGRES_DB env var)")
	flags.String("user", "", "database user (or set POSTGRES_USER env var)")
	flags.String("password", "", "database password (or set POSTGRES_PASSWORD env var)")
	flags.String("sslmode", "", "libpq sslmode (or set POSTGRES_SSLMODE env var)")
	flags.Duration("timeout", 0, "abort the command after this long (0 means no limit)")
	flags.String("metrics-addr", "", "address to serve prometheus metrics on while the command runs")

	rootCmd.AddCommand(
		NewLoadCmd().Command(),
		NewTrainCmd().Command(),
		NewStageCmd().Command(),
		NewAskCmd().Command(),
	)

	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// resolveParams layers connection parameters: environment, then the config
// file, then any flag set on the command line.
func resolveParams(cmd *cobra.Command) (postgres.Params, error) {
	params := postgres.ParamsFromEnv()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return postgres.Params{}, fmt.Errorf("failed to get config flag: %w", err)
	}
	if configPath != "" {
		fileParams, err := postgres.LoadParamsFile(configPath)
		if err != nil {
			return postgres.Params{}, err
		}
		params = params.Merge(fileParams)
	}

	var flagParams postgres.Params
	for name, dst := range map[string]*string{
		"host":     &flagParams.Host,
		"port":     &flagParams.Port,
		"database": &flagParams.Database,
		"user":     &flagParams.User,
		"password": &flagParams.Password,
		"sslmode":  &flagParams.SSLMode,
	} {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, err := cmd.Flags().GetString(name)
		if err != nil {
			return postgres.Params{}, fmt.Errorf("failed to get %s flag: %w", name, err)
		}
		*dst = v
	}
	return params.Merge(flagParams), nil
}

// session is the per-command runtime shared by every subcommand.
type session struct {
	log    *slog.Logger
	ctx    context.Context
	params postgres.Params
	out    io.Writer
	stop   func()
}

func newSession(cmd *cobra.Command) (*session, error) {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return nil, fmt.Errorf("failed to get verbose flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, fmt.Errorf("failed to get timeout flag: %w", err)
	}
	metricsAddr, err := cmd.Flags().GetString("metrics-addr")
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics-addr flag: %w", err)
	}
	params, err := resolveParams(cmd)
	if err != nil {
		return nil, err
	}

	log := newLogger(verbose)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelSignals := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	cancelTimeout := func() {}
	if timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
	}

	stopMetrics := func() {}
	if metricsAddr != "" {
		stopMetrics, err = startMetricsServer(log, metricsAddr)
		if err != nil {
			cancelTimeout()
			cancelSignals()
			return nil, err
		}
	}

	log.Debug("cli: resolved connection", "uri", params.WithDefaults().RedactedURI())

	return &session{
		log:    log,
		ctx:    ctx,
		params: params,
		out:    cmd.OutOrStdout(),
		stop: func() {
			stopMetrics()
			cancelTimeout()
			cancelSignals()
		},
	}, nil
}
