package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/target/track-analysis-api/config"
	"github.com/target/track-analysis-api/internal/bootstrap"
)

const (
	defaultMigrationTimeout = 5 * time.Minute
	defaultCommandTimeout   = 30 * time.Second
)

// commandContext is shared by every subcommand once configuration is loaded.
type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	// loadConfig is swapped out in tests.
	loadConfig func() (config.AppConfig, error)
}

func main() {
	logger := bootstrap.InitLogger()
	cmdCtx := &commandContext{
		Ctx:        context.Background(),
		Logger:     logger,
		loadConfig: bootstrap.LoadConfig,
	}
	if err := newRootCmd(cmdCtx).Execute(); err != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func newRootCmd(cmdCtx *commandContext) *cobra.Command {
	root := &cobra.Command{
		Use:           "trackanalysis-admin",
		Short:         "Operate the track analysis database, queue, and jobs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdCtx.loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmdCtx.Config = cfg
			if cmd.Context() != nil {
				cmdCtx.Ctx = cmd.Context()
			}
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(cmdCtx),
		newDBCmd(cmdCtx),
		newJobsCmd(cmdCtx),
		newSubmitCmd(cmdCtx),
		newReapCmd(cmdCtx),
		newWatchCmd(cmdCtx),
	)
	return root
}

// signalContext bounds a command by timeout and cancels it on SIGINT/SIGTERM.
// A zero timeout only listens for signals.
func signalContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func withDatabase(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, *sql.DB) error,
) error {
	ctx, cancel := signalContext(cmdCtx.Ctx, timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", cerr)
		}
	}()

	return f(ctx, db)
}

func withRedis(
	cmdCtx *commandContext,
	f func(redis.UniversalClient) error,
) error {
	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		DBConfig:    cmdCtx.Config.Postgres,
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := client.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()
	return f(client)
}

// withServices builds the same service container the server runs with.
func withServices(
	cmdCtx *commandContext,
	timeout time.Duration,
	f func(context.Context, bootstrap.ServiceContainer) error,
) error {
	return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB) error {
		return withRedis(cmdCtx, func(client redis.UniversalClient) error {
			cfg := cmdCtx.Config
			services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
				Config:      &cfg,
				DB:          db,
				RedisClient: client,
				Logger:      cmdCtx.Logger,
			})
			if err != nil {
				return fmt.Errorf("build services: %w", err)
			}
			defer services.Close()
			return f(ctx, services)
		})
	})
}

var errUserRequired = errors.New("--user is required")

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func write(w io.Writer, args ...any) error {
	_, err := fmt.Fprint(w, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
