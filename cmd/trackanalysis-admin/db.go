package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	redisadapter "github.com/target/track-analysis-api/internal/adapters/redis"
	"github.com/target/track-analysis-api/internal/bootstrap"
	"github.com/target/track-analysis-api/internal/devseed"
	"github.com/target/track-analysis-api/internal/migrate"
)

func newMigrateCmd(cmdCtx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return withDatabase(cmdCtx, timeout, func(ctx context.Context, db *sql.DB) error {
				cmdCtx.Logger.Info("running database migrations")
				if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				cmdCtx.Logger.Info("migrations completed successfully")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", defaultMigrationTimeout, "maximum time to wait for migrations")

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
				st, err := migrate.CurrentStatus(ctx, db)
				if err != nil {
					return err
				}
				return printMigrationStatus(c.OutOrStdout(), st)
			})
		},
	}
	cmd.AddCommand(status)
	return cmd
}

func printMigrationStatus(w io.Writer, st migrate.Status) error {
	for _, name := range st.Applied {
		if err := writef(w, "applied  %s\n", name); err != nil {
			return err
		}
	}
	for _, name := range st.Pending {
		if err := writef(w, "pending  %s\n", name); err != nil {
			return err
		}
	}
	return writef(w, "\n%d applied, %d pending\n", len(st.Applied), len(st.Pending))
}

type dbResetOptions struct {
	Yes         bool
	Seed        bool
	AllowRemote bool
	Timeout     time.Duration
}

func newDBCmd(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Development database maintenance",
	}

	var reset dbResetOptions
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop the database schema, run migrations, and optionally seed data",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return runDBReset(cmdCtx, c, reset)
		},
	}
	resetCmd.Flags().BoolVar(&reset.Yes, "yes", false, "skip the confirmation prompt")
	resetCmd.Flags().BoolVar(&reset.Seed, "seed", false, "seed development data after the reset")
	resetCmd.Flags().BoolVar(&reset.AllowRemote, "allow-remote", false, "permit non-local database hosts")
	resetCmd.Flags().DurationVar(&reset.Timeout, "timeout", defaultMigrationTimeout, "maximum time for the reset")

	var (
		seedAllowRemote bool
		seedSession     bool
	)
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Run database migrations and seed development data",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if _, err := guardRemoteHost(cmdCtx, c, seedAllowRemote, "seed development data on the configured database"); err != nil {
				return err
			}
			if seedSession && !cmdCtx.Config.IsDev {
				cmdCtx.Logger.Warn("skipping dev session outside development mode; set DEV=true to write it")
				seedSession = false
			}
			return withDatabase(cmdCtx, defaultMigrationTimeout, func(ctx context.Context, db *sql.DB) error {
				if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
					return fmt.Errorf("run migrations: %w", err)
				}
				if !seedSession {
					return runSeed(ctx, cmdCtx, c.OutOrStdout(), devseed.NewServices(db, nil))
				}
				return withRedis(cmdCtx, func(client redis.UniversalClient) error {
					sessions := redisadapter.NewSessionStore(client, cmdCtx.Config.Session.KeyPrefix)
					return runSeed(ctx, cmdCtx, c.OutOrStdout(), devseed.NewServices(db, sessions))
				})
			})
		},
	}
	seedCmd.Flags().BoolVar(&seedAllowRemote, "allow-remote", false, "permit non-local database hosts")
	seedCmd.Flags().BoolVar(&seedSession, "session", true, "also write a dev session to Redis")

	cmd.AddCommand(resetCmd, seedCmd)
	return cmd
}

func runSeed(ctx context.Context, cmdCtx *commandContext, w io.Writer, svc devseed.Services) error {
	res, err := devseed.Run(ctx, svc, cmdCtx.Logger)
	if err != nil {
		return fmt.Errorf("seed data: %w", err)
	}
	if err := writef(w, "seeded %d tracks for user %d (provider %s)\n", len(res.TrackIDs), devseed.DevUserID, res.Provider); err != nil {
		return err
	}
	if res.SessionID != "" {
		return writef(w, "dev session: %s=%s\n", cmdCtx.Config.Session.HeaderName, res.SessionID)
	}
	return nil
}

func runDBReset(cmdCtx *commandContext, c *cobra.Command, opts dbResetOptions) error {
	pg := cmdCtx.Config.Postgres
	target := fmt.Sprintf("database %q on %s:%d", pg.Name, pg.Host, pg.Port)

	if _, err := guardRemoteHost(cmdCtx, c, opts.AllowRemote, "drop and recreate the public schema"); err != nil {
		return err
	}
	if !opts.Yes {
		if err := confirm(c.InOrStdin(), c.OutOrStdout(), fmt.Sprintf("About to reset database schema for %s.", target)); err != nil {
			return err
		}
	}

	return withDatabase(cmdCtx, opts.Timeout, func(ctx context.Context, db *sql.DB) error {
		cmdCtx.Logger.Info("dropping public schema", "database", pg.Name)
		if err := cmdCtx.resetDatabase(ctx, db); err != nil {
			return err
		}

		cmdCtx.Logger.Info("re-running database migrations")
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}

		if opts.Seed {
			cmdCtx.Logger.Info("seeding development data after reset")
			if err := runSeed(ctx, cmdCtx, c.OutOrStdout(), devseed.NewServices(db, nil)); err != nil {
				return err
			}
		}

		cmdCtx.Logger.Info("database reset completed successfully")
		return nil
	})
}

func (cmdCtx *commandContext) resetDatabase(ctx context.Context, db *sql.DB) error {
	if cmdCtx == nil {
		return errors.New("command context is required")
	}
	for _, stmt := range resetStatements(cmdCtx.Config.Postgres.User) {
		cmdCtx.Logger.DebugContext(ctx, "executing reset statement", "sql", stmt)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute %q: %w", stmt, err)
		}
	}
	return nil
}

func resetStatements(user string) []string {
	statements := []string{
		"DROP SCHEMA public CASCADE",
		"CREATE SCHEMA public",
		"GRANT ALL ON SCHEMA public TO public",
	}
	if user = strings.TrimSpace(user); user != "" && !strings.EqualFold(user, "public") {
		statements = append(statements, "GRANT ALL ON SCHEMA public TO "+quoteIdentifier(user))
	}
	return statements
}

func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func guardRemoteHost(cmdCtx *commandContext, c *cobra.Command, allow bool, action string) (bool, error) {
	host := cmdCtx.Config.Postgres.Host
	if !isLikelyRemoteHost(host) {
		return false, nil
	}
	if !allow {
		return true, fmt.Errorf(
			"refusing to run against potentially remote database host %q; re-run with --allow-remote if this is intentional",
			host,
		)
	}
	return true, requireRemoteHostConfirmation(c.InOrStdin(), c.ErrOrStderr(), action, host)
}

func isLikelyRemoteHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "" {
		return false
	}
	if h == "localhost" || h == "127.0.0.1" || h == "::1" {
		return false
	}
	if strings.HasSuffix(h, ".local") {
		return false
	}
	if ip := net.ParseIP(h); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

func requireRemoteHostConfirmation(in io.Reader, out io.Writer, action, host string) error {
	if err := writef(out,
		"\nWARNING: database host %q does not look like a local address.\nThis operation will %s.\n",
		host, action,
	); err != nil {
		return fmt.Errorf("print remote host warning: %w", err)
	}
	if err := writef(out, "Type %q to continue or press enter to abort: ", host); err != nil {
		return fmt.Errorf("print remote host prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && resp == "" {
		return errors.New("aborted by user")
	}
	if strings.TrimSpace(resp) != host {
		if werr := writeln(out, "\nRemote safeguard check failed; aborting."); werr != nil {
			return fmt.Errorf("print remote safeguard failure: %w", werr)
		}
		return errors.New("aborted by user")
	}
	return nil
}

func confirm(in io.Reader, out io.Writer, message string) error {
	if err := writeln(out, message); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	if err := write(out, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	resp, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && resp == "" {
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
