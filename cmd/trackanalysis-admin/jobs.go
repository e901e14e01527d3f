package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/track-analysis-api/internal/bootstrap"
	"github.com/target/track-analysis-api/internal/core"
	"github.com/target/track-analysis-api/internal/domain/model"
)

func newJobsCmd(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage analysis jobs",
	}
	cmd.AddCommand(
		newJobsListCmd(cmdCtx),
		newJobsShowCmd(cmdCtx),
		newJobsRecoverCmd(cmdCtx),
		newJobsCancelCmd(cmdCtx),
	)
	return cmd
}

func newJobsListCmd(cmdCtx *commandContext) *cobra.Command {
	var (
		userID int64
		limit  int
		offset int
		active bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's jobs, or every active job with --active",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if !active && userID <= 0 {
				return errUserRequired
			}
			return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				var (
					jobs []*model.Job
					err  error
				)
				if active {
					jobs, err = svc.Repos.Jobs.ListActive(ctx, limit)
				} else {
					jobs, err = svc.Jobs.ListJobs(ctx, model.JobListOptions{UserID: userID, Limit: limit, Offset: offset})
				}
				if err != nil {
					return err
				}
				return printJobs(c.OutOrStdout(), jobs, time.Now())
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "owner user id")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&active, "active", false, "list non-terminal jobs across all users")
	return cmd
}

func newJobsShowCmd(cmdCtx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its reconstructed item states",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				job, err := svc.Jobs.GetJob(ctx, 0, args[0])
				if err != nil {
					return err
				}
				snap, err := svc.Jobs.Snapshot(ctx, job.ID)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(c.OutOrStdout(), snap)
				}
				return printJobDetail(c.OutOrStdout(), job, snap, time.Now())
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reconstructed job as JSON")
	return cmd
}

func newJobsRecoverCmd(cmdCtx *commandContext) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "recover [job-id]",
		Short: "Reconcile an active job from its records, settling it when complete or stalled",
		Long: "Reconcile an active job from its records, settling it when complete or stalled.\n\n" +
			"Pass a job id, or --user to recover that user's most recent job.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 0 && userID <= 0 {
				return errors.New("a job id or --user is required")
			}
			return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				var (
					rec    *model.RecoveredJob
					err    error
					target string
				)
				if len(args) == 1 {
					target = "job " + args[0]
					rec, err = svc.Jobs.RecoverJob(ctx, args[0])
				} else {
					target = "user " + strconv.FormatInt(userID, 10)
					rec, err = svc.Jobs.Recover(ctx, userID)
				}
				if errors.Is(err, model.ErrNoActiveJob) {
					return writef(c.OutOrStdout(), "%s has no active job\n", target)
				}
				if err != nil {
					return err
				}
				return printRecovered(c.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "recover this user's most recent job")
	return cmd
}

func printRecovered(w io.Writer, rec *model.RecoveredJob) error {
	counts := make(map[model.ItemState]int, 4)
	for _, p := range rec.ItemStates {
		counts[p.State]++
	}
	if err := writef(w, "job %s: %s (transitioned=%t) queued=%d in_progress=%d completed=%d failed=%d\n",
		rec.JobID, rec.Status, rec.Transitioned,
		counts[model.ItemStateQueued], counts[model.ItemStateInProgress],
		counts[model.ItemStateCompleted], counts[model.ItemStateFailed],
	); err != nil {
		return err
	}
	if rec.Message != "" {
		return writeln(w, rec.Message)
	}
	return nil
}

func newJobsCancelCmd(cmdCtx *commandContext) *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel an active job and purge its queued messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				job, err := svc.Jobs.Cancel(ctx, core.CancelJobRequest{JobID: args[0], UserID: userID})
				if err != nil {
					return err
				}
				return writef(c.OutOrStdout(), "job %s: %s\n", job.ID, job.Status)
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "only cancel when the job belongs to this user")
	return cmd
}

func newSubmitCmd(cmdCtx *commandContext) *cobra.Command {
	var (
		userID    int64
		items     string
		batchSize int
		jobID     string
		playlist  string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit tracks for analysis on behalf of a user",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errUserRequired
			}
			ids, err := parseItemIDs(items)
			if err != nil {
				return err
			}
			req := model.SubmitRequest{
				UserID:        userID,
				ItemIDs:       ids,
				BatchSizeHint: batchSize,
				JobID:         jobID,
			}
			if playlist != "" {
				req.JobType = model.JobTypePlaylist
				req.PlaylistID = &playlist
			}
			return withServices(cmdCtx, defaultCommandTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				res, err := svc.Submission.Submit(ctx, req)
				if err != nil {
					return err
				}
				return writef(c.OutOrStdout(), "job %s queued %d of %d items (%d already analyzed)\n",
					res.JobID, res.TotalQueued, len(ids), len(res.AlreadyAnalyzed))
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "submitting user id")
	cmd.Flags().StringVar(&items, "items", "", "comma-separated track ids")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "items per queue message (0 uses the default)")
	cmd.Flags().StringVar(&jobID, "job-id", "", "client-chosen job id (generated when empty)")
	cmd.Flags().StringVar(&playlist, "playlist", "", "playlist id; marks the job as a playlist analysis")
	return cmd
}

func newReapCmd(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reap-once",
		Short: "Fail stalled jobs and purge queue groups of finished jobs, then exit",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return withServices(cmdCtx, defaultMigrationTimeout, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				runner, err := bootstrap.NewReaperRunner(bootstrap.ReaperConfig{
					Config:   cmdCtx.Config.Reaper,
					Services: svc,
					Logger:   cmdCtx.Logger,
				})
				if err != nil {
					return err
				}
				if err := runner.RunOnce(ctx); err != nil {
					return fmt.Errorf("reap: %w", err)
				}
				return writeln(c.OutOrStdout(), "reaper pass complete")
			})
		},
	}
}

func parseItemIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid track id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New("--items must name at least one track id")
	}
	return ids, nil
}

// elapsed reports how long a job ran, or has been running, rounded for a
// terminal. Clock skew between hosts can make it negative; that prints "-".
func elapsed(job *model.Job, now time.Time) string {
	end := now
	if job.CompletedAt != nil {
		end = *job.CompletedAt
	}
	d := end.Sub(job.CreatedAt)
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func printJobs(w io.Writer, jobs []*model.Job, now time.Time) error {
	if len(jobs) == 0 {
		return writeln(w, "no jobs")
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if err := writeln(tw, "ID\tUSER\tTYPE\tSTATUS\tPROCESSED\tSUCCEEDED\tFAILED\tELAPSED"); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := writef(tw, "%s\t%d\t%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			j.ID, j.UserID, j.Type, j.Status,
			j.ItemsProcessed, j.ItemCount, j.ItemsSucceeded, j.ItemsFailed,
			elapsed(j, now),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printJobDetail(w io.Writer, job *model.Job, snap *model.RecoveredJob, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Job", job.ID},
		{"User", strconv.FormatInt(job.UserID, 10)},
		{"Type", string(job.Type)},
		{"Status", string(job.Status)},
		{"Progress", fmt.Sprintf("%d/%d (%d succeeded, %d failed)", job.ItemsProcessed, job.ItemCount, job.ItemsSucceeded, job.ItemsFailed)},
		{"Created", job.CreatedAt.Format(time.RFC3339)},
		{"Elapsed", elapsed(job, now)},
	}
	if job.ErrorMessage != nil {
		rows = append(rows, [2]string{"Error", *job.ErrorMessage})
	}
	for _, r := range rows {
		if err := writef(tw, "%s:\t%s\n", r[0], r[1]); err != nil {
			return err
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if err := writeln(w, "\nITEMS"); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, p := range snap.ItemStates {
		if err := writef(tw, "%d\t%s\t%s\n", p.ItemID, p.State, p.Source); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
