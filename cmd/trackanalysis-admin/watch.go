package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/target/track-analysis-api/internal/bootstrap"
	"github.com/target/track-analysis-api/internal/client/jobsub"
	domainjob "github.com/target/track-analysis-api/internal/domain/job"
)

type watchOptions struct {
	UserID  int64
	APIBase string
	Session string
}

func newWatchCmd(cmdCtx *commandContext) *cobra.Command {
	var opts watchOptions
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a user's active job until it finishes",
		Long: "Follow a user's active job until it finishes.\n\n" +
			"With --api the job is followed through the HTTP API and its websocket stream " +
			"using --session; otherwise the services and Redis notifications are used directly.",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			out := c.OutOrStdout()
			if opts.APIBase != "" {
				if opts.Session == "" {
					return errors.New("--session is required with --api")
				}
				backend, feed, err := remoteWatch(opts, cmdCtx.Config.Session.HeaderName)
				if err != nil {
					return err
				}
				ctx, cancel := signalContext(cmdCtx.Ctx, 0)
				defer cancel()
				return follow(ctx, cmdCtx, out, backend, feed)
			}
			if opts.UserID <= 0 {
				return errUserRequired
			}
			return withServices(cmdCtx, 0, func(ctx context.Context, svc bootstrap.ServiceContainer) error {
				backend := jobsub.ServiceBackend{Jobs: svc.Jobs, Submitter: svc.Submission, UserID: opts.UserID}
				feed := jobsub.SubscriberFeed{Subscriber: svc.Subscriber, UserID: opts.UserID}
				return follow(ctx, cmdCtx, out, backend, feed)
			})
		},
	}
	cmd.Flags().Int64Var(&opts.UserID, "user", 0, "user whose active job to follow")
	cmd.Flags().StringVar(&opts.APIBase, "api", "", "API base URL, e.g. http://localhost:8080")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session id sent with API requests")
	return cmd
}

func remoteWatch(opts watchOptions, header string) (jobsub.HTTPBackend, jobsub.WebSocketFeed, error) {
	wsURL, origin, err := websocketURL(opts.APIBase)
	if err != nil {
		return jobsub.HTTPBackend{}, jobsub.WebSocketFeed{}, err
	}
	backend := jobsub.HTTPBackend{BaseURL: opts.APIBase, SessionID: opts.Session, HeaderName: header}
	feed := jobsub.WebSocketFeed{URL: wsURL, Origin: origin, SessionID: opts.Session, HeaderName: header}
	return backend, feed, nil
}

// websocketURL derives the stream endpoint and Origin header from an API base URL.
func websocketURL(base string) (string, string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", "", fmt.Errorf("parse api url: %w", err)
	}
	origin := u.Scheme + "://" + u.Host
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", "", fmt.Errorf("api url must be http or https, got %q", base)
	}
	u.Path += "/api/analysis/ws"
	return u.String(), origin, nil
}

func follow(ctx context.Context, cmdCtx *commandContext, out io.Writer, backend jobsub.Backend, feed jobsub.Feed) error {
	done := make(chan struct{}, 1)
	mgr, err := jobsub.New(jobsub.Options{
		Backend: backend,
		Feed:    feed,
		Logger:  cmdCtx.Logger,
		OnChange: func(s jobsub.Snapshot) {
			_ = writeln(out, renderSnapshot(s))
			if s.Done {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	})
	if err != nil {
		return err
	}
	defer mgr.Close()

	snap, ok, err := mgr.Load(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return writeln(out, "no active job")
	}
	if snap.Done {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return nil
	}
}

func renderSnapshot(s jobsub.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-11s analyzed=%d failed=%d pending=%d",
		s.JobID, s.Status,
		s.Count(domainjob.UIStateAnalyzed),
		s.Count(domainjob.UIStateFailed),
		s.Count(domainjob.UIStatePending),
	)
	if s.Progress.Total > 0 {
		fmt.Fprintf(&b, " batch=%d/%d", s.Progress.Completed, s.Progress.Total)
	}
	if s.Message != "" {
		b.WriteString(" - " + s.Message)
	}
	return b.String()
}
