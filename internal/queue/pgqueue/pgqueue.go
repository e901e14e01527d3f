// Package pgqueue implements the queue transport on a Postgres table. Receivers lease
// rows with FOR UPDATE SKIP LOCKED and long-poll with LISTEN/NOTIFY.
package pgqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/target/track-analysis-api/internal/data/pgxutil"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/queue"
)

// maxListenWait bounds one LISTEN wait so a notification sent between a lease
// attempt and LISTEN delays delivery by at most this long.
const maxListenWait = time.Second

// Options configures a Transport.
type Options struct {
	DB        *sql.DB // Required
	QueueName string  // Required
	Logger    *slog.Logger
	// Now overrides the clock used for visibility; defaults to time.Now.
	Now func() time.Time
}

// Transport is a Postgres-backed QueueTransport.
type Transport struct {
	db      *sql.DB
	queue   string
	channel string
	logger  *slog.Logger
	now     func() time.Time
}

// New constructs a Transport.
func New(opts Options) (*Transport, error) {
	if opts.DB == nil {
		return nil, errors.New("pgqueue: DB is required")
	}
	if opts.QueueName == "" {
		return nil, errors.New("pgqueue: queue name is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Transport{
		db:      opts.DB,
		queue:   opts.QueueName,
		channel: "queue_" + opts.QueueName,
		logger:  logger.With("component", "pgqueue", "queue", opts.QueueName),
		now:     now,
	}, nil
}

// Enqueue adds one message and returns its id.
func (t *Transport) Enqueue(ctx context.Context, msg model.OutgoingMessage) (string, error) {
	ids, err := t.EnqueueBatch(ctx, []model.OutgoingMessage{msg})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// EnqueueBatch adds all messages in one transaction. Either all are enqueued or none.
func (t *Transport) EnqueueBatch(ctx context.Context, msgs []model.OutgoingMessage) ([]string, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(msgs))
	groups := make([]string, len(msgs))
	bodies := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = uuid.NewString()
		groups[i] = m.GroupID
		bodies[i] = string(m.Body)
	}

	now := t.now().UTC()
	err := pgxutil.WithPgxTx(ctx, t.db, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `
				INSERT INTO queue_messages (id, queue, group_id, body, visible_at, created_at)
				SELECT m.id, $1, m.group_id, m.body::jsonb, $5, $5
				FROM unnest($2::uuid[], $3::text[], $4::text[]) AS m(id, group_id, body)
			`, t.queue, ids, groups, bodies, now); err != nil {
				return fmt.Errorf("insert queue messages: %w", err)
			}
			if _, err := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, t.channel, fmt.Sprint(len(msgs))); err != nil {
				return fmt.Errorf("notify %s: %w", t.channel, err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Receive leases up to opts.MaxMessages visible messages. When none are visible it
// waits for an enqueue notification until opts.WaitTime elapses.
func (t *Transport) Receive(ctx context.Context, opts model.ReceiveOptions) ([]model.ReceivedMessage, error) {
	opts = queue.NormalizeReceive(opts)
	deadline := time.Now().Add(opts.WaitTime)

	for {
		msgs, err := t.lease(ctx, opts)
		if err != nil || len(msgs) > 0 {
			return msgs, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		if err := t.waitForNotification(ctx, min(remaining, maxListenWait)); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if !errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
		}
	}
}

func (t *Transport) lease(ctx context.Context, opts model.ReceiveOptions) ([]model.ReceivedMessage, error) {
	now := t.now().UTC()
	var out []model.ReceivedMessage
	err := pgxutil.WithPgxConn(ctx, t.db, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE queue_messages
			SET receipt_handle = gen_random_uuid(),
			    receive_count = receive_count + 1,
			    visible_at = $2
			WHERE id IN (
				SELECT id FROM queue_messages
				WHERE queue = $1 AND visible_at <= $3
				ORDER BY created_at, id
				LIMIT $4
				FOR UPDATE SKIP LOCKED
			)
			RETURNING id::text, receipt_handle::text, body::text, receive_count, created_at
		`, t.queue, now.Add(opts.VisibilityTimeout), now, opts.MaxMessages)
		if err != nil {
			return fmt.Errorf("lease messages: %w", err)
		}
		out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.ReceivedMessage, error) {
			var m model.ReceivedMessage
			var body string
			if scanErr := row.Scan(&m.ID, &m.ReceiptHandle, &body, &m.ReceiveCount, &m.SentAt); scanErr != nil {
				return m, scanErr
			}
			m.Body = []byte(body)
			return m, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// waitForNotification blocks until an enqueue notification arrives or wait elapses.
func (t *Transport) waitForNotification(ctx context.Context, wait time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	conn, err := t.db.Conn(waitCtx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			t.logger.DebugContext(ctx, "close listen conn", "error", cerr)
		}
	}()

	quoted := pgx.Identifier{t.channel}.Sanitize()
	if _, execErr := conn.ExecContext(waitCtx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", t.channel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			t.logger.DebugContext(ctx, "unlisten failed", "error", execErr)
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(waitCtx)
		return notifyErr
	})
}

// Delete removes a leased message. A handle rotated by a later receive returns model.ErrReceiptExpired.
func (t *Transport) Delete(ctx context.Context, receiptHandle string) error {
	handle, err := uuid.Parse(receiptHandle)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrReceiptExpired, receiptHandle)
	}
	var n int64
	err = pgxutil.WithPgxConn(ctx, t.db, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx, `DELETE FROM queue_messages WHERE queue = $1 AND receipt_handle = $2`, t.queue, handle.String())
		if execErr != nil {
			return fmt.Errorf("delete message: %w", execErr)
		}
		n = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrReceiptExpired
	}
	return nil
}

// PurgeGroup removes every pending message of a group, leased or not.
func (t *Transport) PurgeGroup(ctx context.Context, groupID string) (int64, error) {
	var n int64
	err := pgxutil.WithPgxConn(ctx, t.db, func(conn *pgx.Conn) error {
		tag, execErr := conn.Exec(ctx, `DELETE FROM queue_messages WHERE queue = $1 AND group_id = $2`, t.queue, groupID)
		if execErr != nil {
			return fmt.Errorf("purge group: %w", execErr)
		}
		n = tag.RowsAffected()
		return nil
	})
	return n, err
}

// Depth returns the number of messages in the queue, visible or leased.
func (t *Transport) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := pgxutil.WithPgxConn(ctx, t.db, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, `SELECT count(*) FROM queue_messages WHERE queue = $1`, t.queue).Scan(&n)
	})
	return n, err
}
