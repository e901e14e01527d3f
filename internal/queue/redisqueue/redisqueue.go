// Package redisqueue implements the queue transport on Redis. Visibility is a sorted
// set scored by the time a message becomes receivable; leases are taken by a Lua
// script so concurrent receivers never get the same message inside one window.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/target/track-analysis-api/internal/domain/model"
	"github.com/target/track-analysis-api/internal/queue"
)

const defaultPollInterval = 250 * time.Millisecond

// Options configures a Transport.
type Options struct {
	Client    redis.UniversalClient // Required
	QueueName string                // Required
	Logger    *slog.Logger
	// PollInterval is the idle re-check interval during a long poll.
	PollInterval time.Duration
	Now          func() time.Time
}

// Transport is a Redis-backed QueueTransport.
type Transport struct {
	client       redis.UniversalClient
	prefix       string
	logger       *slog.Logger
	pollInterval time.Duration
	now          func() time.Time
}

// New constructs a Transport.
func New(opts Options) (*Transport, error) {
	if opts.Client == nil {
		return nil, errors.New("redisqueue: client is required")
	}
	if opts.QueueName == "" {
		return nil, errors.New("redisqueue: queue name is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Transport{
		client: opts.Client,
		// Hash tag keeps every key of one queue in the same cluster slot.
		prefix:       "queue:{" + opts.QueueName + "}",
		logger:       logger.With("component", "redisqueue", "queue", opts.QueueName),
		pollInterval: poll,
		now:          now,
	}, nil
}

func (t *Transport) visibleKey() string { return t.prefix + ":visible" }
func (t *Transport) msgPrefix() string { return t.prefix + ":msg:" }
func (t *Transport) msgKey(id string) string { return t.msgPrefix() + id }
func (t *Transport) groupKey(gid string) string { return t.prefix + ":group:" + gid }

// Enqueue adds one message and returns its id.
func (t *Transport) Enqueue(ctx context.Context, msg model.OutgoingMessage) (string, error) {
	ids, err := t.EnqueueBatch(ctx, []model.OutgoingMessage{msg})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// EnqueueBatch adds all messages in one MULTI/EXEC.
func (t *Transport) EnqueueBatch(ctx context.Context, msgs []model.OutgoingMessage) ([]string, error) {
	if len(msgs) == 0 {
		return nil, nil
	}
	now := t.now()
	ids := make([]string, len(msgs))
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for i, m := range msgs {
			id := uuid.NewString()
			ids[i] = id
			p.HSet(ctx, t.msgKey(id), map[string]any{
				"body":  string(m.Body),
				"group": m.GroupID,
				"count": 0,
				"sent":  now.UnixMilli(),
			})
			p.ZAdd(ctx, t.visibleKey(), redis.Z{Score: float64(now.UnixMilli()), Member: id})
			if m.GroupID != "" {
				p.SAdd(ctx, t.groupKey(m.GroupID), id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis enqueue: %w", err)
	}
	return ids, nil
}

// leaseScript moves up to ARGV[3] receivable messages to ARGV[2] and stamps a fresh handle on each.
var leaseScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[3]))
local out = {}
for i, id in ipairs(ids) do
  local key = ARGV[4] .. id
  if redis.call('EXISTS', key) == 1 then
    local handle = id .. ':' .. ARGV[4 + i]
    redis.call('ZADD', KEYS[1], ARGV[2], id)
    redis.call('HSET', key, 'handle', handle)
    local count = redis.call('HINCRBY', key, 'count', 1)
    local vals = redis.call('HMGET', key, 'body', 'sent')
    table.insert(out, {id, handle, vals[1], count, vals[2]})
  else
    redis.call('ZREM', KEYS[1], id)
  end
end
return out
`)

// deleteScript removes a message only while ARGV[1] is its current handle.
var deleteScript = redis.NewScript(`
local key = KEYS[1]
if redis.call('HGET', key, 'handle') ~= ARGV[1] then
  return 0
end
local group = redis.call('HGET', key, 'group')
redis.call('DEL', key)
redis.call('ZREM', KEYS[2], ARGV[2])
if group and group ~= '' then
  redis.call('SREM', ARGV[3] .. group, ARGV[2])
end
return 1
`)

// Receive leases up to opts.MaxMessages messages, polling until opts.WaitTime elapses.
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
		timer := time.NewTimer(min(remaining, t.pollInterval))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) lease(ctx context.Context, opts model.ReceiveOptions) ([]model.ReceivedMessage, error) {
	now := t.now()
	args := make([]any, 0, 4+opts.MaxMessages)
	args = append(args,
		now.UnixMilli(),
		now.Add(opts.VisibilityTimeout).UnixMilli(),
		opts.MaxMessages,
		t.msgPrefix(),
	)
	for range opts.MaxMessages {
		args = append(args, uuid.NewString())
	}

	res, err := leaseScript.Run(ctx, t.client, []string{t.visibleKey()}, args...).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis lease: %w", err)
	}

	out := make([]model.ReceivedMessage, 0, len(res))
	for _, raw := range res {
		m, parseErr := parseLeased(raw)
		if parseErr != nil {
			t.logger.WarnContext(ctx, "skipping malformed leased entry", "error", parseErr)
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func parseLeased(raw any) (model.ReceivedMessage, error) {
	fields, ok := raw.([]any)
	if !ok || len(fields) != 5 {
		return model.ReceivedMessage{}, fmt.Errorf("unexpected lease entry %T", raw)
	}
	id, _ := fields[0].(string)
	handle, _ := fields[1].(string)
	body, _ := fields[2].(string)
	count, _ := fields[3].(int64)
	sentStr, _ := fields[4].(string)
	sentMs, err := strconv.ParseInt(sentStr, 10, 64)
	if err != nil {
		return model.ReceivedMessage{}, fmt.Errorf("parse sent time: %w", err)
	}
	return model.ReceivedMessage{
		ID:            id,
		ReceiptHandle: handle,
		Body:          []byte(body),
		ReceiveCount:  int(count),
		SentAt:        time.UnixMilli(sentMs).UTC(),
	}, nil
}

// Delete removes a leased message. A handle rotated by a later receive returns model.ErrReceiptExpired.
func (t *Transport) Delete(ctx context.Context, receiptHandle string) error {
	id, _, ok := strings.Cut(receiptHandle, ":")
	if !ok || id == "" {
		return fmt.Errorf("%w: %s", model.ErrReceiptExpired, receiptHandle)
	}
	n, err := deleteScript.Run(ctx, t.client,
		[]string{t.msgKey(id), t.visibleKey()},
		receiptHandle, id, t.prefix+":group:",
	).Int64()
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	if n == 0 {
		return model.ErrReceiptExpired
	}
	return nil
}

// PurgeGroup removes every pending message of a group, leased or not.
func (t *Transport) PurgeGroup(ctx context.Context, groupID string) (int64, error) {
	ids, err := t.client.SMembers(ctx, t.groupKey(groupID)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis purge members: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	var dels []*redis.IntCmd
	_, err = t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range ids {
			dels = append(dels, p.Del(ctx, t.msgKey(id)))
			p.ZRem(ctx, t.visibleKey(), id)
		}
		p.Del(ctx, t.groupKey(groupID))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis purge: %w", err)
	}
	var n int64
	for _, d := range dels {
		n += d.Val()
	}
	return n, nil
}

// Depth returns the number of messages in the queue, visible or leased.
func (t *Transport) Depth(ctx context.Context) (int64, error) {
	return t.client.ZCard(ctx, t.visibleKey()).Result()
}
