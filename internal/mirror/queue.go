package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/hibiken/asynq"
)

// MemoryQueue applies tasks to the store from in-process workers. Tasks still queued when the
// process exits are lost.
type MemoryQueue struct {
	*pool
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue(store Store, opts Options) *MemoryQueue {
	return &MemoryQueue{pool: newPool(opts, func(ctx context.Context, t Task) error {
		return Apply(ctx, store, t)
	})}
}

// RedisQueue hands tasks to asynq so a mirrorworker process applies them durably. Enqueueing
// happens on a background worker, so Submit stays non-blocking even when Redis is slow.
type RedisQueue struct {
	*pool
	client *asynq.Client
}

var _ Queue = (*RedisQueue)(nil)

func NewRedisQueue(client *asynq.Client, opts Options) *RedisQueue {
	maxRetry := opts.MaxRetries
	if maxRetry < 0 {
		maxRetry = 0
	}
	q := &RedisQueue{client: client}
	// Enqueue is retried locally a couple of times; the task itself is retried by asynq.
	enqueueOpts := opts
	enqueueOpts.Workers = 1
	enqueueOpts.MaxRetries = 2
	q.pool = newPool(enqueueOpts, func(ctx context.Context, t Task) error {
		return Enqueue(ctx, client, t, maxRetry)
	})
	return q
}

func (q *RedisQueue) Close(ctx context.Context) error {
	err := q.pool.Close(ctx)
	if cerr := q.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// Enqueue schedules t on the durable queue.
func Enqueue(ctx context.Context, client *asynq.Client, t Task, maxRetry int) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(TaskType, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry)); err != nil {
		return fmt.Errorf("enqueue mirror task: %w", err)
	}
	return nil
}

// NewQueue builds the queue selected by dsn: empty or memory:// for in-process delivery,
// redis://[:password@]host:port[/db] for the durable asynq queue.
func NewQueue(dsn string, store Store, opts Options) (Queue, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return NewMemoryQueue(store, opts), nil
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mirror queue dsn: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return NewMemoryQueue(store, opts), nil
	case "redis", "rediss":
		conn, err := RedisConnOpt(dsn)
		if err != nil {
			return nil, err
		}
		return NewRedisQueue(asynq.NewClient(conn), opts), nil
	default:
		return nil, fmt.Errorf("unsupported mirror queue scheme: %s", parsed.Scheme)
	}
}

// RedisConnOpt parses a redis:// DSN for asynq clients and servers.
func RedisConnOpt(dsn string) (asynq.RedisConnOpt, error) {
	conn, err := asynq.ParseRedisURI(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse redis dsn: %w", err)
	}
	return conn, nil
}
