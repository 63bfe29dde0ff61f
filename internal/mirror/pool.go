package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"docvault/internal/logging"
	"docvault/internal/metrics"
)

// Options configure a queue. Zero values pick the defaults.
type Options struct {
	Workers         int
	Capacity        int
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	AttemptTimeout  time.Duration
	Logger          logging.Logger
	Metrics         *metrics.Recorder
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.Capacity <= 0 {
		o.Capacity = 256
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = 200 * time.Millisecond
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 10 * time.Second
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.Nop{}
	}
	return o
}

// pool is a bounded channel drained by a fixed set of workers. Each task is handed to handle and
// retried with exponential backoff until it succeeds or MaxRetries is exhausted.
type pool struct {
	opts   Options
	handle func(context.Context, Task) error

	mu     sync.RWMutex
	closed bool
	tasks  chan Task

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newPool(opts Options, handle func(context.Context, Task) error) *pool {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	p := &pool{
		opts:   opts,
		handle: handle,
		tasks:  make(chan Task, opts.Capacity),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *pool) Submit(t Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.drop(t, "mirror queue closed")
		return false
	}
	select {
	case p.tasks <- t:
		return true
	default:
		p.drop(t, "mirror queue full")
		return false
	}
}

func (p *pool) drop(t Task, reason string) {
	p.opts.Metrics.MirrorTask(string(t.Op), metrics.OutcomeDropped)
	p.opts.Logger.Warn(context.Background(), reason+", task dropped", "op", t.Op, "id", t.ID)
}

// Close stops accepting tasks and waits for the queued ones. When ctx ends first, in-flight retries
// are abandoned and ctx's error is returned.
func (p *pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *pool) work() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *pool) run(t Task) {
	log := p.opts.Logger.With("op", t.Op, "id", t.ID)
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.opts.InitialInterval
	exp.MaxInterval = p.opts.MaxInterval

	_, err := backoff.Retry(p.ctx, func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(p.ctx, p.opts.AttemptTimeout)
		defer cancel()
		err := p.handle(ctx, t)
		if errors.Is(err, ErrUnknownOp) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(uint(p.opts.MaxRetries+1)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.opts.Metrics.MirrorTask(string(t.Op), metrics.OutcomeRetried)
			log.Warn(p.ctx, "mirror write failed, retrying", "error", err, "retry_in", next.String())
		}),
	)
	if err != nil {
		p.opts.Metrics.MirrorTask(string(t.Op), metrics.OutcomeFailed)
		log.Error(p.ctx, "mirror write abandoned", "error", err)
		return
	}
	p.opts.Metrics.MirrorTask(string(t.Op), metrics.OutcomeOK)
}
