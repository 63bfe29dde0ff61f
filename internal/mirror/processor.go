package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"docvault/internal/logging"
	"docvault/internal/metrics"
)

// TaskType is the asynq task type carrying a JSON encoded Task.
const TaskType = "mirror:apply"

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store   Store
	log     logging.Logger
	metrics *metrics.Recorder
}

func NewProcessor(store Store, log logging.Logger, rec *metrics.Recorder) *Processor {
	if log == nil {
		log = logging.Nop{}
	}
	return &Processor{store: store, log: log, metrics: rec}
}

// Handler registers the mirror task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskType, p.handleApply)
	return mux
}

func (p *Processor) handleApply(ctx context.Context, task *asynq.Task) error {
	var t Task
	if err := json.Unmarshal(task.Payload(), &t); err != nil {
		p.metrics.MirrorTask("unknown", metrics.OutcomeFailed)
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := Apply(ctx, p.store, t); err != nil {
		p.log.Warn(ctx, "mirror write failed", "op", t.Op, "id", t.ID, "error", err)
		if errors.Is(err, ErrUnknownOp) {
			p.metrics.MirrorTask(string(t.Op), metrics.OutcomeFailed)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		p.metrics.MirrorTask(string(t.Op), metrics.OutcomeRetried)
		return err
	}
	p.metrics.MirrorTask(string(t.Op), metrics.OutcomeOK)
	return nil
}

// RetryDelay doubles from one second up to five minutes.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := time.Second
	for i := 0; i < n && d < 5*time.Minute; i++ {
		d *= 2
	}
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
