// Package metrics holds the prometheus counters of the sync client and the mirror queue.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcomes recorded for sync operations and mirror tasks.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeDropped = "dropped"
	OutcomeRetried = "retried"
)

// Sources recorded when listing documents.
const (
	SourcePrimary   = "primary"
	SourceSecondary = "secondary"
	SourceEmpty     = "empty"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	syncOps     *prometheus.CounterVec
	listSource  *prometheus.CounterVec
	mirrorTasks *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
func New(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		syncOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_sync_operations_total",
				Help: "Sync operations by primary outcome.",
			},
			[]string{"op", "outcome"},
		),
		listSource: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_list_fallback_total",
				Help: "Document lists by the tier that answered.",
			},
			[]string{"source"},
		),
		mirrorTasks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_mirror_tasks_total",
				Help: "Mirror tasks by outcome.",
			},
			[]string{"op", "outcome"},
		),
	}
	for _, c := range []prometheus.Collector{r.syncOps, r.listSource, r.mirrorTasks} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Recorder) SyncOperation(op, outcome string) {
	if r == nil {
		return
	}
	r.syncOps.WithLabelValues(op, outcome).Inc()
}

func (r *Recorder) ListSource(source string) {
	if r == nil {
		return
	}
	r.listSource.WithLabelValues(source).Inc()
}

func (r *Recorder) MirrorTask(op, outcome string) {
	if r == nil {
		return
	}
	r.mirrorTasks.WithLabelValues(op, outcome).Inc()
}
