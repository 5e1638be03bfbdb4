package tenant

import (
	"context"
	"sync"
	"time"

	"courier/internal/logger"
	"courier/pkg/metrics"
)

const statsWriteTimeout = 5 * time.Second

// StatsRecorder increments ingress/egress counters as a side effect of
// authorization decisions. Writes are detached: the caller returns
// immediately and failures flow through an error channel into the logger.
// Authorization latency must never depend on counter-write latency.
type StatsRecorder struct {
	repo Repository
	log  logger.Logger

	errs chan error
	wg   sync.WaitGroup

	closeOnce sync.Once
	done      chan struct{}
}

func NewStatsRecorder(repo Repository, log logger.Logger) *StatsRecorder {
	r := &StatsRecorder{
		repo: repo,
		log:  log,
		errs: make(chan error, 64),
		done: make(chan struct{}),
	}

	go r.drainErrors()
	return r
}

// RecordIngress increments the in-counters of the resolved tenant and, when
// present, its sub-scope. Fire-and-forget.
func (r *StatsRecorder) RecordIngress(res Resolution) {
	r.record(res, 1, 0)
}

// RecordEgress increments the out-counters. Fire-and-forget.
func (r *StatsRecorder) RecordEgress(res Resolution) {
	r.record(res, 0, 1)
}

func (r *StatsRecorder) record(res Resolution, in, out int64) {
	if res.Tenant == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), statsWriteTimeout)
		defer cancel()

		if err := r.repo.IncTenantCounters(ctx, res.Tenant.ID, in, out); err != nil {
			r.report(err)
		}
		if res.SubScope != nil {
			if err := r.repo.IncSubScopeCounters(ctx, res.SubScope.ID, in, out); err != nil {
				r.report(err)
			}
		}
	}()
}

func (r *StatsRecorder) report(err error) {
	metrics.StatsWriteFailuresTotal.Inc()
	select {
	case r.errs <- err:
	default:
		// Channel full; the drain loop is behind. Drop rather than block a
		// counter write.
	}
}

func (r *StatsRecorder) drainErrors() {
	for {
		select {
		case err := <-r.errs:
			r.log.Warnw("Stats counter write failed", "error", err)
		case <-r.done:
			for {
				select {
				case err := <-r.errs:
					r.log.Warnw("Stats counter write failed", "error", err)
				default:
					return
				}
			}
		}
	}
}

// Close waits for in-flight counter writes and stops the drain loop.
func (r *StatsRecorder) Close() {
	r.wg.Wait()
	r.closeOnce.Do(func() { close(r.done) })
}
