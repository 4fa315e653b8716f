package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/errolitolopez/user-access-manager/internal/metrics"
)

// Job is one reconciliation pass. Run returns how many records it
// touched; jobs must be idempotent because ticks can observe state
// already repaired by a live request.
type Job interface {
	Name() string
	Run(ctx context.Context) (affected int, err error)
}

type entry struct {
	job      Job
	interval time.Duration
}

// Runner drives registered jobs on independent tickers.
type Runner struct {
	log     zerolog.Logger
	entries []entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewRunner(log zerolog.Logger) *Runner {
	return &Runner{log: log}
}

func (r *Runner) Add(job Job, interval time.Duration) {
	r.entries = append(r.entries, entry{job: job, interval: interval})
}

// Start launches one goroutine per job and returns immediately.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	for _, e := range r.entries {
		r.wg.Add(1)
		go r.loop(ctx, e)
	}
}

// Stop cancels all loops and waits for in-flight runs to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, e entry) {
	defer r.wg.Done()
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runOnce(ctx, e.job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	affected, err := job.Run(ctx)
	if err != nil {
		metrics.IncSchedulerRun(job.Name(), "failure")
		r.log.Error().Err(err).Str("job", job.Name()).Msg("scheduled job failed")
		return
	}
	metrics.IncSchedulerRun(job.Name(), "success")
	metrics.AddSchedulerAffected(job.Name(), affected)
	r.log.Info().
		Str("job", job.Name()).
		Int("affected", affected).
		Dur("elapsed", time.Since(start)).
		Msg("scheduled job finished")
}
