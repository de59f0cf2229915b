// Package maintenance schedules the store's periodic jobs: retention
// sweeps, backend optimization, and health monitoring. Nothing here sits
// in the read or write path; every job is best-effort and never blocks
// ingestion or queries.
package maintenance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailhq/trailstore/pkg/logging"
	"github.com/trailhq/trailstore/pkg/obs"
)

// Job is one periodic maintenance task.
type Job struct {
	// Name appears in logs and metrics.
	Name string

	// Interval between runs.
	Interval time.Duration

	// Run does the work. It should honor ctx cancellation.
	Run func(ctx context.Context) error

	// RunOnStart triggers one run immediately at scheduler start.
	RunOnStart bool
}

// Scheduler runs jobs on tickers with retry, backoff, and per-job health
// monitors.
type Scheduler struct {
	jobs     []Job
	monitors map[string]*Monitor

	stop chan struct{}
	wg   sync.WaitGroup
	log  zerolog.Logger
}

// NewScheduler creates a scheduler for the given jobs.
func NewScheduler(jobs ...Job) *Scheduler {
	monitors := make(map[string]*Monitor, len(jobs))
	for _, j := range jobs {
		// Two missed intervals in a row reads as unhealthy.
		monitors[j.Name] = NewMonitor(2 * j.Interval)
	}
	return &Scheduler{
		jobs:     jobs,
		monitors: monitors,
		stop:     make(chan struct{}),
		log:      logging.WithComponent("maintenance"),
	}
}

// Monitor returns the health monitor for a job name, or nil.
func (s *Scheduler) Monitor(name string) *Monitor { return s.monitors[name] }

// Start launches one goroutine per job. Call Stop to shut down.
func (s *Scheduler) Start() {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runLoop(job)
	}
}

// Stop signals all jobs and waits for them to finish.
func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Scheduler) runLoop(job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if job.RunOnStart {
		s.runWithRetry(job)
	}

	for {
		select {
		case <-ticker.C:
			s.runWithRetry(job)
		case <-s.stop:
			s.log.Info().Str("job", job.Name).Msg("stopping maintenance job")
			return
		}
	}
}

// runWithRetry executes a job with up to three retries and exponential
// backoff (30s, 60s, 120s).
func (s *Scheduler) runWithRetry(job Job) {
	const maxRetries = 3
	baseDelay := 30 * time.Second
	monitor := s.monitors[job.Name]

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			s.log.Info().Str("job", job.Name).Dur("delay", delay).Int("attempt", attempt+1).Msg("retrying maintenance job")
			select {
			case <-time.After(delay):
			case <-s.stop:
				return
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-s.stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		start := time.Now()
		err := job.Run(ctx)
		cancel()

		if err == nil {
			monitor.RecordSuccess()
			obs.MaintenanceRuns.WithLabelValues(job.Name, "ok").Inc()
			s.log.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("maintenance job complete")
			return
		}

		monitor.RecordFailure(err)
		obs.MaintenanceRuns.WithLabelValues(job.Name, "error").Inc()
		s.log.Warn().Err(err).Str("job", job.Name).Int("attempt", attempt+1).Msg("maintenance job failed")

		if status := monitor.Status(); status.ConsecutiveErrors > 3 {
			s.log.Error().Str("job", job.Name).Int("consecutive_errors", status.ConsecutiveErrors).Msg("maintenance job keeps failing")
		}
	}

	s.log.Warn().Str("job", job.Name).Msg("maintenance job exhausted retries, deferring to next schedule")
}
