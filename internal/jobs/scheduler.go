// Package jobs runs periodic maintenance next to the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
	ticker   *time.Ticker
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	isRunning bool
	wg        sync.WaitGroup
	jobs      []*scheduledJob

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{logger: logger, ctx: ctx, cancel: cancel}
}

// Add registers job to run every interval. Jobs added after Start are not
// scheduled.
func (s *Scheduler) Add(job Job, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &scheduledJob{job: job, interval: interval})
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(job Job) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", job.Name()))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", job.Name()),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", job.Name()), slog.Any("error", err))
	}
}

// Start runs every job once and then on its interval until Stop.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return
	}
	s.isRunning = true

	for _, sj := range s.jobs {
		sj.ticker = time.NewTicker(sj.interval)
		s.wg.Add(1)
		go s.loop(sj)
	}
	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.jobs)))
}

func (s *Scheduler) loop(sj *scheduledJob) {
	defer s.wg.Done()
	s.logger.Info("Starting job", slog.String("job", sj.job.Name()), slog.Duration("interval", sj.interval))
	s.executeJobSafely(sj.job)

	for {
		select {
		case <-sj.ticker.C:
			s.executeJobSafely(sj.job)
		case <-s.ctx.Done():
			s.logger.Info("Job stopped", slog.String("job", sj.job.Name()))
			return
		}
	}
}

// Stop halts all background jobs and waits for running ones to return. A
// stopped Scheduler cannot be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.logger.Info("Stopping background jobs...")
	for _, sj := range s.jobs {
		sj.ticker.Stop()
	}
	s.cancel()
	s.isRunning = false
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
