// Package warming implements proactive cache population. Jobs fan out to the
// upstream data source with bounded batch size and concurrency so warming can
// never overwhelm it, and every job is cancellable by id: cancellation stops
// scheduling new batches but lets in-flight ones complete.
package warming

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"cache-engine/internal/common/errors"
	"cache-engine/internal/common/logging"
)

// Strategy selects how a warm request is executed.
type Strategy string

const (
	// StrategyEager fetches and populates immediately with bounded concurrency
	StrategyEager Strategy = "eager"
	// StrategyLazy is the default: no pre-population, the first miss populates
	StrategyLazy Strategy = "lazy"
	// StrategyScheduled re-runs the warm job on a cron schedule
	StrategyScheduled Strategy = "scheduled"
)

// ParseStrategy converts a string into a Strategy. An empty string selects
// the lazy default.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return StrategyLazy, nil
	case StrategyEager, StrategyLazy, StrategyScheduled:
		return Strategy(s), nil
	default:
		return "", errors.Validation("unknown warming strategy: " + s)
	}
}

// Loader supplies values for keys during warming. The engine treats values
// as opaque, so the embedding service registers a Loader for its own data
// source; without one, warming falls back to promoting whatever the slower
// tiers already hold.
type Loader interface {
	Load(ctx context.Context, key string) (interface{}, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, key string) (interface{}, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, key string) (interface{}, error) {
	return f(ctx, key)
}

// Target is the cache surface the scheduler warms against. The cache manager
// implements it.
type Target interface {
	// WarmKey populates the tiers for one key.
	WarmKey(ctx context.Context, key string) error
	// ResolvePatterns expands glob patterns to the concrete keys currently
	// known to the tiers.
	ResolvePatterns(ctx context.Context, patterns []string) ([]string, error)
}

// JobStatus describes a job's lifecycle state.
type JobStatus string

const (
	// StatusRunning means batches are being dispatched
	StatusRunning JobStatus = "running"
	// StatusScheduled means the job re-runs on its cron schedule
	StatusScheduled JobStatus = "scheduled"
	// StatusCompleted means the job finished all batches
	StatusCompleted JobStatus = "completed"
	// StatusCancelled means the job was cancelled by id
	StatusCancelled JobStatus = "cancelled"
)

// Request describes a warm operation.
type Request struct {
	Keys          []string
	Patterns      []string
	Strategy      Strategy
	BatchSize     int
	MaxConcurrent int
	// Schedule is a cron expression, required for StrategyScheduled
	Schedule string
}

// Job is a tracked warm operation.
type Job struct {
	ID            string
	Strategy      Strategy
	EstimatedKeys int
	CreatedAt     time.Time

	mu     sync.Mutex
	status JobStatus

	warmed atomic.Int64
	failed atomic.Int64

	cancelCh chan struct{}
	cronID   cron.EntryID
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// cancel moves the job to cancelled and closes cancelCh, exactly once. It
// returns false when the job already reached a terminal state, so concurrent
// cancellations of the same job agree on a single winner.
func (j *Job) cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	switch j.status {
	case StatusCompleted, StatusCancelled:
		return false
	}
	close(j.cancelCh)
	j.status = StatusCancelled
	return true
}

// finish marks a running job completed unless it was cancelled first.
func (j *Job) finish() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == StatusRunning {
		j.status = StatusCompleted
	}
}

// WarmedKeys returns how many keys have been populated so far.
func (j *Job) WarmedKeys() int64 { return j.warmed.Load() }

// FailedKeys returns how many keys failed to populate.
func (j *Job) FailedKeys() int64 { return j.failed.Load() }

func (j *Job) cancelled() bool {
	select {
	case <-j.cancelCh:
		return true
	default:
		return false
	}
}

// Scheduler executes warm jobs against a Target.
type Scheduler struct {
	target Target
	log    logging.Logger
	cron   *cron.Cron

	mu   sync.Mutex
	jobs map[string]*Job
	wg   sync.WaitGroup
}

// NewScheduler creates a Scheduler. The cron runner starts immediately and
// is stopped by Stop.
func NewScheduler(target Target, log logging.Logger) *Scheduler {
	s := &Scheduler{
		target: target,
		log:    log,
		cron:   cron.New(),
		jobs:   make(map[string]*Job),
	}
	s.cron.Start()
	return s
}

// Submit validates a warm request, registers a job and returns its handle
// immediately. Eager jobs run in the background; scheduled jobs run on their
// cron schedule; lazy jobs complete at once since lazy warming is a no-op by
// definition.
func (s *Scheduler) Submit(ctx context.Context, req Request) (*Job, error) {
	strategy, err := ParseStrategy(string(req.Strategy))
	if err != nil {
		return nil, err
	}
	if strategy != StrategyLazy && len(req.Keys) == 0 && len(req.Patterns) == 0 {
		return nil, errors.Validation("warm request needs keys or patterns")
	}
	if strategy == StrategyScheduled && req.Schedule == "" {
		return nil, errors.Validation("scheduled warming requires a cron schedule")
	}
	if req.BatchSize < 1 {
		req.BatchSize = 50
	}
	if req.MaxConcurrent < 1 {
		req.MaxConcurrent = 4
	}

	keys, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:            uuid.NewString(),
		Strategy:      strategy,
		EstimatedKeys: len(keys),
		CreatedAt:     time.Now(),
		cancelCh:      make(chan struct{}),
	}

	switch strategy {
	case StrategyLazy:
		job.status = StatusCompleted
	case StrategyEager:
		job.status = StatusRunning
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runBatches(job, keys, req.BatchSize, req.MaxConcurrent)
			job.finish()
		}()
	case StrategyScheduled:
		job.status = StatusScheduled
		cronID, err := s.cron.AddFunc(req.Schedule, func() {
			if job.cancelled() {
				return
			}
			keys, err := s.resolve(context.Background(), req)
			if err != nil {
				s.log.Warn("scheduled warm run failed to resolve keys",
					logging.String("job_id", job.ID), logging.Err(err))
				return
			}
			s.runBatches(job, keys, req.BatchSize, req.MaxConcurrent)
		})
		if err != nil {
			return nil, errors.Validation("invalid cron schedule: " + req.Schedule)
		}
		job.cronID = cronID
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	s.log.Info("warm job submitted",
		logging.String("job_id", job.ID),
		logging.String("strategy", string(strategy)),
		logging.Int("estimated_keys", job.EstimatedKeys))

	return job, nil
}

// Job returns a registered job by id.
func (s *Scheduler) Job(id string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Cancel stops a job by id. New batches stop being scheduled; the in-flight
// batch completes. Cancelling an unknown or finished job returns false.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	job, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok || !job.cancel() {
		return false
	}

	if job.cronID != 0 {
		s.cron.Remove(job.cronID)
	}

	s.log.Info("warm job cancelled", logging.String("job_id", id))
	return true
}

// Stop cancels the cron runner and waits for in-flight eager jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.wg.Wait()
}

func (s *Scheduler) resolve(ctx context.Context, req Request) ([]string, error) {
	seen := make(map[string]struct{}, len(req.Keys))
	keys := make([]string, 0, len(req.Keys))
	for _, key := range req.Keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	if len(req.Patterns) > 0 {
		resolved, err := s.target.ResolvePatterns(ctx, req.Patterns)
		if err != nil {
			return nil, err
		}
		for _, key := range resolved {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	return keys, nil
}

// runBatches dispatches keys in bounded batches. Cancellation is checked
// between batches only, so a batch that has started always completes.
func (s *Scheduler) runBatches(job *Job, keys []string, batchSize, maxConcurrent int) {
	for start := 0; start < len(keys); start += batchSize {
		if job.cancelled() {
			return
		}

		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}

		sem := make(chan struct{}, maxConcurrent)
		var wg sync.WaitGroup
		for _, key := range keys[start:end] {
			sem <- struct{}{}
			wg.Add(1)
			go func(key string) {
				defer wg.Done()
				defer func() { <-sem }()

				if err := s.target.WarmKey(context.Background(), key); err != nil {
					job.failed.Add(1)
					s.log.Debug("warm key failed",
						logging.String("job_id", job.ID),
						logging.String("key", key),
						logging.Err(err))
					return
				}
				job.warmed.Add(1)
			}(key)
		}
		wg.Wait()
	}
}
