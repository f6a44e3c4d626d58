package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nexconsult/vies-api/internal/models"
	"github.com/nexconsult/vies-api/internal/vat"
	"github.com/sirupsen/logrus"
)

// Job tracks one batch validation through its lifecycle. Results are keyed
// by source row index and only ever contain entries for rows that were
// either rejected by the formatter or actually dispatched; an absent index
// means "not attempted".
type Job struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	status     models.JobStatus
	total      int
	completed  int
	results    map[int]models.VatResult
	rows       []models.Row
	startedAt  *time.Time
	finishedAt *time.Time

	cancelled int32
	done      chan struct{}
}

func newJob(rows []models.Row) *Job {
	return &Job{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		status:    models.JobPending,
		total:     len(rows),
		results:   make(map[int]models.VatResult, len(rows)),
		rows:      rows,
		done:      make(chan struct{}),
	}
}

// RequestCancel flags the job for cooperative cancellation. In-flight
// lookups finish; nothing new is dispatched.
func (j *Job) RequestCancel() {
	atomic.StoreInt32(&j.cancelled, 1)
}

func (j *Job) isCancelled() bool {
	return atomic.LoadInt32(&j.cancelled) == 1
}

// Wait blocks until the job finishes or ctx expires.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current lifecycle state.
func (j *Job) Status() models.JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Rows returns the original input rows in input order.
func (j *Job) Rows() []models.Row {
	return j.rows
}

// Results returns the collected results sorted by source row index.
// Completion order across workers is unspecified; this is where order is
// restored.
func (j *Job) Results() []models.VatResult {
	j.mu.RLock()
	out := make([]models.VatResult, 0, len(j.results))
	for _, r := range j.results {
		out = append(out, r)
	}
	j.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].Query.SourceRowIndex < out[b].Query.SourceRowIndex
	})
	return out
}

// Snapshot returns a serializable view; results included only on request.
func (j *Job) Snapshot(includeResults bool) models.JobSnapshot {
	j.mu.RLock()
	snap := models.JobSnapshot{
		ID:         j.ID,
		Status:     j.status,
		Total:      j.total,
		Completed:  j.completed,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.startedAt,
		FinishedAt: j.finishedAt,
	}
	j.mu.RUnlock()

	if includeResults {
		snap.Results = j.Results()
	}
	return snap
}

func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status == models.JobPending {
		now := time.Now()
		j.status = models.JobRunning
		j.startedAt = &now
	}
}

func (j *Job) markFinished(status models.JobStatus) {
	j.mu.Lock()
	now := time.Now()
	j.status = status
	j.finishedAt = &now
	j.mu.Unlock()
	close(j.done)
}

// addResult inserts one result and returns the new completed count.
func (j *Job) addResult(r models.VatResult) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.results[r.Query.SourceRowIndex] = r
	j.completed++
	return j.completed
}

// ProgressFunc receives progress updates. It is always invoked from a
// single collector goroutine, so implementations need no locking.
type ProgressFunc func(models.Progress)

// BatchService fans batch rows out to a bounded worker pool over the VIES
// client and keeps a registry of running and finished jobs.
type BatchService struct {
	validator ValidatorInterface
	workers   int
	timeout   time.Duration
	logger    *logrus.Logger

	mu   sync.RWMutex
	jobs map[string]*Job

	totalJobs     int64
	completedJobs int64
}

// NewBatchService creates a new batch orchestrator
func NewBatchService(validator ValidatorInterface, workers int, timeout time.Duration, logger *logrus.Logger) *BatchService {
	if workers < 1 {
		workers = 1
	}
	return &BatchService{
		validator: validator,
		workers:   workers,
		timeout:   timeout,
		logger:    logger,
		jobs:      make(map[string]*Job),
	}
}

// Run starts an asynchronous batch job over the given rows
func (s *BatchService) Run(ctx context.Context, rows []models.Row) (*Job, error) {
	return s.RunWithProgress(ctx, rows, nil)
}

// RunWithProgress starts a job and reports progress after every completed
// lookup. Cancelling ctx behaves like Job.RequestCancel: in-flight lookups
// finish, nothing new is dispatched.
func (s *BatchService) RunWithProgress(ctx context.Context, rows []models.Row, progress ProgressFunc) (*Job, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("batch contains no rows")
	}

	job := newJob(rows)

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	atomic.AddInt64(&s.totalJobs, 1)

	s.logger.WithFields(logrus.Fields{
		"job_id":  job.ID,
		"rows":    len(rows),
		"workers": s.workers,
	}).Info("Batch job accepted")

	go s.run(ctx, job, progress)
	return job, nil
}

// Get retrieves a job by ID
func (s *BatchService) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job, nil
}

// Cancel requests cooperative cancellation of a running job
func (s *BatchService) Cancel(id string) error {
	job, err := s.Get(id)
	if err != nil {
		return err
	}

	switch job.Status() {
	case models.JobDone, models.JobCancelled:
		return fmt.Errorf("job already finished: %s", id)
	}

	job.RequestCancel()
	s.logger.WithField("job_id", id).Info("Batch job cancellation requested")
	return nil
}

// Stats returns orchestrator statistics
func (s *BatchService) Stats() map[string]interface{} {
	s.mu.RLock()
	active := 0
	for _, j := range s.jobs {
		switch j.Status() {
		case models.JobPending, models.JobRunning:
			active++
		}
	}
	registered := len(s.jobs)
	s.mu.RUnlock()

	return map[string]interface{}{
		"workers":        s.workers,
		"jobs_total":     atomic.LoadInt64(&s.totalJobs),
		"jobs_completed": atomic.LoadInt64(&s.completedJobs),
		"jobs_active":    active,
		"jobs_retained":  registered,
	}
}

// StartCleanupRoutine starts a goroutine that evicts finished jobs older
// than retention, so the registry does not grow without bound.
func (s *BatchService) StartCleanupRoutine(retention time.Duration) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			s.evictFinished(retention)
		}
	}()
}

// evictFinished drops jobs that finished before the retention window.
// Running and pending jobs are never evicted.
func (s *BatchService) evictFinished(retention time.Duration) {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for id, j := range s.jobs {
		snap := j.Snapshot(false)
		if snap.Status.Finished() && snap.FinishedAt != nil && snap.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
	s.mu.Unlock()
}

// run is the collector goroutine: it formats rows, feeds the worker pool,
// aggregates completions into the job and forwards progress. It is the only
// goroutine that touches the progress callback.
func (s *BatchService) run(ctx context.Context, job *Job, progress ProgressFunc) {
	job.markRunning()

	runCtx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
		defer cancel()
	}

	notify := func() {
		if progress != nil {
			job.mu.RLock()
			p := models.Progress{JobID: job.ID, Completed: job.completed, Total: job.total}
			job.mu.RUnlock()
			progress(p)
		}
	}

	// Format every row up front. Rows the formatter rejects get their
	// result immediately and are never dispatched.
	var queries []models.VatQuery
	for _, row := range job.rows {
		q, err := vat.Parse(row.VATNumber)
		if err != nil {
			job.addResult(models.VatResult{
				Query:            models.VatQuery{SourceRowIndex: row.Index},
				ErrorCode:        models.CodeInvalidInput,
				ErrorMessage:     err.Error(),
				RequestTimestamp: time.Now(),
			})
			notify()
			continue
		}
		queries = append(queries, models.VatQuery{
			CountryCode:    q.CountryCode,
			Number:         q.Number,
			SourceRowIndex: row.Index,
		})
	}

	pending := make(chan models.VatQuery)
	completions := make(chan models.VatResult)

	workers := s.workers
	if workers > len(queries) {
		workers = len(queries)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range pending {
				r := s.validator.Validate(runCtx, q.CountryCode, q.Number)
				r.Query.SourceRowIndex = q.SourceRowIndex
				completions <- r
			}
		}()
	}
	go func() {
		wg.Wait()
		close(completions)
	}()

	// Dispatch loop. The cancellation check happens here, before each not
	// yet started query; in-flight lookups are never interrupted.
	go func() {
		defer close(pending)
		for _, q := range queries {
			if job.isCancelled() || ctx.Err() != nil || runCtx.Err() != nil {
				return
			}
			pending <- q
		}
	}()

	for r := range completions {
		job.addResult(r)
		notify()
	}

	status := models.JobDone
	if job.isCancelled() || ctx.Err() != nil || runCtx.Err() != nil {
		status = models.JobCancelled
	}
	job.markFinished(status)
	atomic.AddInt64(&s.completedJobs, 1)

	snap := job.Snapshot(false)
	s.logger.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"status":    snap.Status,
		"completed": snap.Completed,
		"total":     snap.Total,
	}).Info("Batch job finished")
}
