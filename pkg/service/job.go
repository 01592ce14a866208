// Package service runs unlearning experiments as background jobs.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gilchrisn/graph-unlearning-service/pkg/config"
	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
	"github.com/gilchrisn/graph-unlearning-service/pkg/experiment"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/telemetry"
)

var (
	// ErrJobNotFound indicates an unknown job id.
	ErrJobNotFound = errors.New("service: job not found")
	// ErrResultNotFound indicates the job has no report yet.
	ErrResultNotFound = errors.New("service: result not found")
	// ErrJobFinished indicates the job can no longer be cancelled.
	ErrJobFinished = errors.New("service: job already finished")
	// ErrInvalidDataset indicates a dataset name that is not a plain directory name.
	ErrInvalidDataset = errors.New("service: invalid dataset name")
)

// StoreResolver opens the data store of a named dataset
type StoreResolver func(dataset string) (datastore.Store, error)

// DirResolver resolves dataset names to file stores below root
func DirResolver(root string) StoreResolver {
	return func(dataset string) (datastore.Store, error) {
		if dataset == "" || dataset == "." || dataset == ".." || strings.ContainsAny(dataset, `/\`) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDataset, dataset)
		}
		dir := filepath.Join(root, dataset)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", datastore.ErrDatasetNotFound, dir)
		}
		return datastore.NewFileStore(dir, log.Logger.With().Str("dataset", dataset).Logger()), nil
	}
}

// JobService handles background job processing
type JobService struct {
	jobs    map[string]*models.Job
	reports map[string]*experiment.Report
	cancels map[string]context.CancelFunc
	workers chan struct{}
	mutex   sync.RWMutex
	wg      sync.WaitGroup

	cfg     *config.Config
	resolve StoreResolver
	metrics *telemetry.Metrics

	defaultDataset  string
	jobTTL          time.Duration
	cleanupInterval time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

// NewJobService creates a new job service. At most cfg.MaxWorkers() jobs run at once.
func NewJobService(cfg *config.Config, resolve StoreResolver, metrics *telemetry.Metrics) *JobService {
	service := &JobService{
		jobs:            make(map[string]*models.Job),
		reports:         make(map[string]*experiment.Report),
		cancels:         make(map[string]context.CancelFunc),
		workers:         make(chan struct{}, max(cfg.MaxWorkers(), 1)),
		cfg:             cfg,
		resolve:         resolve,
		metrics:         metrics,
		defaultDataset:  filepath.Base(cfg.DatasetDir()),
		jobTTL:          time.Hour,
		cleanupInterval: 5 * time.Minute,
		stop:            make(chan struct{}),
	}

	// Start cleanup goroutine
	go service.cleanupLoop()

	return service
}

// Submit validates the overrides and queues a new unlearning job.
// An empty dataset selects the configured default.
func (s *JobService) Submit(dataset string, overrides map[string]interface{}) (*models.Job, error) {
	if dataset == "" {
		dataset = s.defaultDataset
	}

	jobCfg, err := s.cfg.WithOverrides(overrides)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	jobID := uuid.New().String()
	logger := log.Logger.With().Str("job_id", jobID).Logger()

	settings, err := jobCfg.ExperimentSettings(logger)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	store, err := s.resolve(dataset)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	job := &models.Job{
		ID:        jobID,
		Dataset:   dataset,
		Overrides: overrides,
		Status:    models.JobStatusQueued,
		Progress: models.JobProgress{
			Percentage: 0,
			Message:    "Queued",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ctx, cancel := context.WithCancel(context.Background())

	s.mutex.Lock()
	s.jobs[jobID] = job
	s.cancels[jobID] = cancel
	s.mutex.Unlock()

	log.Info().
		Str("job_id", jobID).
		Str("dataset", dataset).
		Str("task", string(settings.Task)).
		Str("method", string(settings.Method)).
		Msg("Job submitted")

	// Start processing in background
	s.wg.Add(1)
	go s.processJob(ctx, jobID, settings, store)

	return snapshot(job), nil
}

// Get retrieves a job by ID
func (s *JobService) Get(jobID string) (*models.Job, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	return snapshot(job), nil
}

// GetResult retrieves the experiment report of a completed job
func (s *JobService) GetResult(jobID string) (*experiment.Report, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	report, exists := s.reports[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrResultNotFound, jobID)
	}

	return report, nil
}

// List returns all jobs, oldest first. A non-empty dataset filters by dataset.
func (s *JobService) List(dataset string) []*models.Job {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if dataset == "" || job.Dataset == dataset {
			jobs = append(jobs, snapshot(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs
}

// Cancel cancels a queued or running job
func (s *JobService) Cancel(jobID string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, job.Status)
	}

	job.Status = models.JobStatusCancelled
	job.Progress.Message = "Cancelled"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
	}

	log.Info().
		Str("job_id", jobID).
		Msg("Job cancelled")

	return nil
}

// Shutdown cancels outstanding jobs and waits for their goroutines
func (s *JobService) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mutex.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mutex.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// processJob processes a job in the background
func (s *JobService) processJob(ctx context.Context, jobID string, settings experiment.Settings, store datastore.Store) {
	defer s.wg.Done()
	defer s.release(jobID)

	// Acquire worker slot
	select {
	case s.workers <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.workers }()

	startTime := time.Now()
	if !s.updateJobStatusWithStartTime(jobID, models.JobStatusRunning, 0, "Starting...", &startTime) {
		return
	}

	if s.metrics != nil {
		s.metrics.JobStarted()
	}
	status := models.JobStatusFailed
	defer func() {
		if s.metrics != nil {
			s.metrics.JobFinished(string(status))
		}
	}()

	log.Info().
		Str("job_id", jobID).
		Str("model", settings.TargetModel).
		Int("num_runs", settings.NumRuns).
		Msg("Job processing started")

	// Create progress callback
	progressCallback := func(done, total int) {
		s.updateJobStatus(jobID, models.JobStatusRunning, done*100/total, fmt.Sprintf("Run %d/%d complete", done, total))
	}

	opts := []experiment.Option{
		experiment.WithProgress(progressCallback),
		experiment.WithReportPersistence(),
	}
	if s.metrics != nil {
		opts = append(opts, experiment.WithMetrics(s.metrics))
	}
	runner := experiment.NewRunner(settings, store, settings.Model.Logger, opts...)

	report, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			status = models.JobStatusCancelled
			return
		}
		s.failJob(jobID, fmt.Errorf("experiment execution failed: %w", err))
		return
	}

	status = models.JobStatusCompleted
	s.completeJob(jobID, report, time.Since(startTime))
}

// release drops the cancel function of a finished job
func (s *JobService) release(jobID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if cancel, ok := s.cancels[jobID]; ok {
		cancel()
		delete(s.cancels, jobID)
	}
}

// updateJobStatus updates job progress; it reports false once the job is terminal
func (s *JobService) updateJobStatus(jobID string, status models.JobStatus, percentage int, message string) bool {
	return s.updateJobStatusWithStartTime(jobID, status, percentage, message, nil)
}

// updateJobStatusWithStartTime updates job progress and sets start time
func (s *JobService) updateJobStatusWithStartTime(jobID string, status models.JobStatus, percentage int, message string, startTime *time.Time) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Terminal() {
		return false
	}

	job.Status = status
	job.Progress.Percentage = percentage
	job.Progress.Message = message
	job.UpdatedAt = time.Now()
	if startTime != nil {
		job.StartedAt = startTime
	}

	log.Debug().
		Str("job_id", jobID).
		Str("status", string(status)).
		Int("percentage", percentage).
		Str("message", message).
		Msg("Job status updated")

	return true
}

// completeJob marks a job as completed with results
func (s *JobService) completeJob(jobID string, report *experiment.Report, elapsed time.Duration) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Terminal() {
		return
	}

	job.Status = models.JobStatusCompleted
	job.Progress.Percentage = 100
	job.Progress.Message = "Complete"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	job.Result = &models.JobResult{
		ReportID:         report.ID,
		Task:             report.Settings.Task,
		Method:           string(report.Settings.Method),
		NumRuns:          len(report.Runs),
		F1OriginalMean:   report.F1Original.Mean,
		F1OriginalStd:    report.F1Original.Std,
		F1UnlearnedMean:  report.F1Unlearned.Mean,
		F1UnlearnedStd:   report.F1Unlearned.Std,
		TrainTimeMean:    report.TrainTime.Mean,
		UnlearnTimeMean:  report.UnlearnTime.Mean,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}

	// Store full report
	s.reports[jobID] = report

	log.Info().
		Str("job_id", jobID).
		Float64("f1_original", report.F1Original.Mean).
		Float64("f1_unlearned", report.F1Unlearned.Mean).
		Int64("processing_time_ms", elapsed.Milliseconds()).
		Msg("Job completed successfully")
}

// failJob marks a job as failed
func (s *JobService) failJob(jobID string, err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.Status.Terminal() {
		return
	}

	job.Status = models.JobStatusFailed
	job.Error = err.Error()
	job.Progress.Message = "Failed"
	now := time.Now()
	job.CompletedAt = &now
	job.UpdatedAt = now

	log.Error().
		Str("job_id", jobID).
		Err(err).
		Msg("Job failed")
}

// cleanupLoop periodically cleans up old jobs and reports
func (s *JobService) cleanupLoop() {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(time.Now().Add(-s.jobTTL))
		case <-s.stop:
			return
		}
	}
}

// cleanup removes finished jobs last updated before cutoff
func (s *JobService) cleanup(cutoff time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cleaned := 0
	for jobID, job := range s.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, jobID)
			delete(s.reports, jobID)
			cleaned++
		}
	}

	if cleaned > 0 {
		log.Info().
			Int("cleaned_jobs", cleaned).
			Msg("Job cleanup completed")
	}
	return cleaned
}

// snapshot copies a job so callers never share state with the worker
func snapshot(job *models.Job) *models.Job {
	out := *job
	if job.Result != nil {
		result := *job.Result
		out.Result = &result
	}
	return &out
}
