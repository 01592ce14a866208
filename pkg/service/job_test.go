package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-unlearning-service/pkg/config"
	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/telemetry"
)

func quickConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Set(config.KeyEpochs, 30)
	cfg.Set(config.KeyIteration, 10)
	cfg.Set(config.KeyDamp, 0.01)
	cfg.Set(config.KeyScale, 1e4)
	cfg.Set(config.KeyTestRatio, 0.25)
	cfg.Set(config.KeyUnlearnRatio, 0.05)
	return cfg
}

func syntheticResolver(t *testing.T) StoreResolver {
	t.Helper()
	opts := datastore.DefaultSyntheticOptions()
	opts.NumNodes = 60
	opts.PIn = 0.2
	graph, err := datastore.Synthetic(opts)
	require.NoError(t, err)

	return func(dataset string) (datastore.Store, error) {
		if dataset == "empty" {
			return datastore.NewMemoryStore(nil), nil
		}
		return datastore.NewMemoryStore(graph), nil
	}
}

func newTestService(t *testing.T, cfg *config.Config, metrics *telemetry.Metrics) *JobService {
	t.Helper()
	s := NewJobService(cfg, syntheticResolver(t), metrics)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
	})
	return s
}

func waitForStatus(t *testing.T, s *JobService, jobID string, status models.JobStatus) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = s.Get(jobID)
		require.NoError(t, err)
		return job.Status == status
	}, 30*time.Second, 10*time.Millisecond)
	return job
}

func TestJobService_SubmitAndComplete(t *testing.T) {
	metrics := telemetry.NewMetrics()
	s := newTestService(t, quickConfig(t), metrics)

	job, err := s.Submit("", map[string]interface{}{"unlearn_task": "edge", "num_runs": 2})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusQueued, job.Status)
	assert.Equal(t, "synthetic", job.Dataset)

	done := waitForStatus(t, s, job.ID, models.JobStatusCompleted)
	require.NotNil(t, done.Result)
	assert.Equal(t, 100, done.Progress.Percentage)
	assert.Equal(t, models.TaskEdge, done.Result.Task)
	assert.Equal(t, 2, done.Result.NumRuns)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	report, err := s.GetResult(job.ID)
	require.NoError(t, err)
	assert.Equal(t, done.Result.ReportID, report.ID)
	assert.Len(t, report.Runs, 2)

	series, err := testutil.GatherAndCount(metrics.Registry(), "gif_jobs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)

	assert.ErrorIs(t, s.Cancel(job.ID), ErrJobFinished)
}

func TestJobService_FailedJob(t *testing.T) {
	s := newTestService(t, quickConfig(t), nil)

	job, err := s.Submit("empty", nil)
	require.NoError(t, err)

	failed := waitForStatus(t, s, job.ID, models.JobStatusFailed)
	assert.Contains(t, failed.Error, "dataset not found")

	_, err = s.GetResult(job.ID)
	assert.ErrorIs(t, err, ErrResultNotFound)
}

func TestJobService_InvalidParameters(t *testing.T) {
	s := newTestService(t, quickConfig(t), nil)

	_, err := s.Submit("", map[string]interface{}{"unlearn_ratio": 2.0})
	var ve models.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unlearn_ratio", ve[0].Field)

	_, err = s.Submit("", map[string]interface{}{"max_workers": 9})
	var fieldErr models.ValidationError
	require.ErrorAs(t, err, &fieldErr)

	assert.Empty(t, s.List(""))
}

func TestJobService_CancelQueued(t *testing.T) {
	cfg := quickConfig(t)
	cfg.Set(config.KeyMaxWorkers, 1)
	s := newTestService(t, cfg, nil)

	// occupy the only worker slot
	s.workers <- struct{}{}
	job, err := s.Submit("", nil)
	require.NoError(t, err)

	require.NoError(t, s.Cancel(job.ID))
	cancelled, err := s.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.StartedAt)

	<-s.workers
	assert.ErrorIs(t, s.Cancel(job.ID), ErrJobFinished)
	assert.ErrorIs(t, s.Cancel("missing"), ErrJobNotFound)
}

func TestJobService_ListAndCleanup(t *testing.T) {
	s := newTestService(t, quickConfig(t), nil)

	first, err := s.Submit("a", nil)
	require.NoError(t, err)
	second, err := s.Submit("b", nil)
	require.NoError(t, err)

	all := s.List("")
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Len(t, s.List("b"), 1)

	waitForStatus(t, s, first.ID, models.JobStatusCompleted)
	waitForStatus(t, s, second.ID, models.JobStatusCompleted)

	assert.Equal(t, 0, s.cleanup(time.Now().Add(-time.Hour)))
	assert.Equal(t, 2, s.cleanup(time.Now().Add(time.Second)))

	_, err = s.Get(first.ID)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDirResolver(t *testing.T) {
	root := t.TempDir()
	resolve := DirResolver(root)

	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := resolve(name)
		assert.ErrorIs(t, err, ErrInvalidDataset, name)
	}

	_, err := resolve("absent")
	assert.ErrorIs(t, err, datastore.ErrDatasetNotFound)

	opts := datastore.DefaultSyntheticOptions()
	opts.NumNodes = 30
	graph, err := datastore.Synthetic(opts)
	require.NoError(t, err)
	require.NoError(t, datastore.NewFileStore(filepath.Join(root, "toy"), zerolog.Nop()).WriteRawData(graph))

	store, err := resolve("toy")
	require.NoError(t, err)
	loaded, err := store.LoadRawData()
	require.NoError(t, err)
	assert.Equal(t, graph.NumNodes, loaded.NumNodes)
}
