package experiment

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/telemetry"
)

func syntheticStore(t *testing.T) *datastore.MemoryStore {
	t.Helper()
	opts := datastore.DefaultSyntheticOptions()
	opts.NumNodes = 60
	opts.PIn = 0.2
	graph, err := datastore.Synthetic(opts)
	require.NoError(t, err)
	return datastore.NewMemoryStore(graph)
}

func quickSettings() Settings {
	s := DefaultSettings()
	s.Ratio = 0.05
	s.TestRatio = 0.25
	s.Iterations = 20
	s.Damp = 0.01
	s.Scale = 1e4
	s.Model.Epochs = 50
	return s
}

func TestRunner_AllTasks(t *testing.T) {
	for _, task := range []models.Task{models.TaskNode, models.TaskEdge, models.TaskFeature} {
		t.Run(string(task), func(t *testing.T) {
			s := quickSettings()
			s.Task = task

			report, err := NewRunner(s, syntheticStore(t), zerolog.Nop()).Run(context.Background())
			require.NoError(t, err)

			require.Len(t, report.Runs, 1)
			run := report.Runs[0]
			assert.GreaterOrEqual(t, run.F1Original, 0.0)
			assert.LessOrEqual(t, run.F1Original, 1.0)
			assert.InDelta(t, run.F1Original, run.F1Unlearned, 0.15)
			assert.Equal(t, 20, run.Iterations)
			assert.Greater(t, run.DeltaNorm, 0.0)

			assert.Equal(t, 15, report.TestSize)
			assert.Equal(t, 45, report.TrainSize)
			assert.Greater(t, report.Request.Sampled, 0)
			assert.GreaterOrEqual(t, report.Request.Influenced, report.Request.Sampled)
			if task == models.TaskEdge {
				assert.Less(t, report.Request.EdgesAfter, report.Request.EdgesBefore)
			} else if task == models.TaskNode {
				assert.Equal(t, report.Request.Sampled, report.Request.Deleted)
			} else {
				assert.Equal(t, report.Request.Sampled, report.Request.Feature)
				assert.Equal(t, report.Request.EdgesBefore, report.Request.EdgesAfter)
			}
		})
	}
}

func TestRunner_ParallelRunsAggregate(t *testing.T) {
	s := quickSettings()
	s.NumRuns = 4
	s.ParallelRuns = 2

	var calls atomic.Int64
	store := syntheticStore(t)
	metrics := telemetry.NewMetrics()
	report, err := NewRunner(s, store, zerolog.Nop(),
		WithMetrics(metrics),
		WithProgress(func(done, total int) {
			calls.Add(1)
			assert.Equal(t, 4, total)
		}),
		WithReportPersistence(),
	).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Runs, 4)
	for i, run := range report.Runs {
		assert.Equal(t, i, run.Run)
	}
	assert.Equal(t, int64(4), calls.Load())
	assert.GreaterOrEqual(t, report.F1Original.Std, 0.0)
	assert.NotEmpty(t, report.ID)

	assert.Len(t, store.Reports(), 1)
	series, err := testutil.GatherAndCount(metrics.Registry(), "gif_runs_total", "gif_phase_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, series, "one run series plus train/evaluate/unlearn phases")
}

func TestRunner_Deterministic(t *testing.T) {
	s := quickSettings()
	s.Method = gif.MethodIF

	first, err := NewRunner(s, syntheticStore(t), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	second, err := NewRunner(s, syntheticStore(t), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Runs[0].F1Original, second.Runs[0].F1Original)
	assert.Equal(t, first.Runs[0].F1Unlearned, second.Runs[0].F1Unlearned)
	assert.Equal(t, first.Request, second.Request)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestRunner_SplitPersistence(t *testing.T) {
	store := syntheticStore(t)

	s := quickSettings()
	s.IsSplit = false
	_, err := NewRunner(s, store, zerolog.Nop()).Run(context.Background())
	assert.ErrorIs(t, err, datastore.ErrSplitNotFound)

	s.IsSplit = true
	_, err = NewRunner(s, store, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	train, test, err := store.LoadTrainTestSplit()
	require.NoError(t, err)
	assert.Len(t, test, 15)
	assert.Len(t, train, 45)

	s.IsSplit = false
	report, err := NewRunner(s, store, zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15, report.TestSize)
}

func TestRunner_ConjugateGradient(t *testing.T) {
	s := quickSettings()
	s.Solver = gif.ConjugateGradientSolver{}.Name()

	report, err := NewRunner(s, syntheticStore(t), zerolog.Nop()).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, report.Runs[0].Iterations, s.Iterations)
	assert.InDelta(t, report.Runs[0].F1Original, report.Runs[0].F1Unlearned, 0.15)
}

func TestRunner_InvalidSettings(t *testing.T) {
	s := quickSettings()
	s.Ratio = 0
	s.Method = "GIFF"

	_, err := NewRunner(s, syntheticStore(t), zerolog.Nop()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigError(err))

	var ve models.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve, 2)
}

func TestRunner_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(quickSettings(), syntheticStore(t), zerolog.Nop()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	s := DefaultSettings()
	s.TargetModel = "GAT"
	s.Task = "Node"
	s.Iterations = 0
	s.NumRuns = 0
	s.ParallelRuns = 0
	s.Scale = 0
	s.Solver = "newton"

	var ve models.ValidationErrors
	require.ErrorAs(t, s.Validate(), &ve)
	fields := make([]string, len(ve))
	for i, e := range ve {
		fields[i] = e.Field
	}
	assert.ElementsMatch(t, []string{"target_model", "unlearn_task", "iteration", "scale", "solver", "num_runs", "parallel_runs"}, fields)
}
