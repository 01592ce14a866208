// Package experiment runs the unlearning evaluation: split the data, build the
// unlearning request, then train, approximate and score over several runs.
package experiment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/graph-unlearning-service/pkg/datastore"
	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/model"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/params"
	"github.com/gilchrisn/graph-unlearning-service/pkg/telemetry"
	"github.com/gilchrisn/graph-unlearning-service/pkg/unlearning"
	"github.com/gilchrisn/graph-unlearning-service/pkg/validation"
)

// RunResult holds the measurements of one run
type RunResult struct {
	Run         int           `json:"run" yaml:"run"`
	F1Original  float64       `json:"f1_original" yaml:"f1_original"`
	F1Unlearned float64       `json:"f1_unlearned" yaml:"f1_unlearned"`
	TrainTime   time.Duration `json:"train_time" yaml:"train_time"`
	EvalTime    time.Duration `json:"eval_time" yaml:"eval_time"`
	UnlearnTime time.Duration `json:"unlearn_time" yaml:"unlearn_time"`
	TrainLoss   float64       `json:"train_loss" yaml:"train_loss"`
	Iterations  int           `json:"iterations" yaml:"iterations"`
	DeltaNorm   float64       `json:"delta_norm" yaml:"delta_norm"`
}

// Summary is a population mean and standard deviation
type Summary struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
}

// RequestSummary describes the unlearning request shared by all runs
type RequestSummary struct {
	Sampled     int `json:"sampled" yaml:"sampled"`
	Deleted     int `json:"deleted" yaml:"deleted"`
	Feature     int `json:"feature" yaml:"feature"`
	Influenced  int `json:"influenced" yaml:"influenced"`
	EdgesBefore int `json:"edges_before" yaml:"edges_before"`
	EdgesAfter  int `json:"edges_after" yaml:"edges_after"`
}

// Report aggregates an experiment
type Report struct {
	ID          string         `json:"id" yaml:"id"`
	Dataset     string         `json:"dataset" yaml:"dataset"`
	Settings    Settings       `json:"settings" yaml:"settings"`
	TrainSize   int            `json:"train_size" yaml:"train_size"`
	TestSize    int            `json:"test_size" yaml:"test_size"`
	Request     RequestSummary `json:"request" yaml:"request"`
	Runs        []RunResult    `json:"runs" yaml:"runs"`
	F1Original  Summary        `json:"f1_original" yaml:"f1_original"`
	F1Unlearned Summary        `json:"f1_unlearned" yaml:"f1_unlearned"`
	// TrainTime and UnlearnTime are in seconds
	TrainTime   Summary   `json:"train_time" yaml:"train_time"`
	UnlearnTime Summary   `json:"unlearn_time" yaml:"unlearn_time"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	Elapsed     string    `json:"elapsed" yaml:"elapsed"`
}

// ProgressCallback is called after each finished run
type ProgressCallback func(done, total int)

// Runner executes experiments against a data store
type Runner struct {
	settings Settings
	store    datastore.Store
	models   *model.Registry
	solvers  *gif.SolverRegistry
	metrics  *telemetry.Metrics
	progress ProgressCallback
	logger   zerolog.Logger

	saveReport bool
}

// Option customizes a Runner
type Option func(*Runner)

// WithMetrics records run telemetry
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithModelRegistry swaps the model registry
func WithModelRegistry(reg *model.Registry) Option {
	return func(r *Runner) { r.models = reg }
}

// WithProgress installs a progress callback
func WithProgress(cb ProgressCallback) Option {
	return func(r *Runner) { r.progress = cb }
}

// WithReportPersistence saves the final report through the store
func WithReportPersistence() Option {
	return func(r *Runner) { r.saveReport = true }
}

// NewRunner creates a runner
func NewRunner(settings Settings, store datastore.Store, logger zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		settings: settings,
		store:    store,
		models:   model.NewRegistry(),
		solvers:  gif.NewSolverRegistry(settings.ResidualTol),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the whole experiment. The first failing run aborts it.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	s := r.settings

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	solver, err := r.solvers.Get(s.Solver)
	if err != nil {
		return nil, err
	}

	graph, err := r.store.LoadRawData()
	if err != nil {
		return nil, fmt.Errorf("load raw data: %w", err)
	}

	train, test, err := r.trainTestSplit(graph)
	if err != nil {
		return nil, err
	}
	graph.ApplySplit(train, test)

	if isolated := validation.IsolatedNodes(graph); len(isolated) > 0 {
		r.logger.Debug().Int("isolated_nodes", len(isolated)).Msg("Graph has isolated nodes")
	}

	builder := unlearning.NewBuilder(rand.NewPCG(s.Seed, s.Seed+1), r.logger)
	request, err := builder.Build(s.Task, s.Ratio, train, graph)
	if err != nil {
		return nil, fmt.Errorf("build unlearning request: %w", err)
	}
	if r.metrics != nil {
		r.metrics.ObserveRequest(string(s.Task), len(request.Sampled), len(request.Selection.Influence))
	}

	report := &Report{
		ID:        uuid.New().String(),
		Dataset:   graph.Name,
		Settings:  s,
		TrainSize: len(train),
		TestSize:  len(test),
		Request: RequestSummary{
			Sampled:     len(request.Sampled),
			Deleted:     len(request.Selection.Deleted),
			Feature:     len(request.Selection.Feature),
			Influenced:  len(request.Selection.Influence),
			EdgesBefore: graph.NumEdges(),
			EdgesAfter:  request.Unlearned.Edges.Len(),
		},
		StartedAt: start,
	}

	r.logger.Info().
		Str("experiment_id", report.ID).
		Str("dataset", graph.Name).
		Str("model", s.TargetModel).
		Str("task", string(s.Task)).
		Str("method", string(s.Method)).
		Str("solver", solver.Name()).
		Int("num_runs", s.NumRuns).
		Msg("Experiment started")

	runs, err := r.runAll(ctx, graph, request, solver)
	if err != nil {
		return nil, err
	}

	report.Runs = runs
	report.F1Original = summarize(runs, func(rr RunResult) float64 { return rr.F1Original })
	report.F1Unlearned = summarize(runs, func(rr RunResult) float64 { return rr.F1Unlearned })
	report.TrainTime = summarize(runs, func(rr RunResult) float64 { return rr.TrainTime.Seconds() })
	report.UnlearnTime = summarize(runs, func(rr RunResult) float64 { return rr.UnlearnTime.Seconds() })
	report.Elapsed = time.Since(start).String()

	r.logger.Info().
		Str("experiment_id", report.ID).
		Float64("f1_original_mean", report.F1Original.Mean).
		Float64("f1_original_std", report.F1Original.Std).
		Float64("f1_unlearned_mean", report.F1Unlearned.Mean).
		Float64("f1_unlearned_std", report.F1Unlearned.Std).
		Float64("train_time_mean", report.TrainTime.Mean).
		Float64("unlearn_time_mean", report.UnlearnTime.Mean).
		Msg("Experiment complete")

	if r.saveReport {
		if err := r.store.SaveReport(reportName(report), report); err != nil {
			return nil, fmt.Errorf("save report: %w", err)
		}
	}

	return report, nil
}

// trainTestSplit computes and saves the split, or loads a saved one
func (r *Runner) trainTestSplit(graph *models.Graph) ([]int, []int, error) {
	var train, test []int

	if r.settings.IsSplit {
		if graph.HasPredefinedSplit() {
			train, test = graph.TrainIndices, graph.TestIndices
			r.logger.Debug().Msg("Using predefined train/test split")
		} else {
			var err error
			train, test, err = datastore.SplitTrainTest(graph.NumNodes, r.settings.TestRatio, datastore.SplitSeed)
			if err != nil {
				return nil, nil, err
			}
		}
		if err := r.store.SaveTrainTestSplit(train, test); err != nil {
			return nil, nil, fmt.Errorf("save train/test split: %w", err)
		}
	} else {
		var err error
		train, test, err = r.store.LoadTrainTestSplit()
		if err != nil {
			return nil, nil, fmt.Errorf("load train/test split: %w", err)
		}
	}

	if err := validation.ValidateSplit(train, test, graph.NumNodes); err != nil {
		return nil, nil, fmt.Errorf("train/test split: %w", err)
	}

	r.logger.Info().Int("train", len(train)).Int("test", len(test)).Msg("Train/test split ready")
	return train, test, nil
}

// runAll executes every run, up to ParallelRuns at a time
func (r *Runner) runAll(ctx context.Context, graph *models.Graph, request *unlearning.Request, solver gif.Solver) ([]RunResult, error) {
	s := r.settings
	results := make([]RunResult, s.NumRuns)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.ParallelRuns)

	var finished atomic.Int64
	for run := 0; run < s.NumRuns; run++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := r.runOnce(gctx, run, graph, request, solver)
			if r.metrics != nil {
				r.metrics.ObserveRun(string(s.Task), string(s.Method), err)
			}
			if err != nil {
				return fmt.Errorf("run %d: %w", run, err)
			}
			results[run] = *result
			n := finished.Add(1)
			if r.progress != nil {
				r.progress(int(n), s.NumRuns)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// runOnce trains a fresh model, scores it, applies the influence update and scores again
func (r *Runner) runOnce(ctx context.Context, run int, graph *models.Graph, request *unlearning.Request, solver gif.Solver) (*RunResult, error) {
	s := r.settings
	logger := r.logger.With().Int("run", run).Logger()

	opts := s.Model
	opts.Seed = s.Seed + uint64(run)
	opts.Logger = logger
	m, err := r.models.New(s.TargetModel, opts)
	if err != nil {
		return nil, err
	}

	stats, err := m.Train(ctx, graph)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	evalStart := time.Now()
	f1, err := m.Evaluate(graph)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	evalTime := time.Since(evalStart)
	logger.Info().Dur("eval_time", evalTime).Float64("f1", f1).Msg("Evaluation cost")

	unlearnStart := time.Now()
	triple, err := m.GradientTriple(graph, s.Task, request.Unlearned, request.Selection)
	if err != nil {
		return nil, fmt.Errorf("gradient triple: %w", err)
	}
	approx := gif.NewApproximator(s.Method, s.Iterations, s.Damp, s.Scale, logger).WithSolver(solver)
	result, err := approx.Approximate(triple, m.Params(), m)
	if err != nil {
		return nil, fmt.Errorf("approximate: %w", err)
	}
	unlearnTime := time.Since(unlearnStart)

	f1Unlearned, err := m.EvaluateUnlearn(graph, request.Unlearned, result.Params)
	if err != nil {
		return nil, fmt.Errorf("evaluate unlearned: %w", err)
	}

	if r.metrics != nil {
		r.metrics.ObservePhase("train", stats.Elapsed)
		r.metrics.ObservePhase("evaluate", evalTime)
		r.metrics.ObservePhase("unlearn", unlearnTime)
		r.metrics.ObserveSolver(result.Solver, result.Iterations)
		r.metrics.SetF1("original", f1)
		r.metrics.SetF1("unlearned", f1Unlearned)
	}

	logger.Info().
		Float64("f1_original", f1).
		Float64("f1_unlearned", f1Unlearned).
		Dur("train_time", stats.Elapsed).
		Dur("unlearn_time", unlearnTime).
		Msg("Run complete")

	return &RunResult{
		Run:         run,
		F1Original:  f1,
		F1Unlearned: f1Unlearned,
		TrainTime:   stats.Elapsed,
		EvalTime:    evalTime,
		UnlearnTime: unlearnTime,
		TrainLoss:   stats.FinalLoss,
		Iterations:  result.Iterations,
		DeltaNorm:   params.Norm(result.Delta),
	}, nil
}

func summarize(runs []RunResult, value func(RunResult) float64) Summary {
	xs := make([]float64, len(runs))
	for i, rr := range runs {
		xs[i] = value(rr)
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	return Summary{Mean: mean, Std: std}
}

func reportName(report *Report) string {
	s := report.Settings
	return fmt.Sprintf("report_%s_%s_%s_%s", s.TargetModel, s.Task, s.Method, report.ID[:8])
}

// IsConfigError reports whether err stems from invalid settings
func IsConfigError(err error) bool {
	var ve models.ValidationErrors
	return errors.As(err, &ve)
}
