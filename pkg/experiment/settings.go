package experiment

import (
	"fmt"
	"strings"

	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/model"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// Settings fully describe one experiment
type Settings struct {
	TargetModel string      `json:"target_model" yaml:"target_model"`
	Task        models.Task `json:"unlearn_task" yaml:"unlearn_task"`
	Ratio       float64     `json:"unlearn_ratio" yaml:"unlearn_ratio"`
	IsSplit     bool        `json:"is_split" yaml:"is_split"`
	TestRatio   float64     `json:"test_ratio" yaml:"test_ratio"`

	Method      gif.Method `json:"method" yaml:"method"`
	Iterations  int        `json:"iteration" yaml:"iteration"`
	Damp        float64    `json:"damp" yaml:"damp"`
	Scale       float64    `json:"scale" yaml:"scale"`
	Solver      string     `json:"solver" yaml:"solver"`
	ResidualTol float64    `json:"residual_tol" yaml:"residual_tol"`

	NumRuns      int    `json:"num_runs" yaml:"num_runs"`
	ParallelRuns int    `json:"parallel_runs" yaml:"parallel_runs"`
	Seed         uint64 `json:"seed" yaml:"seed"`

	Model model.Options `json:"-" yaml:"-"`
}

// DefaultSettings mirror the configuration defaults
func DefaultSettings() Settings {
	return Settings{
		TargetModel:  model.SGCName,
		Task:         models.TaskNode,
		Ratio:        0.1,
		IsSplit:      true,
		TestRatio:    0.1,
		Method:       gif.MethodGIF,
		Iterations:   100,
		Damp:         0,
		Scale:        500,
		Solver:       gif.IterativeSolver{}.Name(),
		ResidualTol:  gif.DefaultResidualTol,
		NumRuns:      1,
		ParallelRuns: 1,
		Seed:         1,
		Model:        model.DefaultOptions(),
	}
}

// Validate checks every setting and reports all problems at once
func (s Settings) Validate() error {
	var errs models.ValidationErrors

	if !model.NewRegistry().Has(s.TargetModel) {
		errs = append(errs, models.ValidationError{Field: "target_model", Message: "unknown model", Value: s.TargetModel})
	}
	if _, err := models.ParseTask(string(s.Task)); err != nil || strings.ToLower(string(s.Task)) != string(s.Task) {
		errs = append(errs, models.ValidationError{Field: "unlearn_task", Message: "must be one of node, edge, feature", Value: string(s.Task)})
	}
	if !(s.Ratio > 0 && s.Ratio <= 1) {
		errs = append(errs, models.ValidationError{Field: "unlearn_ratio", Message: "must be in (0, 1]", Value: fmt.Sprintf("%g", s.Ratio)})
	}
	if s.IsSplit && !(s.TestRatio > 0 && s.TestRatio < 1) {
		errs = append(errs, models.ValidationError{Field: "test_ratio", Message: "must be in (0, 1)", Value: fmt.Sprintf("%g", s.TestRatio)})
	}
	if s.Method != gif.MethodGIF && s.Method != gif.MethodIF {
		errs = append(errs, models.ValidationError{Field: "method", Message: "must be GIF or IF", Value: string(s.Method)})
	}
	if s.Iterations < 1 {
		errs = append(errs, models.ValidationError{Field: "iteration", Message: "must be a positive integer", Value: fmt.Sprintf("%d", s.Iterations)})
	}
	if s.Scale == 0 {
		errs = append(errs, models.ValidationError{Field: "scale", Message: "must be nonzero"})
	}
	if _, err := gif.NewSolverRegistry(s.ResidualTol).Get(s.Solver); err != nil {
		errs = append(errs, models.ValidationError{Field: "solver", Message: "unknown solver", Value: s.Solver})
	}
	if s.NumRuns < 1 {
		errs = append(errs, models.ValidationError{Field: "num_runs", Message: "must be a positive integer", Value: fmt.Sprintf("%d", s.NumRuns)})
	}
	if s.ParallelRuns < 1 {
		errs = append(errs, models.ValidationError{Field: "parallel_runs", Message: "must be a positive integer", Value: fmt.Sprintf("%d", s.ParallelRuns)})
	}
	if err := s.Model.Validate(); err != nil {
		if ve, ok := err.(models.ValidationErrors); ok {
			errs = append(errs, ve...)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
