// Package gif approximates the parameter change caused by unlearning with the
// Graph Influence Function: an iterative estimate of the inverse-Hessian-vector
// product built from Hessian-vector products of the full-graph loss.
package gif

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-unlearning-service/pkg/params"
)

// Method selects the initial vector of the fixed-point iteration
type Method string

const (
	// MethodGIF starts from grad_pre - grad_post
	MethodGIF Method = "GIF"
	// MethodIF starts from grad_pre alone
	MethodIF Method = "IF"
)

// ParseMethod validates a method name
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodGIF:
		return MethodGIF, nil
	case MethodIF:
		return MethodIF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

// GradientTriple holds the three gradients produced by the trainable model
type GradientTriple struct {
	All  params.Set // full-graph training loss
	Pre  params.Set // affected nodes, before the edit
	Post params.Set // affected nodes, after the edit
}

// HessianVectorProducer computes the derivative of sum(gradAll ⊙ direction)
// with respect to modelParams without materializing the Hessian.
type HessianVectorProducer interface {
	HessianVectorProduct(gradAll, modelParams, direction params.Set) (params.Set, error)
}

// Result is the outcome of one approximation
type Result struct {
	Params     params.Set // updated parameters
	Delta      params.Set // estimate / scale
	Estimate   params.Set // final h_estimate
	Iterations int
	Solver     string
	Elapsed    time.Duration
}

// Approximator applies the influence-function update
type Approximator struct {
	Method     Method
	Iterations int
	Damp       float64
	Scale      float64
	Solver     Solver
	logger     zerolog.Logger
}

// NewApproximator creates an approximator using the default iterative solver
func NewApproximator(method Method, iterations int, damp, scale float64, logger zerolog.Logger) *Approximator {
	return &Approximator{
		Method:     method,
		Iterations: iterations,
		Damp:       damp,
		Scale:      scale,
		Solver:     IterativeSolver{},
		logger:     logger,
	}
}

// WithSolver swaps the fixed-point strategy
func (a *Approximator) WithSolver(s Solver) *Approximator {
	a.Solver = s
	return a
}

// Validate checks the hyperparameters
func (a *Approximator) Validate() error {
	if a.Method != MethodGIF && a.Method != MethodIF {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, a.Method)
	}
	if a.Scale == 0 {
		return ErrZeroScale
	}
	if a.Iterations < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeIterations, a.Iterations)
	}
	return nil
}

// InitialVectors returns v and h_estimate before the first iteration.
// h_estimate is grad_pre - grad_post for both methods; only v depends on the method.
func (a *Approximator) InitialVectors(triple GradientTriple) (v, h params.Set, err error) {
	h, err = params.Sub(triple.Pre, triple.Post)
	if err != nil {
		return nil, nil, fmt.Errorf("grad_pre - grad_post: %w", err)
	}

	switch a.Method {
	case MethodGIF:
		v = h.Clone()
	case MethodIF:
		v = triple.Pre.Clone()
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownMethod, a.Method)
	}
	return v, h, nil
}

// Approximate estimates the unlearned parameters. modelParams is not modified.
func (a *Approximator) Approximate(triple GradientTriple, modelParams params.Set, hvp HessianVectorProducer) (*Result, error) {
	start := time.Now()

	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := params.Aligned(modelParams, triple.All, triple.Pre, triple.Post); err != nil {
		return nil, fmt.Errorf("gradient triple does not match model parameters: %w", err)
	}

	v, h0, err := a.InitialVectors(triple)
	if err != nil {
		return nil, err
	}

	solver := a.Solver
	if solver == nil {
		solver = IterativeSolver{}
	}

	problem := Problem{
		V:  v,
		H0: h0,
		HVP: func(direction params.Set) (params.Set, error) {
			return hvp.HessianVectorProduct(triple.All, modelParams, direction)
		},
		Iterations: a.Iterations,
		Damp:       a.Damp,
		Scale:      a.Scale,
	}

	estimate, steps, err := solver.Solve(problem, a.logger)
	if err != nil {
		return nil, fmt.Errorf("%s solver: %w", solver.Name(), err)
	}

	delta := params.Scale(1/a.Scale, estimate)
	updated, err := params.Add(modelParams, delta)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Params:     updated,
		Delta:      delta,
		Estimate:   estimate,
		Iterations: steps,
		Solver:     solver.Name(),
		Elapsed:    time.Since(start),
	}

	a.logger.Debug().
		Str("method", string(a.Method)).
		Str("solver", result.Solver).
		Int("iterations", steps).
		Float64("delta_norm", params.Norm(delta)).
		Dur("elapsed", result.Elapsed).
		Msg("Influence approximation complete")

	return result, nil
}
