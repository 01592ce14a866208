package gif

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-unlearning-service/pkg/params"
)

// HVPFunc returns the Hessian-vector product of the full-graph loss with direction
type HVPFunc func(direction params.Set) (params.Set, error)

// Problem is the fixed point (H/scale + damp*I) h = v, started from h0
type Problem struct {
	V          params.Set
	H0         params.Set
	HVP        HVPFunc
	Iterations int
	Damp       float64
	Scale      float64
}

// Solver estimates h for a Problem
type Solver interface {
	Name() string
	Solve(p Problem, logger zerolog.Logger) (params.Set, int, error)
}

// IterativeSolver runs exactly Iterations rounds of
// h = v + (1-damp)*h - hv/scale with no convergence check.
type IterativeSolver struct{}

func (IterativeSolver) Name() string { return "iterative" }

func (IterativeSolver) Solve(p Problem, logger zerolog.Logger) (params.Set, int, error) {
	if err := params.Aligned(p.H0, p.V); err != nil {
		return nil, 0, err
	}
	h := p.H0.Clone()

	for iter := 0; iter < p.Iterations; iter++ {
		hv, err := p.HVP(h)
		if err != nil {
			return nil, iter, fmt.Errorf("hessian-vector product at iteration %d: %w", iter, err)
		}
		if err := params.Aligned(h, hv); err != nil {
			return nil, iter, err
		}

		next := h.Zeros()
		var step mat.Dense
		for i := range h {
			next[i].Scale(1-p.Damp, h[i])
			next[i].Add(next[i], p.V[i])
			step.Reset()
			step.Scale(1/p.Scale, hv[i])
			next[i].Sub(next[i], &step)
		}
		h = next

		logger.Debug().
			Int("iteration", iter+1).
			Float64("h_norm", params.Norm(h)).
			Msg("GIF iteration")
	}

	return h, p.Iterations, nil
}

// ConjugateGradientSolver solves the same fixed point with conjugate gradients,
// stopping after Iterations steps or once the squared residual drops below ResidualTol.
// It assumes H is symmetric positive definite around the trained parameters.
type ConjugateGradientSolver struct {
	ResidualTol float64
}

func (ConjugateGradientSolver) Name() string { return "cg" }

func (s ConjugateGradientSolver) Solve(p Problem, logger zerolog.Logger) (params.Set, int, error) {
	if err := params.Aligned(p.H0, p.V); err != nil {
		return nil, 0, err
	}

	// A(x) = H x / scale + damp * x
	apply := func(x params.Set) (params.Set, error) {
		hx, err := p.HVP(x)
		if err != nil {
			return nil, err
		}
		if err := params.Aligned(x, hx); err != nil {
			return nil, err
		}
		return params.AddScaled(params.Scale(1/p.Scale, hx), p.Damp, x)
	}

	x := p.H0.Clone()
	ax, err := apply(x)
	if err != nil {
		return nil, 0, fmt.Errorf("hessian-vector product for initial residual: %w", err)
	}
	r, err := params.Sub(p.V, ax)
	if err != nil {
		return nil, 0, err
	}
	d := r.Clone()
	rtr, _ := params.Dot(r, r)

	steps := 0
	for steps < p.Iterations && rtr >= s.ResidualTol {
		ad, err := apply(d)
		if err != nil {
			return nil, steps, fmt.Errorf("hessian-vector product at step %d: %w", steps, err)
		}
		dad, _ := params.Dot(d, ad)
		if dad == 0 {
			break
		}
		alpha := rtr / dad

		x, _ = params.AddScaled(x, alpha, d)
		r, _ = params.AddScaled(r, -alpha, ad)
		newRtr, _ := params.Dot(r, r)

		beta := newRtr / rtr
		d, _ = params.AddScaled(r, beta, d)
		rtr = newRtr
		steps++

		logger.Debug().
			Int("step", steps).
			Float64("alpha", alpha).
			Float64("beta", beta).
			Float64("residual", rtr).
			Msg("CG step")
	}

	return x, steps, nil
}

// DefaultResidualTol is the CG early-stop threshold on rᵀr
const DefaultResidualTol = 1e-10

// SolverRegistry manages available solvers
type SolverRegistry struct {
	solvers map[string]Solver
}

// NewSolverRegistry creates a registry with the iterative and conjugate-gradient solvers
func NewSolverRegistry(residualTol float64) *SolverRegistry {
	registry := &SolverRegistry{
		solvers: make(map[string]Solver),
	}

	registry.Register(IterativeSolver{})
	registry.Register(ConjugateGradientSolver{ResidualTol: residualTol})

	return registry
}

// Register adds a solver to the registry
func (r *SolverRegistry) Register(s Solver) {
	r.solvers[s.Name()] = s
}

// Get retrieves a solver by name
func (r *SolverRegistry) Get(name string) (Solver, error) {
	s, exists := r.solvers[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownSolver, name, strings.Join(r.List(), ", "))
	}
	return s, nil
}

// List returns all solver names, sorted
func (r *SolverRegistry) List() []string {
	names := make([]string, 0, len(r.solvers))
	for name := range r.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
