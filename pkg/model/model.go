// Package model provides the trainable node classifiers that feed the influence
// approximation: training, evaluation, the gradient triple and Hessian-vector products.
package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/params"
)

var (
	// ErrUnknownModel indicates a target model missing from the registry.
	ErrUnknownModel = errors.New("model: unknown target model")
	// ErrNotTrained indicates a call that needs trained parameters.
	ErrNotTrained = errors.New("model: not trained")
	// ErrNoTrainingNodes indicates an empty training mask.
	ErrNoTrainingNodes = errors.New("model: training mask is empty")
)

// Trainable is a node classifier able to supply everything the GIF update needs
type Trainable interface {
	gif.HessianVectorProducer

	// Name returns the architecture name
	Name() string

	// Train fits the parameters on the training mask of graph
	Train(ctx context.Context, graph *models.Graph) (*TrainStats, error)

	// Params returns the trained parameters
	Params() params.Set

	// Evaluate returns the test micro-F1 of the trained parameters on the original graph
	Evaluate(graph *models.Graph) (float64, error)

	// EvaluateUnlearn returns the test micro-F1 of p on the edited graph
	EvaluateUnlearn(graph *models.Graph, unlearned models.UnlearnedGraph, p params.Set) (float64, error)

	// GradientTriple returns the full-graph, pre-edit and post-edit loss gradients
	GradientTriple(graph *models.Graph, task models.Task, unlearned models.UnlearnedGraph, selection models.Selection) (gif.GradientTriple, error)
}

// TrainStats reports one training run
type TrainStats struct {
	Epochs    int           `json:"epochs" yaml:"epochs"`
	FinalLoss float64       `json:"final_loss" yaml:"final_loss"`
	Elapsed   time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Options configure a model instance
type Options struct {
	Epochs          int
	LearningRate    float64
	WeightDecay     float64
	PropagationHops int
	Seed            uint64
	Logger          zerolog.Logger
}

// DefaultOptions returns the training defaults
func DefaultOptions() Options {
	return Options{
		Epochs:          200,
		LearningRate:    0.2,
		WeightDecay:     5e-4,
		PropagationHops: 2,
		Logger:          zerolog.Nop(),
	}
}

// Validate checks the training options
func (o Options) Validate() error {
	var errs models.ValidationErrors
	if o.Epochs <= 0 {
		errs = append(errs, models.ValidationError{Field: "epochs", Message: "must be positive", Value: fmt.Sprintf("%d", o.Epochs)})
	}
	if o.LearningRate <= 0 {
		errs = append(errs, models.ValidationError{Field: "learning_rate", Message: "must be positive", Value: fmt.Sprintf("%g", o.LearningRate)})
	}
	if o.WeightDecay < 0 {
		errs = append(errs, models.ValidationError{Field: "weight_decay", Message: "cannot be negative", Value: fmt.Sprintf("%g", o.WeightDecay)})
	}
	if o.PropagationHops < 0 {
		errs = append(errs, models.ValidationError{Field: "propagation_hops", Message: "cannot be negative", Value: fmt.Sprintf("%d", o.PropagationHops)})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Factory creates a fresh, untrained model
type Factory func(opts Options) (Trainable, error)

// Registry manages available model architectures
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in architectures
func NewRegistry() *Registry {
	registry := &Registry{
		factories: make(map[string]Factory),
	}

	registry.Register(SGCName, func(opts Options) (Trainable, error) {
		m, err := NewSGC(opts)
		if err != nil {
			return nil, err
		}
		return m, nil
	})

	return registry
}

// Register adds a factory under name
func (r *Registry) Register(name string, f Factory) {
	r.factories[strings.ToUpper(name)] = f
}

// New builds a fresh model by name
func (r *Registry) New(name string, opts Options) (Trainable, error) {
	f, exists := r.factories[strings.ToUpper(strings.TrimSpace(name))]
	if !exists {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownModel, name, strings.Join(r.List(), ", "))
	}
	return f(opts)
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, exists := r.factories[strings.ToUpper(strings.TrimSpace(name))]
	return exists
}

// List returns all registered names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GradientMasks returns the node sets whose losses form grad_pre and grad_post.
// Node deletion keeps the deleted nodes in the pre-edit loss only; edge and
// feature edits use the same set on both sides.
func GradientMasks(task models.Task, selection models.Selection) (pre, post []int, err error) {
	switch task {
	case models.TaskEdge:
		return selection.Influence, selection.Influence, nil
	case models.TaskNode:
		pre = models.SortedUnique(append(append([]int(nil), selection.Deleted...), selection.Influence...))
		return pre, selection.Influence, nil
	case models.TaskFeature:
		both := models.SortedUnique(append(append([]int(nil), selection.Feature...), selection.Influence...))
		return both, both, nil
	}
	return nil, nil, fmt.Errorf("model: unsupported task %q", task)
}
