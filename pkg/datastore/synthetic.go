package datastore

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
)

// SyntheticOptions parameterize a stochastic block model with class-correlated features
type SyntheticOptions struct {
	Name        string
	NumNodes    int
	NumClasses  int
	NumFeatures int

	// edge probability within and across classes
	PIn  float64
	POut float64

	// class mean magnitude and Gaussian noise of the features
	FeatureSignal float64
	FeatureNoise  float64

	// PredefinedTestRatio > 0 ships a predefined split with the dataset
	PredefinedTestRatio float64

	Seed uint64
}

// DefaultSyntheticOptions returns a small three-class dataset
func DefaultSyntheticOptions() SyntheticOptions {
	return SyntheticOptions{
		Name:          "synthetic",
		NumNodes:      300,
		NumClasses:    3,
		NumFeatures:   16,
		PIn:           0.05,
		POut:          0.005,
		FeatureSignal: 1,
		FeatureNoise:  1,
		Seed:          1,
	}
}

// Validate checks the generator options
func (o SyntheticOptions) Validate() error {
	var errs models.ValidationErrors
	if o.NumNodes < 2 {
		errs = append(errs, models.ValidationError{Field: "num_nodes", Message: "must be at least 2", Value: fmt.Sprintf("%d", o.NumNodes)})
	}
	if o.NumClasses < 1 || o.NumClasses > o.NumNodes {
		errs = append(errs, models.ValidationError{Field: "num_classes", Message: "must be in [1, num_nodes]", Value: fmt.Sprintf("%d", o.NumClasses)})
	}
	if o.NumFeatures < 1 {
		errs = append(errs, models.ValidationError{Field: "num_features", Message: "must be positive", Value: fmt.Sprintf("%d", o.NumFeatures)})
	}
	for field, p := range map[string]float64{"p_in": o.PIn, "p_out": o.POut} {
		if p < 0 || p > 1 {
			errs = append(errs, models.ValidationError{Field: field, Message: "must be a probability", Value: fmt.Sprintf("%g", p)})
		}
	}
	if o.FeatureNoise < 0 {
		errs = append(errs, models.ValidationError{Field: "feature_noise", Message: "cannot be negative", Value: fmt.Sprintf("%g", o.FeatureNoise)})
	}
	if o.PredefinedTestRatio < 0 || o.PredefinedTestRatio >= 1 {
		errs = append(errs, models.ValidationError{Field: "predefined_test_ratio", Message: "must be in [0, 1)", Value: fmt.Sprintf("%g", o.PredefinedTestRatio)})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Synthetic generates an undirected graph without self-loops. Node i belongs to
// class i mod NumClasses; its features are the class indicator scaled by
// FeatureSignal plus Gaussian noise.
func Synthetic(opts SyntheticOptions) (*models.Graph, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	rng := rand.New(src)

	labels := make([]int, opts.NumNodes)
	for i := range labels {
		labels[i] = i % opts.NumClasses
	}

	edges := models.NewEdgeIndex(0)
	for i := 0; i < opts.NumNodes; i++ {
		for j := i + 1; j < opts.NumNodes; j++ {
			p := opts.POut
			if labels[i] == labels[j] {
				p = opts.PIn
			}
			if rng.Float64() < p {
				edges.AppendUndirected(i, j)
			}
		}
	}

	noise := distuv.Normal{Mu: 0, Sigma: opts.FeatureNoise, Src: src}
	features := mat.NewDense(opts.NumNodes, opts.NumFeatures, nil)
	for i := 0; i < opts.NumNodes; i++ {
		row := features.RawRowView(i)
		if opts.FeatureNoise > 0 {
			for j := range row {
				row[j] = noise.Rand()
			}
		}
		row[labels[i]%opts.NumFeatures] += opts.FeatureSignal
	}

	graph := &models.Graph{
		Name:     opts.Name,
		NumNodes: opts.NumNodes,
		Edges:    edges,
		Features: features,
		Labels:   labels,
	}

	if opts.PredefinedTestRatio > 0 {
		train, test, err := SplitTrainTest(opts.NumNodes, opts.PredefinedTestRatio, opts.Seed)
		if err != nil {
			return nil, err
		}
		graph.TrainIndices, graph.TestIndices = train, test
	}

	return graph, nil
}
