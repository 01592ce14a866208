package model

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/gilchrisn/graph-unlearning-service/pkg/evaluation"
	"github.com/gilchrisn/graph-unlearning-service/pkg/gif"
	"github.com/gilchrisn/graph-unlearning-service/pkg/models"
	"github.com/gilchrisn/graph-unlearning-service/pkg/params"
)

var _ Trainable = (*SGC)(nil)

// SGCName is the registry name of the simplified graph convolution classifier
const SGCName = "SGC"

// SGC is a simplified graph convolution: softmax regression on K-hop propagated
// features. Parameters are [W (F x C), b (1 x C)]; all gradients are of the summed
// cross-entropy, so the Hessian-vector product is exact.
type SGC struct {
	opts   Options
	logger zerolog.Logger

	params     params.Set
	numClasses int

	// propagated features of the graph the model was trained on
	trainedOn  *models.Graph
	propagated *mat.Dense
}

// NewSGC creates an untrained SGC model
func NewSGC(opts Options) (*SGC, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &SGC{
		opts:   opts,
		logger: opts.Logger.With().Str("model", SGCName).Logger(),
	}, nil
}

func (m *SGC) Name() string { return SGCName }

// Params returns the trained parameters
func (m *SGC) Params() params.Set {
	return m.params
}

// features returns the propagated features of graph, reusing the training cache
func (m *SGC) features(graph *models.Graph) *mat.Dense {
	if graph == m.trainedOn && m.propagated != nil {
		return m.propagated
	}
	return Propagate(graph.Edges, graph.Features, m.opts.PropagationHops)
}

// initParams draws W with Glorot-uniform entries and zeroes b
func (m *SGC) initParams(numFeatures, numClasses int) params.Set {
	rng := rand.New(rand.NewPCG(m.opts.Seed, 0x5c6))
	limit := math.Sqrt(6 / float64(numFeatures+numClasses))

	w := mat.NewDense(numFeatures, numClasses, nil)
	raw := w.RawMatrix().Data
	for i := range raw {
		raw[i] = (2*rng.Float64() - 1) * limit
	}
	return params.Set{w, mat.NewDense(1, numClasses, nil)}
}

// Train runs full-batch gradient descent on the mean training loss with L2 weight decay
func (m *SGC) Train(ctx context.Context, graph *models.Graph) (*TrainStats, error) {
	start := time.Now()

	trainIdx := models.MaskToIndices(graph.TrainMask)
	if len(trainIdx) == 0 {
		return nil, ErrNoTrainingNodes
	}

	m.numClasses = numClasses(graph.Labels)
	m.trainedOn = graph
	m.propagated = Propagate(graph.Edges, graph.Features, m.opts.PropagationHops)
	m.params = m.initParams(graph.NumFeatures(), m.numClasses)

	z := selectRows(m.propagated, trainIdx)
	labels := selectLabels(graph.Labels, trainIdx)
	inv := 1 / float64(len(trainIdx))

	loss := 0.0
	for epoch := 0; epoch < m.opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("training interrupted at epoch %d: %w", epoch, err)
		}

		var grad params.Set
		loss, grad = lossAndGradient(z, labels, m.params, m.numClasses)

		for i := range m.params {
			var step mat.Dense
			step.Scale(inv, grad[i])
			step.Add(&step, scaled(m.opts.WeightDecay, m.params[i]))
			step.Scale(m.opts.LearningRate, &step)
			m.params[i].Sub(m.params[i], &step)
		}

		if (epoch+1)%50 == 0 {
			m.logger.Debug().
				Int("epoch", epoch+1).
				Float64("loss", loss*inv).
				Msg("Training progress")
		}
	}

	stats := &TrainStats{
		Epochs:    m.opts.Epochs,
		FinalLoss: loss * inv,
		Elapsed:   time.Since(start),
	}

	m.logger.Debug().
		Int("train_nodes", len(trainIdx)).
		Float64("final_loss", stats.FinalLoss).
		Dur("elapsed", stats.Elapsed).
		Msg("Training complete")

	return stats, nil
}

// Evaluate returns the test micro-F1 of the trained parameters on the original graph
func (m *SGC) Evaluate(graph *models.Graph) (float64, error) {
	if m.params == nil {
		return 0, ErrNotTrained
	}
	return m.score(m.features(graph), graph, m.params)
}

// EvaluateUnlearn returns the test micro-F1 of p on the edited graph
func (m *SGC) EvaluateUnlearn(graph *models.Graph, unlearned models.UnlearnedGraph, p params.Set) (float64, error) {
	if m.params == nil {
		return 0, ErrNotTrained
	}
	if err := params.Aligned(m.params, p); err != nil {
		return 0, err
	}
	z := Propagate(unlearned.Edges, unlearned.Features, m.opts.PropagationHops)
	return m.score(z, graph, p)
}

func (m *SGC) score(z *mat.Dense, graph *models.Graph, p params.Set) (float64, error) {
	predictions := argmaxRows(softmax(z, p[0], p[1]))
	scores, err := evaluation.Score(predictions, graph.Labels, models.MaskToIndices(graph.TestMask))
	if err != nil {
		return 0, err
	}

	if e := m.logger.Debug(); e.Enabled() {
		perClass := zerolog.Dict()
		for _, c := range scores.SortedClasses() {
			perClass.Float64(strconv.Itoa(c), scores.Classes[c].F1())
		}
		e.Float64("micro_f1", scores.MicroF1).
			Float64("macro_f1", scores.MacroF1).
			Int("support", scores.Support).
			Dict("class_f1", perClass).
			Msg("Test scores")
	}
	return scores.MicroF1, nil
}

// GradientTriple returns the summed-loss gradients used by the influence update:
// the training loss on the original graph, the pre-edit loss on the original graph
// and the post-edit loss on the edited graph.
func (m *SGC) GradientTriple(graph *models.Graph, task models.Task, unlearned models.UnlearnedGraph, selection models.Selection) (gif.GradientTriple, error) {
	if m.params == nil {
		return gif.GradientTriple{}, ErrNotTrained
	}

	preNodes, postNodes, err := GradientMasks(task, selection)
	if err != nil {
		return gif.GradientTriple{}, err
	}

	original := m.features(graph)
	edited := Propagate(unlearned.Edges, unlearned.Features, m.opts.PropagationHops)
	trainIdx := models.MaskToIndices(graph.TrainMask)

	triple := gif.GradientTriple{
		All:  m.gradient(original, graph.Labels, trainIdx, m.params),
		Pre:  m.gradient(original, graph.Labels, preNodes, m.params),
		Post: m.gradient(edited, graph.Labels, postNodes, m.params),
	}

	m.logger.Debug().
		Str("task", string(task)).
		Int("pre_nodes", len(preNodes)).
		Int("post_nodes", len(postNodes)).
		Float64("grad_all_norm", params.Norm(triple.All)).
		Float64("grad_diff_norm", diffNorm(triple.Pre, triple.Post)).
		Msg("Gradient triple computed")

	return triple, nil
}

// HessianVectorProduct returns H v for the summed training loss of the original
// graph, evaluated at modelParams. gradAll only fixes the expected shapes.
func (m *SGC) HessianVectorProduct(gradAll, modelParams, direction params.Set) (params.Set, error) {
	if m.propagated == nil {
		return nil, ErrNotTrained
	}
	if err := params.Aligned(modelParams, gradAll, direction); err != nil {
		return nil, err
	}

	trainIdx := models.MaskToIndices(m.trainedOn.TrainMask)
	z := selectRows(m.propagated, trainIdx)
	if z == nil {
		return modelParams.Zeros(), nil
	}
	return hessianVectorProduct(z, modelParams, direction), nil
}

func (m *SGC) gradient(z *mat.Dense, labels []int, nodes []int, p params.Set) params.Set {
	rows := selectRows(z, nodes)
	if rows == nil {
		return p.Zeros()
	}
	_, grad := lossAndGradient(rows, selectLabels(labels, nodes), p, m.numClasses)
	return grad
}

// lossAndGradient returns the summed cross-entropy of the rows of z and its gradient
func lossAndGradient(z *mat.Dense, labels []int, p params.Set, classes int) (float64, params.Set) {
	probs := softmax(z, p[0], p[1])

	loss := 0.0
	for i, y := range labels {
		if y < classes {
			loss -= math.Log(math.Max(probs.At(i, y), 1e-300))
			probs.Set(i, y, probs.At(i, y)-1)
		}
	}

	var gw mat.Dense
	gw.Mul(z.T(), probs)
	return loss, params.Set{&gw, columnSums(probs)}
}

// hessianVectorProduct computes the exact softmax-regression Hessian applied to
// direction: with s_i = z_i V_W + V_b and r_i = p_i ⊙ s_i - p_i (p_i · s_i),
// H_W v = Zᵀ R and H_b v = column sums of R.
func hessianVectorProduct(z *mat.Dense, p, direction params.Set) params.Set {
	probs := softmax(z, p[0], p[1])

	var s mat.Dense
	s.Mul(z, direction[0])
	vb := direction[1].RawRowView(0)

	r, c := s.Dims()
	for i := 0; i < r; i++ {
		row := s.RawRowView(i)
		pi := probs.RawRowView(i)
		dot := 0.0
		for j := 0; j < c; j++ {
			row[j] += vb[j]
			dot += pi[j] * row[j]
		}
		for j := 0; j < c; j++ {
			row[j] = pi[j]*row[j] - pi[j]*dot
		}
	}

	var hw mat.Dense
	hw.Mul(z.T(), &s)
	return params.Set{&hw, columnSums(&s)}
}

func selectLabels(labels []int, nodes []int) []int {
	out := make([]int, len(nodes))
	for i, n := range nodes {
		out[i] = labels[n]
	}
	return out
}

func numClasses(labels []int) int {
	c := 0
	for _, y := range labels {
		if y+1 > c {
			c = y + 1
		}
	}
	return c
}

func scaled(f float64, m *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Scale(f, m)
	return &out
}

func diffNorm(a, b params.Set) float64 {
	d, err := params.Sub(a, b)
	if err != nil {
		return math.NaN()
	}
	return params.Norm(d)
}
