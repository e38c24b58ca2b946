package boosting

import (
	"math"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// minHessian floors second-order statistics so leaf values stay bounded
// when predicted probabilities saturate.
const minHessian = 1e-16

// probEps clips probabilities away from 0 and 1 before taking logs.
const probEps = 1e-15

// ObjectiveFunction supplies per-sample first- and second-order statistics
// of the training loss with respect to raw scores.
type ObjectiveFunction interface {
	// Name returns the objective identifier.
	Name() string
	// NumOutputs returns the number of raw-score outputs per sample.
	NumOutputs() int
	// InitScores returns the constant raw scores that minimize the loss
	// before any tree is added.
	InitScores(targets []float64) []float64
	// GradHess returns gradient and hessian of the loss for one sample
	// with respect to the raw score of the given output.
	GradHess(raw []float64, target float64, output int) (grad, hess float64)
	// Loss evaluates the per-sample loss at the given raw scores.
	Loss(raw []float64, target float64) float64
}

// NewObjective constructs the objective for the given type. Multiclass
// objectives require numClass >= 3; binary ignores numClass.
func NewObjective(objective ObjectiveType, numClass int) (ObjectiveFunction, error) {
	switch objective {
	case BinaryLogistic:
		return &binaryLogistic{}, nil
	case MulticlassSoftmax:
		if numClass < 3 {
			return nil, errors.NewValidationError("num_class",
				"multiclass objective requires at least 3 classes", numClass)
		}
		return &multiclassSoftmax{numClass: numClass}, nil
	default:
		return nil, errors.NewValidationError("objective",
			"unknown objective", string(objective))
	}
}

// binaryLogistic is binary cross-entropy on sigmoid-transformed raw scores.
// Targets are 0 or 1.
type binaryLogistic struct{}

func (o *binaryLogistic) Name() string    { return string(BinaryLogistic) }
func (o *binaryLogistic) NumOutputs() int { return 1 }

// InitScores returns the log-odds of the positive rate, which minimizes
// log loss for a constant predictor.
func (o *binaryLogistic) InitScores(targets []float64) []float64 {
	pos := 0.0
	for _, t := range targets {
		pos += t
	}
	rate := pos / float64(len(targets))
	rate = errors.ClipValue(rate, probEps, 1-probEps)
	return []float64{math.Log(rate / (1 - rate))}
}

func (o *binaryLogistic) GradHess(raw []float64, target float64, output int) (float64, float64) {
	p := sigmoid(raw[0])
	hess := p * (1 - p)
	if hess < minHessian {
		hess = minHessian
	}
	return p - target, hess
}

func (o *binaryLogistic) Loss(raw []float64, target float64) float64 {
	p := errors.ClipValue(sigmoid(raw[0]), probEps, 1-probEps)
	if target > 0.5 {
		return -math.Log(p)
	}
	return -math.Log(1 - p)
}

// multiclassSoftmax is categorical cross-entropy on softmax-transformed raw
// scores. Targets are class indices 0..numClass-1; each boosting iteration
// fits one tree per class against that class's gradient.
type multiclassSoftmax struct {
	numClass int
}

func (o *multiclassSoftmax) Name() string    { return string(MulticlassSoftmax) }
func (o *multiclassSoftmax) NumOutputs() int { return o.numClass }

// InitScores returns per-class log priors.
func (o *multiclassSoftmax) InitScores(targets []float64) []float64 {
	counts := make([]float64, o.numClass)
	for _, t := range targets {
		counts[int(t)]++
	}
	scores := make([]float64, o.numClass)
	n := float64(len(targets))
	for c := range scores {
		prior := errors.ClipValue(counts[c]/n, probEps, 1-probEps)
		scores[c] = math.Log(prior)
	}
	return scores
}

func (o *multiclassSoftmax) GradHess(raw []float64, target float64, output int) (float64, float64) {
	p := o.probability(raw, output)
	hess := p * (1 - p)
	if hess < minHessian {
		hess = minHessian
	}
	indicator := 0.0
	if int(target) == output {
		indicator = 1.0
	}
	return p - indicator, hess
}

func (o *multiclassSoftmax) Loss(raw []float64, target float64) float64 {
	p := errors.ClipValue(o.probability(raw, int(target)), probEps, 1-probEps)
	return -math.Log(p)
}

func (o *multiclassSoftmax) probability(raw []float64, output int) float64 {
	lse := errors.LogSumExp(raw)
	return errors.StabilizeExp(raw[output] - lse)
}
