// Package linear implements linear classifiers trained by gradient descent.
package linear

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// LogisticRegression is a logistic regression classifier. Binary problems
// train a single coefficient row for the positive class; problems with more
// classes train one-vs-rest, one row per class. Training is plain batch
// gradient descent with an adaptive learning rate and optional L2 penalty,
// deterministic under a fixed random state.
type LogisticRegression struct {
	state *model.StateManager

	// Hyperparameters
	penalty      string  // "l2" or "none"
	c            float64 // inverse regularization strength
	fitIntercept bool
	learningRate float64 // base step size, decayed per iteration
	maxIter      int
	tol          float64 // gradient infinity-norm stopping threshold
	randomState  int64

	// Learned parameters
	coef      [][]float64 // 1 x nFeatures (binary) or nClasses x nFeatures
	intercept []float64
	classes   []int
	nClasses  int
	nFeatures int
	nIter     []int // iterations actually run, per coefficient row

	rng    *rand.Rand
	logger log.Logger
}

// LogisticRegressionOption configures a LogisticRegression.
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a classifier with sklearn-like defaults:
// L2 penalty with C=1, intercept fitting, 100 iterations at tolerance 1e-4.
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		c:            1.0,
		fitIntercept: true,
		learningRate: 1.0,
		maxIter:      100,
		tol:          1e-4,
		randomState:  -1,
		logger:       log.GetLoggerWithName("linear.LogisticRegression"),
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.seedRNG()
	return lr
}

func (lr *LogisticRegression) seedRNG() {
	if lr.randomState >= 0 {
		s := uint64(lr.randomState)
		lr.rng = rand.New(rand.NewPCG(s, s))
	} else {
		lr.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// WithLRPenalty sets the regularization type: "l2" or "none".
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.penalty = penalty }
}

// WithLRC sets the inverse regularization strength.
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.c = c }
}

// WithLRFitIntercept sets whether an intercept term is trained.
func WithLRFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.fitIntercept = fit }
}

// WithLRLearningRate sets the base gradient descent step size.
func WithLRLearningRate(rate float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.learningRate = rate }
}

// WithLRMaxIter sets the maximum number of iterations.
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.maxIter = maxIter }
}

// WithLRTol sets the stopping tolerance on the gradient infinity norm.
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.tol = tol }
}

// WithLRRandomState fixes the seed for weight initialization. Negative seeds
// draw from the global source.
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) { lr.randomState = seed }
}

// Fit trains the classifier on X (nSamples x nFeatures) and integer labels y
// (nSamples x 1). At least two classes must be present. Reaching maxIter
// without meeting the tolerance emits a ConvergenceWarning, not an error.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples != yRows {
		return errors.NewDimensionError("LogisticRegression.Fit", nSamples, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("LogisticRegression.Fit", 1, yCols, 1)
	}
	if nSamples == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty training data", errors.ErrEmptyData)
	}

	lr.extractClasses(y)
	if lr.nClasses < 2 {
		return errors.NewValueError("LogisticRegression.Fit", "training data contains a single class")
	}
	lr.nFeatures = nFeatures
	lr.initializeWeights(nFeatures)

	if lr.nClasses == 2 {
		// Single row against the positive (larger) class.
		yBin := binaryTargets(y, lr.classes[1])
		if err := lr.gradientDescent(X, yBin, 0); err != nil {
			return err
		}
	} else {
		for idx, class := range lr.classes {
			yBin := binaryTargets(y, class)
			if err := lr.gradientDescent(X, yBin, idx); err != nil {
				return errors.Wrapf(err, "glassbox: fitting one-vs-rest row for class %d", class)
			}
		}
	}

	lr.state.SetDimensions(nFeatures, nSamples)
	lr.state.SetFitted()
	lr.logger.Info("fitted logistic regression",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		"classes", lr.nClasses,
	)
	return nil
}

// extractClasses collects the sorted unique labels in y.
func (lr *LogisticRegression) extractClasses(y mat.Matrix) {
	rows, _ := y.Dims()
	seen := make(map[int]bool)
	for i := 0; i < rows; i++ {
		seen[int(y.At(i, 0))] = true
	}
	lr.classes = make([]int, 0, len(seen))
	for class := range seen {
		lr.classes = append(lr.classes, class)
	}
	for i := 0; i < len(lr.classes)-1; i++ {
		for j := i + 1; j < len(lr.classes); j++ {
			if lr.classes[i] > lr.classes[j] {
				lr.classes[i], lr.classes[j] = lr.classes[j], lr.classes[i]
			}
		}
	}
	lr.nClasses = len(lr.classes)
}

// initializeWeights draws small random starting weights.
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	rows := 1
	if lr.nClasses > 2 {
		rows = lr.nClasses
	}
	lr.coef = make([][]float64, rows)
	lr.intercept = make([]float64, rows)
	lr.nIter = make([]int, rows)
	for i := range lr.coef {
		lr.coef[i] = make([]float64, nFeatures)
		for j := range lr.coef[i] {
			lr.coef[i][j] = lr.rng.NormFloat64() * 0.01
		}
	}
}

// binaryTargets maps y to 1.0 where the label equals positive, else 0.0.
func binaryTargets(y mat.Matrix, positive int) []float64 {
	rows, _ := y.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if int(y.At(i, 0)) == positive {
			out[i] = 1.0
		}
	}
	return out
}

// gradientDescent trains one coefficient row against binary targets.
func (lr *LogisticRegression) gradientDescent(X mat.Matrix, yBin []float64, row int) error {
	nSamples, nFeatures := X.Dims()
	weights := lr.coef[row]
	intercept := &lr.intercept[row]

	gradWeights := make([]float64, nFeatures)

	for iter := 0; iter < lr.maxIter; iter++ {
		for j := range gradWeights {
			gradWeights[j] = 0
		}
		gradIntercept := 0.0

		for i := 0; i < nSamples; i++ {
			z := *intercept
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * weights[j]
			}
			residual := sigmoid(z) - yBin[i]
			gradIntercept += residual
			for j := 0; j < nFeatures; j++ {
				gradWeights[j] += residual * X.At(i, j)
			}
		}

		for j := range gradWeights {
			gradWeights[j] /= float64(nSamples)
		}
		gradIntercept /= float64(nSamples)

		if lr.penalty == "l2" {
			lambda := 1.0 / lr.c
			for j := range weights {
				gradWeights[j] += lambda * weights[j]
			}
		}

		step := lr.learningRate / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= step * gradWeights[j]
		}
		if lr.fitIntercept {
			*intercept -= step * gradIntercept
		}
		lr.nIter[row] = iter + 1

		if err := errors.CheckNumericalStability("LogisticRegression.gradientDescent", weights, iter); err != nil {
			return err
		}

		maxGrad := math.Abs(gradIntercept)
		for _, g := range gradWeights {
			if math.Abs(g) > maxGrad {
				maxGrad = math.Abs(g)
			}
		}
		if maxGrad < lr.tol {
			return nil
		}
	}

	errors.Warn(errors.NewConvergenceWarning("LogisticRegression", lr.maxIter,
		"gradient descent stopped at max_iter before reaching tol"))
	return nil
}

// Predict returns the predicted class label for each row of X as an
// nSamples x 1 matrix.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	predictions := mat.NewDense(nSamples, 1, nil)
	if lr.nClasses == 2 {
		for i := 0; i < nSamples; i++ {
			if scores.At(i, 0) >= 0 {
				predictions.Set(i, 0, float64(lr.classes[1]))
			} else {
				predictions.Set(i, 0, float64(lr.classes[0]))
			}
		}
		return predictions, nil
	}
	for i := 0; i < nSamples; i++ {
		best, bestScore := 0, math.Inf(-1)
		for c := 0; c < lr.nClasses; c++ {
			if s := scores.At(i, c); s > bestScore {
				best, bestScore = c, s
			}
		}
		predictions.Set(i, 0, float64(lr.classes[best]))
	}
	return predictions, nil
}

// DecisionFunction returns raw scores before the link function: nSamples x 1
// for binary models (positive-class logit), nSamples x nClasses otherwise.
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (mat.Matrix, error) {
	if !lr.state.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "Fit")
	}
	nSamples, nFeatures := X.Dims()
	if nFeatures != lr.nFeatures {
		return nil, errors.NewDimensionError("LogisticRegression.DecisionFunction", lr.nFeatures, nFeatures, 1)
	}

	scores := mat.NewDense(nSamples, len(lr.coef), nil)
	for i := 0; i < nSamples; i++ {
		for c := range lr.coef {
			z := lr.intercept[c]
			for j := 0; j < nFeatures; j++ {
				z += X.At(i, j) * lr.coef[c][j]
			}
			scores.Set(i, c, z)
		}
	}
	return scores, nil
}

// PredictProba returns per-class probabilities as an nSamples x nClasses
// matrix with columns ordered like Classes. Binary models apply the sigmoid;
// one-vs-rest models apply a stabilized softmax over the class scores.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	scores, err := lr.DecisionFunction(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := X.Dims()
	probas := mat.NewDense(nSamples, lr.nClasses, nil)
	if lr.nClasses == 2 {
		for i := 0; i < nSamples; i++ {
			p := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1.0-p)
			probas.Set(i, 1, p)
		}
		return probas, nil
	}

	row := make([]float64, lr.nClasses)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, scores)
		lse := errors.LogSumExp(row)
		for c := 0; c < lr.nClasses; c++ {
			probas.Set(i, c, errors.StabilizeExp(row[c]-lse))
		}
	}
	return probas, nil
}

// Score returns the mean accuracy of Predict against y.
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	nSamples, _ := X.Dims()
	yRows, _ := y.Dims()
	if nSamples != yRows {
		return 0, errors.NewDimensionError("LogisticRegression.Score", nSamples, yRows, 0)
	}

	correct := 0
	for i := 0; i < nSamples; i++ {
		if predictions.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(nSamples), nil
}

// IsFitted returns whether Fit has completed.
func (lr *LogisticRegression) IsFitted() bool { return lr.state.IsFitted() }

// Classes returns the sorted class labels.
func (lr *LogisticRegression) Classes() []int {
	out := make([]int, len(lr.classes))
	copy(out, lr.classes)
	return out
}

// Weights returns the fitted coefficient matrix: one row for binary models
// (the positive class; negate for the other), one row per class otherwise.
// It returns nil before Fit.
func (lr *LogisticRegression) Weights() mat.Matrix {
	if len(lr.coef) == 0 {
		return nil
	}
	out := mat.NewDense(len(lr.coef), lr.nFeatures, nil)
	for i, row := range lr.coef {
		out.SetRow(i, row)
	}
	return out
}

// Intercepts returns the fitted intercept terms, parallel to Weights rows.
func (lr *LogisticRegression) Intercepts() []float64 {
	out := make([]float64, len(lr.intercept))
	copy(out, lr.intercept)
	return out
}

// NIter returns the gradient descent iterations run per coefficient row.
func (lr *LogisticRegression) NIter() []int {
	out := make([]int, len(lr.nIter))
	copy(out, lr.nIter)
	return out
}

// GetParams returns the hyperparameters.
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.c,
		"fit_intercept": lr.fitIntercept,
		"learning_rate": lr.learningRate,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
		"random_state":  lr.randomState,
	}
}

// SetParams sets hyperparameters by name. Unknown names are an error.
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "penalty":
			lr.penalty = value.(string)
		case "C":
			lr.c = value.(float64)
		case "fit_intercept":
			lr.fitIntercept = value.(bool)
		case "learning_rate":
			lr.learningRate = value.(float64)
		case "max_iter":
			lr.maxIter = value.(int)
		case "tol":
			lr.tol = value.(float64)
		case "random_state":
			lr.randomState = value.(int64)
			lr.seedRNG()
		default:
			return errors.NewValidationError("params", "unknown parameter", key)
		}
	}
	return nil
}

// logisticState is the serialization snapshot for a classifier. Every
// field is exported so encoding/gob can reach it.
type logisticState struct {
	Penalty      string
	C            float64
	FitIntercept bool
	LearningRate float64
	MaxIter      int
	Tol          float64
	RandomState  int64
	Coef         [][]float64
	Intercept    []float64
	Classes      []int
	NClasses     int
	NFeatures    int
	NIter        []int
	Fitted       bool
}

// GobEncode implements gob.GobEncoder so fitted classifiers round-trip
// through model.SaveModel despite their unexported fields.
func (lr *LogisticRegression) GobEncode() ([]byte, error) {
	state := logisticState{
		Penalty:      lr.penalty,
		C:            lr.c,
		FitIntercept: lr.fitIntercept,
		LearningRate: lr.learningRate,
		MaxIter:      lr.maxIter,
		Tol:          lr.tol,
		RandomState:  lr.randomState,
		Coef:         lr.coef,
		Intercept:    lr.intercept,
		Classes:      lr.classes,
		NClasses:     lr.nClasses,
		NFeatures:    lr.nFeatures,
		NIter:        lr.nIter,
		Fitted:       lr.IsFitted(),
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, errors.Wrap(err, "glassbox: encoding logistic regression")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder, restoring the snapshot written by
// GobEncode and re-deriving the runtime-only fields.
func (lr *LogisticRegression) GobDecode(data []byte) error {
	var state logisticState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return errors.Wrap(err, "glassbox: decoding logistic regression")
	}

	lr.penalty = state.Penalty
	lr.c = state.C
	lr.fitIntercept = state.FitIntercept
	lr.learningRate = state.LearningRate
	lr.maxIter = state.MaxIter
	lr.tol = state.Tol
	lr.randomState = state.RandomState
	lr.coef = state.Coef
	lr.intercept = state.Intercept
	lr.classes = state.Classes
	lr.nClasses = state.NClasses
	lr.nFeatures = state.NFeatures
	lr.nIter = state.NIter

	lr.state = model.NewStateManager()
	if state.Fitted {
		lr.state.SetDimensions(state.NFeatures, 0)
		lr.state.SetFitted()
	}
	lr.logger = log.GetLoggerWithName("linear.LogisticRegression")
	lr.seedRNG()
	return nil
}

// sigmoid evaluates the logistic function with overflow-safe exp.
func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}
