package boosting

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/metrics"
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// GBDTClassifier is a gradient-boosted tree classifier with a
// scikit-learn-style estimator surface. Labels may be arbitrary integers;
// they are mapped to contiguous class indices for training and mapped back
// on prediction.
type GBDTClassifier struct {
	model.BaseEstimator

	// Model is the trained ensemble, available after Fit.
	Model *Model

	// Hyperparameters
	NumIterations   int
	LearningRate    float64
	NumLeaves       int
	MaxDepth        int
	MinChildSamples int
	RegLambda       float64
	MaxBin          int
	RandomState     int
	EarlyStopping   int
	Metric          string
	Verbosity       int

	featureNames []string
	classes      []int
	nFeatures    int
	logger       log.Logger
}

// NewGBDTClassifier creates a classifier with LightGBM-style defaults.
func NewGBDTClassifier() *GBDTClassifier {
	return &GBDTClassifier{
		NumIterations:   100,
		LearningRate:    0.1,
		NumLeaves:       31,
		MaxDepth:        -1,
		MinChildSamples: 20,
		RegLambda:       0.0,
		MaxBin:          255,
		Metric:          "logloss",
		logger:          log.GetLoggerWithName("boosting.classifier"),
	}
}

// WithNumIterations sets the number of boosting rounds.
func (c *GBDTClassifier) WithNumIterations(n int) *GBDTClassifier {
	c.NumIterations = n
	return c
}

// WithLearningRate sets the shrinkage applied to each tree.
func (c *GBDTClassifier) WithLearningRate(lr float64) *GBDTClassifier {
	c.LearningRate = lr
	return c
}

// WithNumLeaves sets the maximum leaves per tree.
func (c *GBDTClassifier) WithNumLeaves(n int) *GBDTClassifier {
	c.NumLeaves = n
	return c
}

// WithMaxDepth sets the maximum tree depth; values <= 0 leave depth
// unlimited.
func (c *GBDTClassifier) WithMaxDepth(d int) *GBDTClassifier {
	c.MaxDepth = d
	return c
}

// WithMinChildSamples sets the minimum samples per leaf.
func (c *GBDTClassifier) WithMinChildSamples(n int) *GBDTClassifier {
	c.MinChildSamples = n
	return c
}

// WithRegLambda sets the L2 leaf regularization strength.
func (c *GBDTClassifier) WithRegLambda(lambda float64) *GBDTClassifier {
	c.RegLambda = lambda
	return c
}

// WithRandomState sets the seed recorded in training parameters.
func (c *GBDTClassifier) WithRandomState(seed int) *GBDTClassifier {
	c.RandomState = seed
	return c
}

// WithEarlyStopping sets the early-stopping patience used by
// FitWithValidation; 0 disables it.
func (c *GBDTClassifier) WithEarlyStopping(rounds int) *GBDTClassifier {
	c.EarlyStopping = rounds
	return c
}

// WithMetric sets the validation metric for early stopping.
func (c *GBDTClassifier) WithMetric(metric string) *GBDTClassifier {
	c.Metric = metric
	return c
}

// WithVerbosity enables periodic training logs every n iterations.
func (c *GBDTClassifier) WithVerbosity(n int) *GBDTClassifier {
	c.Verbosity = n
	return c
}

// WithFeatureNames attaches column names carried into the trained model
// for importance reports.
func (c *GBDTClassifier) WithFeatureNames(names []string) *GBDTClassifier {
	c.featureNames = append([]string(nil), names...)
	return c
}

func (c *GBDTClassifier) trainingParams(numClass int) TrainingParams {
	objective := BinaryLogistic
	if numClass > 2 {
		objective = MulticlassSoftmax
	}
	return TrainingParams{
		NumIterations: c.NumIterations,
		LearningRate:  c.LearningRate,
		NumLeaves:     c.NumLeaves,
		MaxDepth:      c.MaxDepth,
		MinDataInLeaf: c.MinChildSamples,
		Lambda:        c.RegLambda,
		MaxBin:        c.MaxBin,
		Objective:     objective,
		NumClass:      numClass,
		Seed:          c.RandomState,
		Verbosity:     c.Verbosity,
		EarlyStopping: c.EarlyStopping,
		Metric:        c.Metric,
	}
}

// Fit trains the ensemble on X and integer labels y (a column vector).
func (c *GBDTClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GBDTClassifier.Fit")

	targets, classes, err := c.indexTargets(X, y, nil)
	if err != nil {
		return err
	}

	trainer := NewTrainer(c.trainingParams(len(classes)))
	if err := trainer.Fit(X, mat.NewDense(len(targets), 1, targets)); err != nil {
		return err
	}

	c.finishFit(trainer, classes, X)
	return nil
}

// FitWithValidation trains with a held-out set for early stopping.
// Validation labels must all appear in the training labels.
func (c *GBDTClassifier) FitWithValidation(X, y, XVal, yVal mat.Matrix) (err error) {
	defer errors.Recover(&err, "GBDTClassifier.FitWithValidation")

	targets, classes, err := c.indexTargets(X, y, nil)
	if err != nil {
		return err
	}
	valTargets, _, err := c.indexTargets(XVal, yVal, classes)
	if err != nil {
		return err
	}

	trainer := NewTrainer(c.trainingParams(len(classes)))
	err = trainer.FitWithValidation(
		X, mat.NewDense(len(targets), 1, targets),
		XVal, mat.NewDense(len(valTargets), 1, valTargets),
	)
	if err != nil {
		return err
	}

	c.finishFit(trainer, classes, X)
	return nil
}

// indexTargets validates shapes and maps labels to class indices. When
// classes is nil the class set is extracted from y; otherwise labels
// outside the given set are rejected.
func (c *GBDTClassifier) indexTargets(X, y mat.Matrix, classes []int) ([]float64, []int, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if yCols != 1 {
		return nil, nil, errors.NewDimensionError("GBDTClassifier.Fit", 1, yCols, 1)
	}
	if rows != yRows {
		return nil, nil, errors.NewDimensionError("GBDTClassifier.Fit", rows, yRows, 0)
	}
	if rows == 0 || cols == 0 {
		return nil, nil, errors.NewValueError("GBDTClassifier.Fit", "training data is empty")
	}

	labels := make([]int, rows)
	for i := 0; i < rows; i++ {
		v := y.At(i, 0)
		label := int(v)
		if float64(label) != v {
			return nil, nil, errors.NewValidationError("y",
				"class labels must be integers", v)
		}
		labels[i] = label
	}

	if classes == nil {
		seen := make(map[int]bool)
		for _, label := range labels {
			seen[label] = true
		}
		classes = make([]int, 0, len(seen))
		for label := range seen {
			classes = append(classes, label)
		}
		sort.Ints(classes)
		if len(classes) < 2 {
			return nil, nil, errors.NewValueError("GBDTClassifier.Fit",
				"training data contains a single class")
		}
	}

	index := make(map[int]int, len(classes))
	for i, label := range classes {
		index[label] = i
	}
	targets := make([]float64, rows)
	for i, label := range labels {
		idx, ok := index[label]
		if !ok {
			return nil, nil, errors.NewValidationError("y",
				"label not present in training classes", label)
		}
		targets[i] = float64(idx)
	}
	return targets, classes, nil
}

func (c *GBDTClassifier) finishFit(trainer *Trainer, classes []int, X mat.Matrix) {
	rows, cols := X.Dims()

	c.Model = trainer.GetModel()
	c.Model.FeatureNames = append([]string(nil), c.featureNames...)
	c.classes = classes
	c.nFeatures = cols
	c.SetFitted()

	c.logger.Info("Training completed",
		log.ModelNameKey, "GBDTClassifier",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"classes", len(classes),
		"trees", len(c.Model.Trees),
	)
}

// Predict returns the predicted class label for each row of X.
func (c *GBDTClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GBDTClassifier", "Predict")
	}
	rows, cols := X.Dims()
	if cols != c.nFeatures {
		return nil, errors.NewDimensionError("GBDTClassifier.Predict", c.nFeatures, cols, 1)
	}

	out := mat.NewDense(rows, 1, nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		idx := argmaxRaw(c.Model.RawSingle(features, -1))
		out.Set(i, 0, float64(c.classes[idx]))
	}
	return out, nil
}

// PredictProba returns an nSamples x nClasses matrix of class
// probabilities, columns ordered like Classes.
func (c *GBDTClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GBDTClassifier", "PredictProba")
	}
	rows, cols := X.Dims()
	if cols != c.nFeatures {
		return nil, errors.NewDimensionError("GBDTClassifier.PredictProba", c.nFeatures, cols, 1)
	}

	out := mat.NewDense(rows, len(c.classes), nil)
	features := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(features, i, X)
		probs := c.Model.PredictSingle(features, -1)
		if len(probs) == 1 {
			out.Set(i, 0, 1-probs[0])
			out.Set(i, 1, probs[0])
			continue
		}
		out.SetRow(i, probs)
	}
	return out, nil
}

// Score returns mean accuracy on the given test data.
func (c *GBDTClassifier) Score(X, y mat.Matrix) (float64, error) {
	preds, err := c.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, preds)
}

// Classes returns the class labels seen during fitting, ascending.
func (c *GBDTClassifier) Classes() []int {
	out := make([]int, len(c.classes))
	copy(out, c.classes)
	return out
}

// NClasses returns the number of classes.
func (c *GBDTClassifier) NClasses() int { return len(c.classes) }

// FeatureImportance returns normalized per-feature importance, either
// "gain" or "split".
func (c *GBDTClassifier) FeatureImportance(importanceType string) ([]float64, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("GBDTClassifier", "FeatureImportance")
	}
	if importanceType != "gain" && importanceType != "split" {
		return nil, errors.NewValidationError("importance_type",
			"must be 'gain' or 'split'", importanceType)
	}
	return c.Model.GetFeatureImportance(importanceType), nil
}

// GetParams returns the classifier's hyperparameters.
func (c *GBDTClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_iterations":    c.NumIterations,
		"learning_rate":     c.LearningRate,
		"num_leaves":        c.NumLeaves,
		"max_depth":         c.MaxDepth,
		"min_child_samples": c.MinChildSamples,
		"reg_lambda":        c.RegLambda,
		"max_bin":           c.MaxBin,
		"random_state":      c.RandomState,
		"early_stopping":    c.EarlyStopping,
		"metric":            c.Metric,
	}
}

// SetParams updates hyperparameters from a map, rejecting unknown keys.
func (c *GBDTClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "num_iterations":
			if v, ok := value.(int); ok {
				c.NumIterations = v
			}
		case "learning_rate":
			if v, ok := value.(float64); ok {
				c.LearningRate = v
			}
		case "num_leaves":
			if v, ok := value.(int); ok {
				c.NumLeaves = v
			}
		case "max_depth":
			if v, ok := value.(int); ok {
				c.MaxDepth = v
			}
		case "min_child_samples":
			if v, ok := value.(int); ok {
				c.MinChildSamples = v
			}
		case "reg_lambda":
			if v, ok := value.(float64); ok {
				c.RegLambda = v
			}
		case "max_bin":
			if v, ok := value.(int); ok {
				c.MaxBin = v
			}
		case "random_state":
			if v, ok := value.(int); ok {
				c.RandomState = v
			}
		case "early_stopping":
			if v, ok := value.(int); ok {
				c.EarlyStopping = v
			}
		case "metric":
			if v, ok := value.(string); ok {
				c.Metric = v
			}
		default:
			return errors.NewValidationError("params",
				"unknown parameter", key)
		}
	}
	return nil
}
