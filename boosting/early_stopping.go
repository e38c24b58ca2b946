package boosting

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/metrics"
	"github.com/glassbox-ml/glassbox/pkg/errors"
	"github.com/glassbox-ml/glassbox/pkg/log"
)

// EarlyStopping tracks a validation metric across boosting iterations and
// signals when it has stopped improving.
type EarlyStopping struct {
	Rounds          int
	Metric          string
	Minimize        bool
	BestScore       float64
	BestIteration   int
	RoundsNoImprove int
	Enabled         bool
}

// NewEarlyStopping creates an early-stopping monitor. rounds <= 0 disables
// it. The improvement direction is inferred from the metric name: accuracy
// and auc are maximized, everything else is minimized.
func NewEarlyStopping(rounds int, metric string) *EarlyStopping {
	minimize := true
	switch metric {
	case "accuracy", "auc":
		minimize = false
	}

	es := &EarlyStopping{
		Rounds:   rounds,
		Metric:   metric,
		Minimize: minimize,
		Enabled:  rounds > 0,
	}
	es.Reset()
	return es
}

// Reset clears the monitor for a new training run.
func (es *EarlyStopping) Reset() {
	if es.Minimize {
		es.BestScore = math.Inf(1)
	} else {
		es.BestScore = math.Inf(-1)
	}
	es.BestIteration = 0
	es.RoundsNoImprove = 0
}

// Update records the validation score for an iteration and reports whether
// training should stop.
func (es *EarlyStopping) Update(score float64, iteration int) bool {
	if !es.Enabled {
		return false
	}

	improved := score < es.BestScore
	if !es.Minimize {
		improved = score > es.BestScore
	}

	if improved {
		es.BestScore = score
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
		return false
	}

	es.RoundsNoImprove++
	return es.RoundsNoImprove >= es.Rounds
}

// FitWithValidation trains like Fit while scoring a held-out set each
// iteration. When the early-stopping budget is exhausted the ensemble is
// truncated to the best iteration, so GetModel returns the best model
// rather than the last one.
func (t *Trainer) FitWithValidation(X, y, XVal, yVal mat.Matrix) (err error) {
	defer errors.Recover(&err, "Trainer.FitWithValidation")

	if err := t.initialize(X, y); err != nil {
		return err
	}

	valRows, valCols := XVal.Dims()
	yValRows, yValCols := yVal.Dims()
	if valCols != t.nFeatures {
		return errors.NewDimensionError("Trainer.FitWithValidation", t.nFeatures, valCols, 1)
	}
	if yValCols != 1 || yValRows != valRows {
		return errors.NewDimensionError("Trainer.FitWithValidation", valRows, yValRows, 0)
	}
	if valRows == 0 {
		return errors.NewValueError("Trainer.FitWithValidation", "validation data is empty")
	}

	valX := mat.DenseCopyOf(XVal)
	valY := make([]float64, valRows)
	for i := 0; i < valRows; i++ {
		valY[i] = yVal.At(i, 0)
	}

	outputs := t.objective.NumOutputs()
	if t.params.Metric == "auc" && outputs != 1 {
		return errors.NewValidationError("metric",
			"auc early stopping requires a binary objective", t.params.Metric)
	}

	valRaw := make([][]float64, valRows)
	for i := range valRaw {
		valRaw[i] = make([]float64, len(t.initScores))
		copy(valRaw[i], t.initScores)
	}

	es := NewEarlyStopping(t.params.EarlyStopping, t.params.Metric)
	for iter := 0; iter < t.params.NumIterations; iter++ {
		t.iteration = iter
		if err := t.callbacks.BeforeIteration(iter); err != nil {
			return err
		}

		if err := t.boostRound(outputs, valX, valRaw); err != nil {
			return err
		}

		trainLoss := t.trainLoss()
		t.evalHistory = append(t.evalHistory, trainLoss)
		valScore, err := t.validationScore(valRaw, valY)
		if err != nil {
			return err
		}

		if t.params.Verbosity > 0 && (iter+1)%t.params.Verbosity == 0 {
			t.logger.Info("Boosting iteration",
				log.IterationKey, iter+1,
				log.LossKey, trainLoss,
				"valid_"+t.params.Metric, valScore,
			)
		}

		results := map[string]float64{"train": trainLoss, "valid": valScore}
		if err := t.callbacks.AfterIteration(iter, results); err != nil {
			return err
		}
		if t.callbacks.ShouldStop() || t.stopTraining {
			break
		}

		if es.Update(valScore, iter) {
			t.logger.Info("Early stopping",
				log.IterationKey, iter+1,
				"best_iteration", es.BestIteration+1,
				"best_"+t.params.Metric, es.BestScore,
			)
			break
		}
	}

	if es.Enabled && es.BestIteration < t.iteration {
		t.trees = t.trees[:(es.BestIteration+1)*outputs]
	}
	t.bestIteration = es.BestIteration
	return nil
}

// validationScore evaluates the configured metric at the current
// validation raw scores.
func (t *Trainer) validationScore(valRaw [][]float64, valY []float64) (float64, error) {
	n := len(valY)
	yTrue := mat.NewVecDense(n, valY)

	switch t.params.Metric {
	case "logloss":
		if t.objective.NumOutputs() == 1 {
			probs := make([]float64, n)
			for i, raw := range valRaw {
				probs[i] = sigmoid(raw[0])
			}
			return metrics.BinaryLogLoss(yTrue, mat.NewVecDense(n, probs))
		}
		total := 0.0
		for i, raw := range valRaw {
			total += t.objective.Loss(raw, valY[i])
		}
		return total / float64(n), nil

	case "accuracy":
		preds := make([]float64, n)
		for i, raw := range valRaw {
			preds[i] = float64(argmaxRaw(raw))
		}
		return metrics.Accuracy(yTrue, mat.NewVecDense(n, preds))

	case "auc":
		probs := make([]float64, n)
		for i, raw := range valRaw {
			probs[i] = sigmoid(raw[0])
		}
		return metrics.AUC(yTrue, mat.NewVecDense(n, probs))

	default:
		return 0, errors.NewValidationError("metric",
			"unsupported validation metric", t.params.Metric)
	}
}

// argmaxRaw returns the predicted class index for one raw-score vector:
// the sign threshold for binary scores, the arg max otherwise.
func argmaxRaw(raw []float64) int {
	if len(raw) == 1 {
		if raw[0] >= 0 {
			return 1
		}
		return 0
	}

	best := 0
	for c := 1; c < len(raw); c++ {
		if raw[c] > raw[best] {
			best = c
		}
	}
	return best
}
