package boosting

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/glassbox-ml/glassbox/metrics"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// CVFold is one train/test split of sample indices.
type CVFold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits samples into k consecutive folds, optionally shuffled with
// a seeded generator so splits are reproducible.
type KFold struct {
	NumFolds int
	Shuffle  bool
	Seed     int64
}

// NewKFold creates a k-fold splitter.
func NewKFold(numFolds int, shuffle bool, seed int64) *KFold {
	return &KFold{NumFolds: numFolds, Shuffle: shuffle, Seed: seed}
}

// Split partitions nSamples indices into folds. Each index appears in
// exactly one test set.
func (k *KFold) Split(nSamples int) ([]CVFold, error) {
	if k.NumFolds < 2 {
		return nil, errors.NewValidationError("n_folds",
			"cross validation requires at least 2 folds", k.NumFolds)
	}
	if nSamples < k.NumFolds {
		return nil, errors.NewValueError("KFold.Split",
			"more folds than samples")
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if k.Shuffle {
		rng := rand.New(rand.NewPCG(uint64(k.Seed), uint64(k.Seed)))
		rng.Shuffle(nSamples, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]CVFold, k.NumFolds)
	foldSize := nSamples / k.NumFolds
	remainder := nSamples % k.NumFolds

	start := 0
	for f := 0; f < k.NumFolds; f++ {
		size := foldSize
		if f < remainder {
			size++
		}
		test := indices[start : start+size]
		train := make([]int, 0, nSamples-size)
		train = append(train, indices[:start]...)
		train = append(train, indices[start+size:]...)

		folds[f] = newFold(train, test)
		start += size
	}
	return folds, nil
}

// StratifiedKFold splits samples so each fold preserves the overall class
// proportions. Targets must be class indices.
type StratifiedKFold struct {
	NumFolds int
	Shuffle  bool
	Seed     int64
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(numFolds int, shuffle bool, seed int64) *StratifiedKFold {
	return &StratifiedKFold{NumFolds: numFolds, Shuffle: shuffle, Seed: seed}
}

// Split partitions the samples behind y into folds, distributing each
// class round-robin so every fold sees roughly the class balance of the
// whole set.
func (s *StratifiedKFold) Split(y []float64) ([]CVFold, error) {
	if s.NumFolds < 2 {
		return nil, errors.NewValidationError("n_folds",
			"cross validation requires at least 2 folds", s.NumFolds)
	}
	if len(y) < s.NumFolds {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			"more folds than samples")
	}

	byClass := make(map[int][]int)
	for i, v := range y {
		byClass[int(v)] = append(byClass[int(v)], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	rng := rand.New(rand.NewPCG(uint64(s.Seed), uint64(s.Seed)))
	testSets := make([][]int, s.NumFolds)
	for _, c := range classes {
		group := byClass[c]
		if len(group) < s.NumFolds {
			return nil, errors.NewValueError("StratifiedKFold.Split",
				"a class has fewer samples than folds")
		}
		if s.Shuffle {
			rng.Shuffle(len(group), func(i, j int) {
				group[i], group[j] = group[j], group[i]
			})
		}
		for i, idx := range group {
			f := i % s.NumFolds
			testSets[f] = append(testSets[f], idx)
		}
	}

	folds := make([]CVFold, s.NumFolds)
	for f := range folds {
		inTest := make(map[int]bool, len(testSets[f]))
		for _, idx := range testSets[f] {
			inTest[idx] = true
		}
		train := make([]int, 0, len(y)-len(testSets[f]))
		for i := range y {
			if !inTest[i] {
				train = append(train, i)
			}
		}
		folds[f] = newFold(train, testSets[f])
	}
	return folds, nil
}

// newFold copies and sorts both index sets so fold contents are stable
// regardless of construction order.
func newFold(train, test []int) CVFold {
	fold := CVFold{
		TrainIndices: append([]int(nil), train...),
		TestIndices:  append([]int(nil), test...),
	}
	sort.Ints(fold.TrainIndices)
	sort.Ints(fold.TestIndices)
	return fold
}

// CVResult aggregates cross-validation outcomes per fold.
type CVResult struct {
	TrainScores []float64
	TestScores  []float64
	FitTimes    []time.Duration
	ScoreTimes  []time.Duration
	Models      []*Model
}

// GetMeanScore returns the mean test score across folds.
func (r *CVResult) GetMeanScore() float64 {
	return stat.Mean(r.TestScores, nil)
}

// GetStdScore returns the standard deviation of test scores across folds.
func (r *CVResult) GetStdScore() float64 {
	if len(r.TestScores) < 2 {
		return 0
	}
	return stat.StdDev(r.TestScores, nil)
}

// CrossValidate trains one model per fold in parallel and scores it on the
// fold's train and test subsets. Targets must already be class indices
// (0/1 for binary objectives). metric defaults to accuracy.
func CrossValidate(params TrainingParams, X, y mat.Matrix, folds []CVFold, metric string) (*CVResult, error) {
	if len(folds) == 0 {
		return nil, errors.NewValueError("CrossValidate", "no folds provided")
	}
	if metric == "" {
		metric = "accuracy"
	}

	rows, _ := X.Dims()
	dense := mat.DenseCopyOf(X)
	targets := make([]float64, rows)
	for i := 0; i < rows; i++ {
		targets[i] = y.At(i, 0)
	}

	result := &CVResult{
		TrainScores: make([]float64, len(folds)),
		TestScores:  make([]float64, len(folds)),
		FitTimes:    make([]time.Duration, len(folds)),
		ScoreTimes:  make([]time.Duration, len(folds)),
		Models:      make([]*Model, len(folds)),
	}

	var g errgroup.Group
	for f := range folds {
		g.Go(func() error {
			fold := folds[f]
			trainX, trainY := subsetSamples(dense, targets, fold.TrainIndices)
			testX, testY := subsetSamples(dense, targets, fold.TestIndices)

			fitStart := time.Now()
			trainer := NewTrainer(params)
			if err := trainer.Fit(trainX, mat.NewDense(len(trainY), 1, trainY)); err != nil {
				return errors.Wrapf(err, "glassbox: cross validation fold %d", f)
			}
			result.FitTimes[f] = time.Since(fitStart)
			model := trainer.GetModel()
			result.Models[f] = model

			scoreStart := time.Now()
			trainScore, err := scoreModel(model, trainX, trainY, metric)
			if err != nil {
				return err
			}
			testScore, err := scoreModel(model, testX, testY, metric)
			if err != nil {
				return err
			}
			result.ScoreTimes[f] = time.Since(scoreStart)

			result.TrainScores[f] = trainScore
			result.TestScores[f] = testScore
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// subsetSamples extracts the rows of X and y at the given indices.
func subsetSamples(X *mat.Dense, y []float64, indices []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	sub := mat.NewDense(len(indices), cols, nil)
	labels := make([]float64, len(indices))
	for i, idx := range indices {
		sub.SetRow(i, X.RawRowView(idx))
		labels[i] = y[idx]
	}
	return sub, labels
}

// scoreModel evaluates a trained ensemble on index-space targets.
func scoreModel(m *Model, X *mat.Dense, y []float64, metric string) (float64, error) {
	rows, cols := X.Dims()
	features := make([]float64, cols)

	switch metric {
	case "accuracy":
		correct := 0
		for i := 0; i < rows; i++ {
			mat.Row(features, i, X)
			if argmaxRaw(m.RawSingle(features, -1)) == int(y[i]) {
				correct++
			}
		}
		return float64(correct) / float64(rows), nil

	case "logloss":
		if m.numOutputs() == 1 {
			probs := make([]float64, rows)
			for i := 0; i < rows; i++ {
				mat.Row(features, i, X)
				probs[i] = m.PredictSingle(features, -1)[0]
			}
			return metrics.BinaryLogLoss(mat.NewVecDense(rows, y), mat.NewVecDense(rows, probs))
		}
		total := 0.0
		for i := 0; i < rows; i++ {
			mat.Row(features, i, X)
			probs := m.PredictSingle(features, -1)
			p := errors.ClipValue(probs[int(y[i])], probEps, 1-probEps)
			total += -math.Log(p)
		}
		return total / float64(rows), nil

	case "auc":
		if m.numOutputs() != 1 {
			return 0, errors.NewValidationError("metric",
				"auc requires a binary model", metric)
		}
		probs := make([]float64, rows)
		for i := 0; i < rows; i++ {
			mat.Row(features, i, X)
			probs[i] = m.PredictSingle(features, -1)[0]
		}
		return metrics.AUC(mat.NewVecDense(rows, y), mat.NewVecDense(rows, probs))

	default:
		return 0, errors.NewValidationError("metric",
			"unsupported cross validation metric", metric)
	}
}
