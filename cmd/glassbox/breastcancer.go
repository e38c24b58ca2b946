package main

import (
	"context"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/boosting"
	"github.com/glassbox-ml/glassbox/dashboard"
	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/explain"
	"github.com/glassbox-ml/glassbox/pipeline"
)

const breastCancerLabel = "diagnosis"

const (
	flagIterations    = "iterations"
	flagLearningRate  = "learning-rate"
	flagNumLeaves     = "num-leaves"
	flagMinChild      = "min-child"
	flagEarlyStopping = "early-stopping"
	flagCV            = "cv"
)

func newBreastCancerCommand() *cli.Command {
	return &cli.Command{
		Name:  "breastcancer",
		Usage: "train gradient-boosted trees on the Breast Cancer Wisconsin table and explain them",
		Flags: append(flowFlags(),
			&cli.IntFlag{
				Name:  flagIterations,
				Usage: "boosting iterations",
				Value: 100,
			},
			&cli.FloatFlag{
				Name:  flagLearningRate,
				Usage: "shrinkage applied to each tree",
				Value: 0.1,
			},
			&cli.IntFlag{
				Name:  flagNumLeaves,
				Usage: "maximum leaves per tree",
				Value: 31,
			},
			&cli.IntFlag{
				Name:  flagMinChild,
				Usage: "minimum rows per leaf",
				Value: 5,
			},
			&cli.IntFlag{
				Name:  flagEarlyStopping,
				Usage: "stop after this many rounds without validation improvement (0 = off)",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  flagCV,
				Usage: "stratified cross-validation folds on the training split (0 = off)",
				Value: 0,
			},
		),
		Action: runBreastCancer,
	}
}

func runBreastCancer(ctx context.Context, cmd *cli.Command) error {
	table, err := loadTable(ctx, cmd, dataset.LoadBreastCancer)
	if err != nil {
		return err
	}

	features, y, err := table.Features(breastCancerLabel)
	if err != nil {
		return err
	}
	bindings, err := loadBindings(cmd, pipeline.BreastCancerBindings)
	if err != nil {
		return err
	}

	seed := int64(cmd.Int(flagSeed))
	train, test, yTrain, yTest, err := dataset.TrainTestSplit(
		features, y, cmd.Float(flagTestSize), uint64(seed))
	if err != nil {
		return err
	}

	ct := pipeline.NewColumnTransformer(bindings...)
	XTrain, err := ct.FitTransform(train)
	if err != nil {
		return err
	}
	XTest, err := ct.Transform(test)
	if err != nil {
		return err
	}

	iterations := int(cmd.Int(flagIterations))
	learningRate := cmd.Float(flagLearningRate)
	numLeaves := int(cmd.Int(flagNumLeaves))
	minChild := int(cmd.Int(flagMinChild))
	earlyStopping := int(cmd.Int(flagEarlyStopping))

	runMetrics := make(map[string]float64)
	if folds := int(cmd.Int(flagCV)); folds >= 2 {
		cvMean, cvStd, err := crossValidate(XTrain, yTrain, folds, seed, boosting.TrainingParams{
			NumIterations: iterations,
			LearningRate:  learningRate,
			NumLeaves:     numLeaves,
			MinDataInLeaf: minChild,
			Seed:          int(seed),
		})
		if err != nil {
			return err
		}
		runMetrics["cv_accuracy_mean"] = cvMean
		runMetrics["cv_accuracy_std"] = cvStd
	}

	clf := boosting.NewGBDTClassifier().
		WithNumIterations(iterations).
		WithLearningRate(learningRate).
		WithNumLeaves(numLeaves).
		WithMinChildSamples(minChild).
		WithRandomState(int(seed)).
		WithFeatureNames(ct.Mapping().EngineeredNames())

	yTrainMat := mat.NewDense(len(yTrain), 1, yTrain)
	if earlyStopping > 0 {
		clf = clf.WithEarlyStopping(earlyStopping).WithMetric("logloss")
		// Carve a validation slice out of the training split so the test
		// set never steers training.
		subTrain, val, ySubTrain, yVal, err := splitMatrix(XTrain, yTrain, 0.2, uint64(seed)+1)
		if err != nil {
			return err
		}
		err = clf.FitWithValidation(subTrain, mat.NewDense(len(ySubTrain), 1, ySubTrain),
			val, mat.NewDense(len(yVal), 1, yVal))
		if err != nil {
			return err
		}
	} else {
		if err := clf.Fit(XTrain, yTrainMat); err != nil {
			return err
		}
	}

	testMetrics, err := evaluate(clf, XTest, yTest)
	if err != nil {
		return err
	}
	for name, value := range testMetrics {
		runMetrics[name] = value
	}

	modelExplainer, err := explain.NewTreeExplainer(clf.Model)
	if err != nil {
		return err
	}
	pe, err := explain.NewPipelineExplainer(ct.Mapping(), modelExplainer, clf.Classes())
	if err != nil {
		return err
	}

	evalX := evalSubset(XTest, int(cmd.Int(flagEvalRows)))
	global, err := pe.Global(evalX)
	if err != nil {
		return err
	}

	row := int(cmd.Int(flagRow))
	nTest, _ := XTest.Dims()
	if err := checkRow(row, nTest); err != nil {
		return err
	}
	local, err := pe.Local(XTest.RawRowView(row), int(cmd.Int(flagClass)))
	if err != nil {
		return err
	}

	if path := cmd.String(flagModelOut); path != "" {
		if err := clf.Model.SaveJSON(path); err != nil {
			return err
		}
	}

	labels, err := table.LabelClasses(breastCancerLabel)
	if err != nil {
		return err
	}
	params := clf.GetParams()
	if len(labels) > 0 {
		params["label_classes"] = labels
	}

	payload := dashboard.NewPayload(dashboard.ModelInfo{
		Name:               "breast-cancer-diagnosis",
		Kind:               "gbdt",
		Classes:            clf.Classes(),
		RawFeatures:        ct.Mapping().NumRaw(),
		EngineeredFeatures: ct.Mapping().NumEngineered(),
		Params:             params,
	})
	payload.Global = global
	payload.Locals = []*explain.LocalExplanation{local}
	payload.Metrics = runMetrics
	payload.ColumnNames = ct.Mapping().EngineeredNames()
	payload.EvalRows = matrixRows(evalX)

	return emit(cmd, &flowOutput{payload: payload, global: global, local: local})
}

// crossValidate reports mean and standard deviation of fold accuracy.
func crossValidate(X *mat.Dense, y []float64, numFolds int, seed int64, params boosting.TrainingParams) (mean, std float64, err error) {
	folds, err := boosting.NewStratifiedKFold(numFolds, true, seed).Split(y)
	if err != nil {
		return 0, 0, err
	}
	result, err := boosting.CrossValidate(params, X, mat.NewDense(len(y), 1, y), folds, "accuracy")
	if err != nil {
		return 0, 0, err
	}
	return result.GetMeanScore(), result.GetStdScore(), nil
}

// splitMatrix carves a validation fraction off an engineered matrix,
// mirroring dataset.TrainTestSplit's tail split under a seeded shuffle.
func splitMatrix(X *mat.Dense, y []float64, fraction float64, seed uint64) (train, val *mat.Dense, yTrain, yVal []float64, err error) {
	folds, err := boosting.NewKFold(int(1/fraction), true, int64(seed)).Split(len(y))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	_, cols := X.Dims()

	take := func(indices []int) (*mat.Dense, []float64) {
		M := mat.NewDense(len(indices), cols, nil)
		labels := make([]float64, len(indices))
		for i, idx := range indices {
			M.SetRow(i, X.RawRowView(idx))
			labels[i] = y[idx]
		}
		return M, labels
	}

	train, yTrain = take(folds[0].TrainIndices)
	val, yVal = take(folds[0].TestIndices)
	return train, val, yTrain, yVal, nil
}
