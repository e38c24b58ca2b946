package main

import (
	"context"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/dashboard"
	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/explain"
	"github.com/glassbox-ml/glassbox/linear"
	"github.com/glassbox-ml/glassbox/pipeline"
)

const titanicLabel = "survived"

const flagFFill = "ffill"

func newTitanicCommand() *cli.Command {
	return &cli.Command{
		Name:  "titanic",
		Usage: "train logistic regression on the Titanic survival table and explain it",
		Flags: append(flowFlags(), &cli.BoolFlag{
			Name:  flagFFill,
			Usage: "forward-fill missing cells before the pipeline runs",
		}),
		Action: runTitanic,
	}
}

func runTitanic(ctx context.Context, cmd *cli.Command) error {
	table, err := loadTable(ctx, cmd, dataset.LoadTitanic)
	if err != nil {
		return err
	}
	if cmd.Bool(flagFFill) {
		if table, err = table.FillForward(); err != nil {
			return err
		}
	}

	features, y, err := table.Features(titanicLabel)
	if err != nil {
		return err
	}
	bindings, err := loadBindings(cmd, pipeline.TitanicBindings)
	if err != nil {
		return err
	}

	seed := int64(cmd.Int(flagSeed))
	train, test, yTrain, yTest, err := dataset.TrainTestSplit(
		features, y, cmd.Float(flagTestSize), uint64(seed))
	if err != nil {
		return err
	}

	// Binding validation happens here, before any model sees data.
	ct := pipeline.NewColumnTransformer(bindings...)
	XTrain, err := ct.FitTransform(train)
	if err != nil {
		return err
	}
	XTest, err := ct.Transform(test)
	if err != nil {
		return err
	}

	lr := linear.NewLogisticRegression(linear.WithLRRandomState(seed))
	if err := lr.Fit(XTrain, mat.NewDense(len(yTrain), 1, yTrain)); err != nil {
		return err
	}

	runMetrics, err := evaluate(lr, XTest, yTest)
	if err != nil {
		return err
	}

	modelExplainer, err := explain.NewLinearExplainer(lr, XTrain)
	if err != nil {
		return err
	}
	pe, err := explain.NewPipelineExplainer(ct.Mapping(), modelExplainer, lr.Classes())
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
		if err := model.SaveModel(lr, path); err != nil {
			return err
		}
	}

	payload := dashboard.NewPayload(dashboard.ModelInfo{
		Name:               "titanic-survival",
		Kind:               "logistic_regression",
		Classes:            lr.Classes(),
		RawFeatures:        ct.Mapping().NumRaw(),
		EngineeredFeatures: ct.Mapping().NumEngineered(),
		Params:             lr.GetParams(),
	})
	payload.Global = global
	payload.Locals = []*explain.LocalExplanation{local}
	payload.Metrics = runMetrics
	payload.ColumnNames = ct.Mapping().EngineeredNames()
	payload.EvalRows = matrixRows(evalX)

	return emit(cmd, &flowOutput{payload: payload, global: global, local: local})
}
