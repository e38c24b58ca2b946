package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"gonum.org/v1/gonum/mat"

	"github.com/glassbox-ml/glassbox/core/model"
	"github.com/glassbox-ml/glassbox/dashboard"
	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/explain"
	"github.com/glassbox-ml/glassbox/metrics"
	"github.com/glassbox-ml/glassbox/pipeline"
)

// Flag names shared by both flows.
const (
	flagURL      = "url"
	flagSpec     = "spec"
	flagTestSize = "test-size"
	flagSeed     = "seed"
	flagEvalRows = "eval-rows"
	flagRow      = "row"
	flagClass    = "class"
	flagPlot     = "plot"
	flagPayload  = "payload"
	flagModelOut = "model-out"
)

// flowFlags builds the flag set shared by both flows. Commands get fresh
// flag instances on every construction so no parse state is ever shared.
func flowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagURL,
			Usage: "fetch the dataset CSV from this URL instead of the bundled sample",
		},
		&cli.StringFlag{
			Name:  flagSpec,
			Usage: "YAML file with column transformation bindings",
		},
		&cli.FloatFlag{
			Name:  flagTestSize,
			Usage: "held-out fraction for evaluation",
			Value: 0.2,
		},
		&cli.IntFlag{
			Name:  flagSeed,
			Usage: "random seed for the split and model initialization",
			Value: 42,
		},
		&cli.IntFlag{
			Name:  flagEvalRows,
			Usage: "test rows used for the global explanation (0 = all)",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  flagRow,
			Usage: "test row to explain locally",
			Value: 0,
		},
		&cli.IntFlag{
			Name:  flagClass,
			Usage: "class index for the local explanation (-1 = predicted)",
			Value: -1,
		},
		&cli.StringFlag{
			Name:  flagPlot,
			Usage: "write the importance chart to this file (.png, .svg, .pdf)",
		},
		&cli.StringFlag{
			Name:  flagPayload,
			Usage: "write the dashboard payload to this file (.json or .yaml)",
		},
		&cli.StringFlag{
			Name:  flagModelOut,
			Usage: "write the fitted model artifact to this file",
		},
	}
}

// flowOutput gathers everything a finished run emits.
type flowOutput struct {
	payload *dashboard.Payload
	global  *explain.GlobalExplanation
	local   *explain.LocalExplanation
}

// loadTable fetches the flow's table from --url, falling back to the
// bundled sample.
func loadTable(ctx context.Context, cmd *cli.Command, bundled func() (*dataset.Table, error)) (*dataset.Table, error) {
	if url := cmd.String(flagURL); url != "" {
		return dataset.FetchCSV(ctx, url)
	}
	return bundled()
}

// loadBindings reads a binding file, falling back to the flow's defaults.
func loadBindings(cmd *cli.Command, defaults func() []pipeline.Binding) ([]pipeline.Binding, error) {
	if path := cmd.String(flagSpec); path != "" {
		return pipeline.LoadSpecFile(path)
	}
	return defaults(), nil
}

// classificationMetrics computes the report's metric set on true and
// predicted label vectors. R² and explained variance are undefined when
// the held-out labels have no variance; those are skipped, not fatal.
func classificationMetrics(yTrue, yPred []float64) (map[string]float64, error) {
	truth := mat.NewVecDense(len(yTrue), yTrue)
	pred := mat.NewVecDense(len(yPred), yPred)

	out := make(map[string]float64)
	acc, err := metrics.Accuracy(truth, pred)
	if err != nil {
		return nil, err
	}
	out["accuracy"] = acc

	mae, err := metrics.MAE(truth, pred)
	if err != nil {
		return nil, err
	}
	out["mae"] = mae

	if r2, err := metrics.R2Score(truth, pred); err == nil {
		out["r2"] = r2
	}
	if ev, err := metrics.ExplainedVarianceScore(truth, pred); err == nil {
		out["explained_variance"] = ev
	}
	return out, nil
}

// evaluate scores a fitted classifier on the held-out split.
func evaluate(clf model.Classifier, X mat.Matrix, y []float64) (map[string]float64, error) {
	preds, err := clf.Predict(X)
	if err != nil {
		return nil, err
	}
	return classificationMetrics(y, labelSlice(preds))
}

// evalSubset returns the leading evaluation slice of the test matrix.
func evalSubset(X *mat.Dense, evalRows int) mat.Matrix {
	rows, cols := X.Dims()
	if evalRows <= 0 || evalRows >= rows {
		return X
	}
	return X.Slice(0, evalRows, 0, cols)
}

// labelSlice flattens an n x 1 label matrix.
func labelSlice(preds mat.Matrix) []float64 {
	rows, _ := preds.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = preds.At(i, 0)
	}
	return out
}

// matrixRows deep-copies matrix rows for the payload.
func matrixRows(X mat.Matrix) [][]float64 {
	rows, cols := X.Dims()
	out := make([][]float64, rows)
	for i := range out {
		row := make([]float64, cols)
		mat.Row(row, i, X)
		out[i] = row
	}
	return out
}

// checkRow validates the local-explanation row index against the test set.
func checkRow(row, nTest int) error {
	if row < 0 || row >= nTest {
		return fmt.Errorf("row %d out of range (test rows: %d)", row, nTest)
	}
	return nil
}

// emit prints the run's results in the selected format and writes the
// optional artifacts.
func emit(cmd *cli.Command, out *flowOutput) error {
	var w io.Writer = os.Stdout
	if root := cmd.Root(); root.Writer != nil {
		w = root.Writer
	}

	switch cmd.Root().String(flagFormat) {
	case formatJSON:
		if err := out.payload.WriteJSON(w); err != nil {
			return err
		}
	case formatYAML:
		if err := out.payload.WriteYAML(w); err != nil {
			return err
		}
	default:
		if err := dashboard.RenderText(w, out.global, out.payload.Metrics); err != nil {
			return err
		}
		if out.local != nil {
			fmt.Fprintln(w)
			if err := dashboard.RenderLocalText(w, out.local); err != nil {
				return err
			}
		}
	}

	if path := cmd.String(flagPlot); path != "" {
		if err := dashboard.SaveImportancePlot(out.global, 0, path); err != nil {
			return err
		}
	}
	if path := cmd.String(flagPayload); path != "" {
		if err := out.payload.SaveFile(path); err != nil {
			return err
		}
	}
	return nil
}
