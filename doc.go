// Package glassbox trains small tabular classifiers and explains them in
// the vocabulary of the original table.
//
// Models consume an engineered matrix (imputed, scaled, one-hot expanded),
// but the people reading an explanation think in raw columns. Glassbox
// keeps the mapping between the two: column transformation bindings declare
// how each raw column becomes model input, and the explainers fold
// per-column attributions back onto the raw columns they came from. The
// result is additive: base value plus contributions reproduces the model's
// raw score exactly.
//
// # Installation
//
//	go get github.com/glassbox-ml/glassbox
//
// # Quick Start
//
// Train a logistic regression on the bundled Titanic sample and rank the
// raw columns by importance:
//
//	table, _ := dataset.LoadTitanic()
//	features, y, _ := table.Features("survived")
//	train, test, yTrain, _, _ := dataset.TrainTestSplit(features, y, 0.2, 7)
//
//	ct := pipeline.NewColumnTransformer(pipeline.TitanicBindings()...)
//	XTrain, _ := ct.FitTransform(train)
//	XTest, _ := ct.Transform(test)
//
//	clf := linear.NewLogisticRegression()
//	_ = clf.Fit(XTrain, mat.NewDense(len(yTrain), 1, yTrain))
//
//	me, _ := explain.NewLinearExplainer(clf, XTrain)
//	exp, _ := explain.NewPipelineExplainer(ct.Mapping(), me, clf.Classes())
//	global, _ := exp.Global(XTest)
//	for _, f := range global.Features {
//	    fmt.Printf("%-10s %.4f\n", f.Name, f.Value)
//	}
//
// See examples/quickstart for the runnable version.
//
// # Packages
//
//   - dataset: CSV parsing with type inference, bundled samples, splits
//   - pipeline: transformation bindings, ColumnTransformer, FeatureMapping
//   - linear: logistic regression
//   - boosting: gradient-boosted decision trees with cross-validation
//   - explain: exact additive attributions, folded to raw columns
//   - dashboard: payload, plot and report artifacts for external dashboards
//   - metrics: evaluation metrics
//   - preprocessing: scalers the pipeline builds on
//
// Binding configuration is validated before anything is fitted: every
// feature column appears in exactly one binding, categorical columns
// one-hot to numeric output, and columns with missing cells carry an
// explicit impute step. Cells are never silently dropped.
//
// The command line entry point lives in cmd/glassbox; it runs both
// reference flows end to end and emits text, JSON or YAML reports.
package glassbox
