package dataset

import (
	"bytes"

	_ "embed"

	"github.com/glassbox-ml/glassbox/pkg/log"
)

// Bundled reference samples. These are compact excerpts for offline runs and
// tests; full datasets come from FetchCSV.
var (
	//go:embed data/titanic.csv
	titanicCSV []byte

	//go:embed data/breast_cancer.csv
	breastCancerCSV []byte
)

// LoadTitanic returns the bundled Titanic survival sample. Label column:
// "survived" (0/1). The sample keeps the dataset's characteristic missing
// cells in "age" and "embarked".
func LoadTitanic() (*Table, error) {
	t, err := ParseCSV(bytes.NewReader(titanicCSV))
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("dataset").Debug("bundled dataset loaded",
		log.DatasetKey, "titanic",
		log.SamplesKey, t.NumRows(),
	)
	return t, nil
}

// LoadBreastCancer returns the bundled Breast Cancer Wisconsin sample
// (mean-value features). Label column: "diagnosis" (B benign / M malignant).
func LoadBreastCancer() (*Table, error) {
	t, err := ParseCSV(bytes.NewReader(breastCancerCSV))
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("dataset").Debug("bundled dataset loaded",
		log.DatasetKey, "breast_cancer",
		log.SamplesKey, t.NumRows(),
	)
	return t, nil
}
