package pipeline

import (
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// specFile is the YAML document shape for a binding set:
//
//	bindings:
//	  - name: numeric
//	    columns: [age, fare]
//	    steps:
//	      - kind: impute
//	        strategy: median
//	      - kind: scale
//	        strategy: standard
//	  - name: embarked
//	    columns: [embarked]
//	    steps:
//	      - kind: impute
//	        strategy: most_frequent
//	      - kind: onehot
type specFile struct {
	Bindings []Binding `yaml:"bindings"`
}

// LoadSpec decodes a binding set from YAML. Unknown fields are rejected so a
// typo fails here instead of silently fitting a different pipeline. Table
// dependent checks still happen in Validate at Fit time.
func LoadSpec(r io.Reader) ([]Binding, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f specFile
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "glassbox: decoding binding spec")
	}
	if len(f.Bindings) == 0 {
		return nil, errors.NewValidationError("bindings", "spec declares no bindings", nil)
	}
	for _, b := range f.Bindings {
		if err := validateSteps(b); err != nil {
			return nil, err
		}
	}
	return f.Bindings, nil
}

// LoadSpecFile reads a binding set from a YAML file.
func LoadSpecFile(path string) ([]Binding, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "glassbox: opening binding spec %s", path)
	}
	defer func() { _ = f.Close() }()
	return LoadSpec(f)
}

// TitanicBindings is the reference binding set for the bundled Titanic
// sample: median-imputed scaled numerics, mode-imputed one-hot embarkation
// port, and one-hot sex and passenger class.
func TitanicBindings() []Binding {
	return []Binding{
		{
			Name:    "numeric",
			Columns: []string{"age", "fare", "sibsp", "parch"},
			Steps:   []StepSpec{Impute("median"), Scale("standard")},
		},
		{
			Name:    "embarked",
			Columns: []string{"embarked"},
			Steps:   []StepSpec{Impute("most_frequent"), OneHot()},
		},
		{
			Name:    "sex",
			Columns: []string{"sex"},
			Steps:   []StepSpec{OneHot()},
		},
		{
			Name:    "pclass",
			Columns: []string{"pclass"},
			Steps:   []StepSpec{OneHot()},
		},
	}
}

// BreastCancerBindings is the reference binding set for the bundled Breast
// Cancer Wisconsin sample: every mean-statistic column median-imputed and
// standard-scaled.
func BreastCancerBindings() []Binding {
	return []Binding{
		{
			Name: "mean_features",
			Columns: []string{
				"radius_mean", "texture_mean", "perimeter_mean", "area_mean",
				"smoothness_mean", "compactness_mean", "concavity_mean",
				"concave_points_mean", "symmetry_mean", "fractal_dimension_mean",
			},
			Steps: []StepSpec{Impute("median"), Scale("standard")},
		},
	}
}
