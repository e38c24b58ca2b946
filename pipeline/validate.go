package pipeline

import (
	"fmt"

	"github.com/glassbox-ml/glassbox/dataset"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// Validate checks a binding set against a feature table and fails fast on
// configuration errors, before anything is fitted:
//
//   - the binding list is empty,
//   - a binding names no columns or no usable steps,
//   - a bound column is absent from the table,
//   - a table column is bound zero times or more than once,
//   - a step's strategy (or FillValue/Drop field) does not fit its kind,
//   - a step sequence is incoherent for a member column: scaling a
//     categorical column, imputing with a strategy of the wrong kind,
//     a categorical column with no one-hot step, steps after one-hot, or
//     a column that has missing cells but no impute step.
func Validate(bindings []Binding, t *dataset.Table) error {
	if len(bindings) == 0 {
		return errors.NewValidationError("bindings", "binding list must not be empty", nil)
	}
	if t == nil {
		return errors.NewValidationError("table", "table must not be nil", nil)
	}

	bound := make(map[string]string, t.NumCols())
	for _, b := range bindings {
		if len(b.Columns) == 0 {
			return errors.NewValidationError("bindings", fmt.Sprintf("binding %q names no columns", b.Name), nil)
		}
		if err := validateSteps(b); err != nil {
			return err
		}
		for _, name := range b.Columns {
			if prev, ok := bound[name]; ok {
				return errors.NewValidationError("bindings",
					fmt.Sprintf("column %q appears in bindings %q and %q; every column must appear in exactly one binding", name, prev, b.Name), nil)
			}
			bound[name] = b.Name
			col, ok := t.Column(name)
			if !ok {
				return errors.NewValidationError("bindings",
					fmt.Sprintf("binding %q references column %q which is not in the table", b.Name, name), nil)
			}
			if err := validateColumnSteps(b, col); err != nil {
				return err
			}
		}
	}
	for _, name := range t.ColumnNames() {
		if _, ok := bound[name]; !ok {
			return errors.NewValidationError("bindings",
				fmt.Sprintf("column %q is not covered by any binding; every column must appear in exactly one binding", name), nil)
		}
	}
	return nil
}

// validateSteps checks table-independent step structure for one binding.
func validateSteps(b Binding) error {
	if len(b.Steps) == 0 {
		return errors.NewValidationError("bindings", fmt.Sprintf("binding %q declares no steps", b.Name), nil)
	}
	seen := make(map[StepKind]bool, len(b.Steps))
	sawOneHot := false
	for _, s := range b.Steps {
		if sawOneHot {
			return errors.NewValidationError("bindings",
				fmt.Sprintf("binding %q: one-hot must be the final step", b.Name), nil)
		}
		if seen[s.Kind] {
			return errors.NewValidationError("bindings",
				fmt.Sprintf("binding %q repeats step kind %q", b.Name, s.Kind), nil)
		}
		seen[s.Kind] = true
		if s.Kind == StepOneHot && seen[StepScale] {
			return errors.NewValidationError("bindings",
				fmt.Sprintf("binding %q combines scale and one-hot; indicator columns are not scaled", b.Name), nil)
		}

		switch s.Kind {
		case StepImpute:
			switch s.Strategy {
			case "", "median", "mean", "constant", "most_frequent":
			default:
				return errors.NewValidationError("strategy",
					fmt.Sprintf("binding %q: unknown impute strategy", b.Name), s.Strategy)
			}
			if s.FillValue != "" && s.Strategy != "constant" && s.Strategy != "" {
				return errors.NewValidationError("fill_value",
					fmt.Sprintf("binding %q: fill_value requires impute strategy %q", b.Name, "constant"), s.FillValue)
			}
			if s.Drop != "" {
				return errors.NewValidationError("drop",
					fmt.Sprintf("binding %q: drop is a one-hot field", b.Name), s.Drop)
			}
		case StepScale:
			switch s.Strategy {
			case "", "standard", "minmax":
			default:
				return errors.NewValidationError("strategy",
					fmt.Sprintf("binding %q: unknown scale strategy", b.Name), s.Strategy)
			}
			if s.FillValue != "" || s.Drop != "" {
				return errors.NewValidationError("bindings",
					fmt.Sprintf("binding %q: scale step accepts no fill_value or drop", b.Name), nil)
			}
		case StepOneHot:
			sawOneHot = true
			if s.Strategy != "" {
				return errors.NewValidationError("strategy",
					fmt.Sprintf("binding %q: one-hot accepts no strategy", b.Name), s.Strategy)
			}
			if s.FillValue != "" {
				return errors.NewValidationError("fill_value",
					fmt.Sprintf("binding %q: fill_value is an impute field", b.Name), s.FillValue)
			}
			switch s.Drop {
			case "", "first":
			default:
				return errors.NewValidationError("drop",
					fmt.Sprintf("binding %q: drop must be empty or %q", b.Name, "first"), s.Drop)
			}
		default:
			return errors.NewValidationError("kind",
				fmt.Sprintf("binding %q: unknown step kind", b.Name), int(s.Kind))
		}
	}
	return nil
}

// validateColumnSteps checks one member column against the binding's steps.
func validateColumnSteps(b Binding, col dataset.Column) error {
	categorical := col.Kind == dataset.Categorical
	hasImpute := false
	hasOneHot := false
	for _, s := range b.Steps {
		switch s.Kind {
		case StepImpute:
			hasImpute = true
			switch s.Strategy {
			case "median", "mean":
				if categorical {
					return errors.NewValidationError("strategy",
						fmt.Sprintf("binding %q: impute strategy %q does not apply to categorical column %q", b.Name, s.Strategy, col.Name), nil)
				}
			case "constant", "most_frequent":
				if !categorical {
					return errors.NewValidationError("strategy",
						fmt.Sprintf("binding %q: impute strategy %q does not apply to numeric column %q", b.Name, s.Strategy, col.Name), nil)
				}
			}
		case StepScale:
			if categorical {
				return errors.NewValidationError("bindings",
					fmt.Sprintf("binding %q: cannot scale categorical column %q", b.Name, col.Name), nil)
			}
		case StepOneHot:
			hasOneHot = true
		}
	}
	if categorical && !hasOneHot {
		return errors.NewValidationError("bindings",
			fmt.Sprintf("binding %q: categorical column %q needs a one-hot step to produce numeric output", b.Name, col.Name), nil)
	}
	if !hasImpute {
		for _, m := range col.Missing {
			if m {
				return errors.NewValidationError("bindings",
					fmt.Sprintf("binding %q: column %q has missing values but declares no impute step", b.Name, col.Name), nil)
			}
		}
	}
	return nil
}
