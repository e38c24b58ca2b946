package dashboard

import (
	"fmt"
	"io"
	"sort"

	"github.com/glassbox-ml/glassbox/explain"
)

// RenderText writes the ranked importance table followed by metric lines,
// the layout the CLI prints after a flow finishes.
func RenderText(w io.Writer, g *explain.GlobalExplanation, metrics map[string]float64) error {
	var err error
	printf := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	if g != nil {
		printf("Feature importance (%d evaluation rows, base value %+.6f)\n", g.Rows, g.BaseValue)
		width := nameWidth(g.Features)
		for rank, f := range g.Features {
			printf("  %2d. %-*s  %.6f\n", rank+1, width, f.Name, f.Value)
		}
	}

	if len(metrics) > 0 {
		names := make([]string, 0, len(metrics))
		for name := range metrics {
			names = append(names, name)
		}
		sort.Strings(names)

		printf("\nMetrics\n")
		for _, name := range names {
			printf("  %s: %.4f\n", name, metrics[name])
		}
	}
	return err
}

// RenderLocalText writes one sample's signed contribution breakdown for
// the explained class.
func RenderLocalText(w io.Writer, l *explain.LocalExplanation) error {
	if l == nil {
		return nil
	}
	var err error
	printf := func(format string, args ...interface{}) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("Local explanation for class %d (classes %v)\n", l.Class, l.Classes)
	printf("  base value %+.6f, prediction %+.6f\n", l.BaseValue, l.Prediction)
	width := nameWidth(l.Features)
	for rank, f := range l.Features {
		printf("  %2d. %-*s  %+.6f\n", rank+1, width, f.Name, f.Value)
	}
	return err
}

func nameWidth(features []explain.FeatureImportance) int {
	width := 0
	for _, f := range features {
		if len(f.Name) > width {
			width = len(f.Name)
		}
	}
	return width
}
