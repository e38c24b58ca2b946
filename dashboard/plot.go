package dashboard

import (
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/glassbox-ml/glassbox/explain"
	"github.com/glassbox-ml/glassbox/pkg/errors"
)

// SaveImportancePlot renders the top ranked features of a global
// explanation as a horizontal bar chart. The image format follows the
// file extension (.png, .svg, .pdf). A non-positive or oversized topK
// plots every feature.
func SaveImportancePlot(g *explain.GlobalExplanation, topK int, path string) error {
	if g == nil || len(g.Features) == 0 {
		return errors.NewValueError("SaveImportancePlot",
			"global explanation has no features")
	}
	if topK <= 0 || topK > len(g.Features) {
		topK = len(g.Features)
	}

	p := plot.New()
	p.Title.Text = "Feature importance"
	p.X.Label.Text = "mean |contribution|"

	// Features arrive ranked descending; reverse so the strongest bar
	// ends up at the top of the chart.
	values := make(plotter.Values, topK)
	names := make([]string, topK)
	for i := 0; i < topK; i++ {
		f := g.Features[topK-1-i]
		values[i] = f.Value
		names[i] = f.Name
	}

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return errors.Wrap(err, "glassbox: building importance chart")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 64, G: 116, B: 188, A: 255}
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalY(names...)

	height := vg.Points(float64(topK)*30 + 80)
	if err := p.Save(6*vg.Inch, height, path); err != nil {
		return errors.Wrap(err, "glassbox: saving importance chart")
	}
	return nil
}
