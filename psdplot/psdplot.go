// Package psdplot draws the particle size distribution of a sample together
// with its fitted power law.
package psdplot

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/carbocation/ifcbpsd/powerfit"
	"github.com/carbocation/ifcbpsd/psd"
	"github.com/carbocation/ifcbpsd/tables"
	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// LabelSigFigs is the precision of the equation printed on a figure.
const LabelSigFigs = 3

type Options struct {
	StartFit  int
	UseMarker bool
	Width     int
	Height    int
}

func DefaultOptions() Options {
	return Options{
		StartFit: powerfit.DefaultOptions().StartFit,
		Width:    800,
		Height:   600,
	}
}

var (
	psdColor   = drawing.ColorFromHex("00afbf")
	curveColor = drawing.ColorFromHex("516b6e")
)

// Render writes a PNG of the equivalent-diameter distribution of s from
// opts.StartFit onwards. The fitted curve and its equation are added when
// the fit explains any variance.
func Render(w io.Writer, s *psd.Sample, opts Options) error {
	h, ok := s.Histogram(psd.EquivDiameter)
	if !ok {
		return fmt.Errorf("%s: %w", s.Name, psd.ErrNotBinned)
	}

	start := opts.StartFit
	if start < 0 || start >= tables.NBins {
		start = 0
	}

	x := make([]float64, 0, tables.NBins-start)
	y := make([]float64, 0, tables.NBins-start)
	for i := start; i < tables.NBins; i++ {
		x = append(x, float64(i))
		y = append(y, h.Density[i])
	}

	_, maximum := powerfit.Peak(h.Density[:])
	if maximum <= 0 {
		maximum = 1
	}

	psdStyle := chart.Style{
		StrokeColor: psdColor,
		StrokeWidth: 1.25,
	}
	if opts.UseMarker {
		psdStyle.DotColor = psdColor
		psdStyle.DotWidth = 2
	}

	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    "PSD",
			XValues: x,
			YValues: y,
			Style:   psdStyle,
		},
	}

	if s.Fit.OK() && s.Fit.RSquared > 0 {
		curve := make([]float64, len(x))
		for i, xi := range x {
			curve[i] = powerfit.Model(xi, s.Fit.A, s.Fit.K)
		}

		series = append(series,
			chart.ContinuousSeries{
				Name:    "Power Curve",
				XValues: x,
				YValues: curve,
				Style: chart.Style{
					StrokeColor:     curveColor,
					StrokeDashArray: []float64{5, 5},
				},
			},
			chart.AnnotationSeries{
				Annotations: []chart.Value2{{
					XValue: 80,
					YValue: maximum * 0.75,
					Label:  Equation(s.Fit),
				}},
			},
		)
	}

	graph := chart.Chart{
		Title:  s.Name,
		Width:  opts.Width,
		Height: opts.Height,
		XAxis: chart.XAxis{
			Name: "ESD [um]",
		},
		YAxis: chart.YAxis{
			Name:  "N'(D) [c/L]",
			Range: &chart.ContinuousRange{Min: -0.1 * maximum, Max: 1.1 * maximum},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	// Render to a byte buffer so a failed render leaves w untouched
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return err
	}

	_, err := buffer.WriteTo(w)
	return err
}

// Equation is the figure label for a fit, e.g. "y = (1.23e+05)x^-1.2, R^2 = 0.95".
func Equation(r powerfit.Result) string {
	return fmt.Sprintf("y = (%g)x^%g, R^2 = %g",
		powerfit.RoundSig(r.A, LabelSigFigs),
		powerfit.RoundSig(r.K, LabelSigFigs),
		powerfit.RoundSig(r.RSquared, LabelSigFigs))
}

// WritePNG renders s into dir/{name}.png and returns the path.
func WritePNG(dir string, s *psd.Sample, opts Options) (string, error) {
	path := filepath.Join(dir, s.Name+".png")

	f, err := os.Create(path)
	if err != nil {
		return "", pfx.Err(err)
	}

	if err := Render(f, s, opts); err != nil {
		f.Close()
		return "", pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return path, pfx.Err(f.Close())
}
