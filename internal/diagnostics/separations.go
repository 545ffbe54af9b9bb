// Package diagnostics summarises and plots the separations of matched pairs.
package diagnostics

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Summary describes a set of pair separations in arcseconds.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean_arcsec"`
	StdDev float64 `json:"stddev_arcsec"`
	Median float64 `json:"median_arcsec"`
	P90    float64 `json:"p90_arcsec"`
	Max    float64 `json:"max_arcsec"`
}

func (s Summary) String() string {
	return fmt.Sprintf("n=%d mean=%.4g\" sd=%.4g\" median=%.4g\" p90=%.4g\" max=%.4g\"",
		s.Count, s.Mean, s.StdDev, s.Median, s.P90, s.Max)
}

func sorted(sep []float64) []float64 {
	out := append([]float64(nil), sep...)
	sort.Float64s(out)
	return out
}

// Summarize computes summary statistics. An empty input gives a zero Summary.
func Summarize(sep []float64) Summary {
	if len(sep) == 0 {
		return Summary{}
	}
	x := sorted(sep)
	s := Summary{
		Count:  len(x),
		Mean:   stat.Mean(x, nil),
		Median: stat.Quantile(0.5, stat.Empirical, x, nil),
		P90:    stat.Quantile(0.9, stat.Empirical, x, nil),
		Max:    floats.Max(x),
	}
	if len(x) > 1 {
		s.StdDev = stat.StdDev(x, nil)
	}
	return s
}

// Bin is one histogram bucket covering [Lo, Hi).
type Bin struct {
	Lo, Hi float64
	Count  int
}

// Histogram buckets sep into bins equal-width bins spanning [0, radius).
// The range is stretched to cover the largest value when it exceeds radius.
func Histogram(sep []float64, bins int, radiusArcsec float64) []Bin {
	if bins < 1 {
		bins = 1
	}
	hi := radiusArcsec
	if len(sep) > 0 {
		hi = math.Max(hi, floats.Max(sep))
	}
	if !(hi > 0) {
		hi = 1
	}
	hi = math.Nextafter(hi, math.Inf(1))

	dividers := floats.Span(make([]float64, bins+1), 0, hi)
	counts := stat.Histogram(nil, dividers, sorted(sep), nil)

	out := make([]Bin, bins)
	for i := range out {
		out[i] = Bin{Lo: dividers[i], Hi: dividers[i+1], Count: int(counts[i])}
	}
	return out
}

type binValues []Bin

func (b binValues) Len() int                    { return len(b) }
func (b binValues) XY(i int) (float64, float64) { return (b[i].Lo + b[i].Hi) / 2, float64(b[i].Count) }

// WritePNG renders a histogram of sep as a PNG image.
func WritePNG(w io.Writer, sep []float64, bins int, radiusArcsec float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Pair separations (n=%d)", len(sep))
	p.X.Label.Text = "separation (arcsec)"
	p.Y.Label.Text = "pairs"

	hb := Histogram(sep, bins, radiusArcsec)
	h, err := plotter.NewHistogram(binValues(hb), len(hb))
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	p.Add(h)
	p.X.Min = 0
	p.X.Max = hb[len(hb)-1].Hi

	c := vgimg.New(10*vg.Inch, 5*vg.Inch)
	p.Draw(draw.New(c))
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}

// WriteHTML renders an interactive histogram of sep as a standalone page.
func WriteHTML(w io.Writer, title string, sep []float64, bins int, radiusArcsec float64) error {
	hb := Histogram(sep, bins, radiusArcsec)
	x := make([]string, len(hb))
	y := make([]opts.BarData, len(hb))
	for i, b := range hb {
		x[i] = fmt.Sprintf("%.3g", (b.Lo+b.Hi)/2)
		y[i] = opts.BarData{Value: b.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: Summarize(sep).String()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "arcsec", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pairs"}),
	)
	bar.SetXAxis(x).AddSeries("separation", y)
	return bar.Render(w)
}
