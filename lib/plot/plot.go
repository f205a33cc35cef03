// Package plot renders a self-contained HTML page with the per-iteration
// estimates of an integration run and, when recorded, the downsampled
// trace of relative sample weights.
package plot

import (
	"fmt"
	"html/template"
	"io"

	"github.com/dgryski/go-lttb"

	mcquad "github.com/ltseng/mcquad/lib"
)

// DefaultThreshold is the number of points the weight trace is
// downsampled to before rendering.
const DefaultThreshold = 4000

// A Plot collects iteration records and an optional weight trace and
// renders them as an HTML page with inline SVG charts.
type Plot struct {
	title     string
	threshold int
	records   []mcquad.IterationRecord
	trace     []lttb.Point[float64]
}

// An Opt configures a Plot.
type Opt func(*Plot)

// Title sets the plot page title.
func Title(t string) Opt { return func(p *Plot) { p.title = t } }

// Threshold sets the downsampling threshold of the weight trace.
func Threshold(n int) Opt { return func(p *Plot) { p.threshold = n } }

// New returns a Plot with the given options.
func New(opts ...Opt) *Plot {
	p := &Plot{title: "mcquad", threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Add appends an iteration record to the estimate chart.
func (p *Plot) Add(r *mcquad.IterationRecord) {
	p.records = append(p.records, *r)
}

// AddTrace installs the weight trace points, downsampling them with
// largest-triangle-three-buckets to the configured threshold.
func (p *Plot) AddTrace(xs, ys []float64) {
	pts := make([]lttb.Point[float64], len(xs))
	for i := range xs {
		pts[i] = lttb.Point[float64]{X: xs[i], Y: ys[i]}
	}
	p.trace = lttb.LTTB(pts, p.threshold)
}

type chart struct {
	Title string
	Lines []line
}

type line struct {
	Label  string
	Points string // SVG polyline points
}

var pageTemplate = template.Must(template.New("plot").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
body { font: 13px sans-serif; margin: 2em; }
svg { border: 1px solid #ccc; margin-bottom: 2em; display: block; }
polyline { fill: none; stroke-width: 1.5; }
polyline:nth-of-type(3n+1) { stroke: #1f77b4; }
polyline:nth-of-type(3n+2) { stroke: #ff7f0e; }
polyline:nth-of-type(3n)   { stroke: #2ca02c; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Charts}}
<h2>{{.Title}}</h2>
<svg viewBox="0 0 800 300" width="800" height="300">
{{- range .Lines}}
<polyline points="{{.Points}}"><title>{{.Label}}</title></polyline>
{{- end}}
</svg>
{{end}}
</body>
</html>
`))

// WriteTo renders the page, implementing io.WriterTo.
func (p *Plot) WriteTo(w io.Writer) (int64, error) {
	data := struct {
		Title  string
		Charts []chart
	}{Title: p.title}

	if len(p.records) > 0 {
		c := chart{Title: "Per-iteration estimates"}
		n := len(p.records[0].Mean)
		for k := 0; k < n; k++ {
			xs := make([]float64, len(p.records))
			ys := make([]float64, len(p.records))
			for i, r := range p.records {
				xs[i], ys[i] = float64(r.Iteration), r.Mean[k]
			}
			c.Lines = append(c.Lines, line{
				Label:  fmt.Sprintf("integrand %d", k+1),
				Points: polyline(xs, ys),
			})
		}
		data.Charts = append(data.Charts, c)
	}

	if len(p.trace) > 0 {
		xs := make([]float64, len(p.trace))
		ys := make([]float64, len(p.trace))
		for i, pt := range p.trace {
			xs[i], ys[i] = pt.X, pt.Y
		}
		data.Charts = append(data.Charts, chart{
			Title: "Relative sample weights",
			Lines: []line{{Label: "weight", Points: polyline(xs, ys)}},
		})
	}

	cw := countingWriter{w: w}
	err := pageTemplate.Execute(&cw, data)
	return cw.n, err
}

// polyline scales the points into the 800x300 viewport and formats them
// for an SVG polyline attribute.
func polyline(xs, ys []float64) string {
	const w, h, pad = 800.0, 300.0, 10.0
	minX, maxX := minMax(xs)
	minY, maxY := minMax(ys)
	if maxX == minX {
		maxX = minX + 1
	}
	if maxY == minY {
		maxY = minY + 1
	}
	out := make([]byte, 0, len(xs)*16)
	for i := range xs {
		px := pad + (xs[i]-minX)/(maxX-minX)*(w-2*pad)
		py := h - pad - (ys[i]-minY)/(maxY-minY)*(h-2*pad)
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, fmt.Sprintf("%.1f,%.1f", px, py)...)
	}
	return string(out)
}

func minMax(xs []float64) (min, max float64) {
	min, max = xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	return min, max
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(b []byte) (int, error) {
	n, err := cw.w.Write(b)
	cw.n += int64(n)
	return n, err
}
