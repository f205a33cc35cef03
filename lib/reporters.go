package mcquad

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// A Report collects iteration records and can be reported on.
type Report interface {
	Add(*IterationRecord)
}

// A Reporter writes a report to an io.Writer.
type Reporter func(io.Writer) error

// Report writes the report to the given writer.
func (rep Reporter) Report(w io.Writer) error { return rep(w) }

// Records is a Report that keeps every iteration record.
type Records []IterationRecord

// Add appends a record.
func (rs *Records) Add(r *IterationRecord) { *rs = append(*rs, *r) }

// Summary combines the records with inverse-variance weights, skipping
// the first ignore iterations, and returns per-integrand mean, standard
// deviation and reduced chi-square.
func (rs Records) Summary(ignore int) (mean, stderr, chi2 []float64) {
	if ignore >= len(rs) || len(rs) == 0 {
		return nil, nil, nil
	}
	used := rs[ignore:]
	n := len(used[0].Mean)
	mean = make([]float64, n)
	stderr = make([]float64, n)
	chi2 = make([]float64, n)
	ms := make([]float64, len(used))
	es := make([]float64, len(used))
	for k := 0; k < n; k++ {
		for i, r := range used {
			ms[i], es[i] = r.Mean[k], r.Error[k]
		}
		mean[k], stderr[k], chi2[k] = combine(ms, es)
	}
	return mean, stderr, chi2
}

// NewTextReporter returns a Reporter that writes the iteration table and
// the combined estimates as aligned text.
func NewTextReporter(rs *Records, ignore int) Reporter {
	return func(out io.Writer) error {
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.StripEscape)
		fmt.Fprintf(w, "Iteration\tNeval\tMean\tError\tAcceptance\n")
		for _, r := range *rs {
			for k := range r.Mean {
				if k == 0 {
					fmt.Fprintf(w, "%d\t%d\t", r.Iteration, r.Neval)
				} else {
					fmt.Fprintf(w, "\t\t")
				}
				fmt.Fprintf(w, "%.6g\t%.3g\t", r.Mean[k], r.Error[k])
				if k == 0 {
					fmt.Fprintf(w, "%.3f", r.Acceptance)
					if r.Stalled {
						fmt.Fprintf(w, " (stalled)")
					}
				}
				fmt.Fprintln(w)
			}
		}

		mean, stderr, chi2 := rs.Summary(ignore)
		if mean != nil {
			n := len(*rs) - ignore
			fmt.Fprintf(w, "\nCombined (%d iterations, %d ignored)\n", n, ignore)
			fmt.Fprintf(w, "Integrand\tMean\tError\tChi2/dof\tProb\n")
			for k := range mean {
				fmt.Fprintf(w, "%d\t%.6g\t%.3g\t%.3f\t%.3f\n",
					k+1, mean[k], stderr[k], chi2[k], chi2Prob(chi2[k], n-1))
			}
		}
		return w.Flush()
	}
}

// NewJSONReporter returns a Reporter that streams the records as NDJSON.
func NewJSONReporter(rs *Records) Reporter {
	return func(out io.Writer) error {
		enc := NewJSONEncoder(out)
		for i := range *rs {
			if err := enc.Encode(&(*rs)[i]); err != nil {
				return err
			}
		}
		return nil
	}
}

// HistogramReport buckets the per-iteration leading-integrand errors or
// any other weight stream fed to it.
type HistogramReport struct {
	Histogram *Histogram
}

// Add counts the record's first standard error into the histogram.
func (h *HistogramReport) Add(r *IterationRecord) {
	if len(r.Error) > 0 {
		h.Histogram.Add(r.Error[0])
	}
}

// NewHistogramReporter returns a Reporter that writes the bucket counts
// of the given histogram as aligned text.
func NewHistogramReporter(h *Histogram) Reporter {
	return func(out io.Writer) error {
		w := tabwriter.NewWriter(out, 0, 8, 2, ' ', tabwriter.StripEscape)
		fmt.Fprintf(w, "Bucket\t\t#\t%%\t\n")
		for i, count := range h.Counts {
			left, right := h.Buckets.Nth(i)
			ratio := 0.0
			if h.Total > 0 {
				ratio = float64(count) / float64(h.Total)
			}
			fmt.Fprintf(w, "[%s,\t%s]\t%d\t%.2f%%\t", left, right, count, ratio*100)
			for b := 0; b < int(ratio*40); b++ {
				fmt.Fprint(w, "#")
			}
			fmt.Fprintln(w)
		}
		return w.Flush()
	}
}
