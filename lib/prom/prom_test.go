package prom

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/model/labels"
	"github.com/prometheus/prometheus/model/textparse"

	mcquad "github.com/ltseng/mcquad/lib"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	pm := NewMetrics()

	if err := pm.Register(reg); err != nil {
		t.Fatal("error registering metrics", err)
	}

	srv := httptest.NewServer(NewHandler(reg))
	defer srv.Close()

	pm.Observe(&mcquad.IterationRecord{
		Iteration:  3,
		Neval:      160000,
		Mean:       []float64{0.2468, 0.1234},
		Error:      []float64{0.003, 0.002},
		Reweight:   []float64{0.4, 0.35, 0.25},
		Acceptance: 0.41,
		Stalled:    true,
	})

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("failed to get prometheus metrics. err=%s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status code should be 200. code=%d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Errorf("error reading response body: err=%v", err)
	}

	p, err := textparse.New(data, resp.Header.Get("Content-Type"), true, labels.NewSymbolTable())
	if err != nil {
		t.Fatalf("error creating prometheus metrics parser. err=%v", err)
	}

	want := map[string]struct{}{
		"iterations_total":     {},
		"evaluations_total":    {},
		"stalled_blocks_total": {},
		"estimate_mean":        {},
		"estimate_error":       {},
		"reweight":             {},
		"acceptance_ratio":     {},
	}

	for len(want) > 0 {
		_, err := p.Next()
		if err != nil {
			if err == io.EOF {
				break
			}
			t.Fatalf("error parsing prometheus metrics. err=%v", err)
		}

		name, _ := p.Help()
		delete(want, string(name))
	}

	if len(want) > 0 {
		t.Errorf("missing metrics: %v", want)
	}
}
