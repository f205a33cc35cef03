package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	mcquad "github.com/ltseng/mcquad/lib"
)

func TestRunAndReport(t *testing.T) {
	dir := t.TempDir()
	records := filepath.Join(dir, "records.json")
	out := filepath.Join(dir, "report.txt")

	err := run(&runOpts{
		funcname: "discrete8",
		outputf:  records,
		format:   "json",
		neval:    1000,
		niter:    2,
		blocks:   2,
		workers:  1,
		seed:     1,
		rexp:     2,
		solver:   mcquad.SolverVegas,
		save:     0,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := report("text", records, out, 0); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Combined") {
		t.Errorf("report is missing the combined summary:\n%s", data)
	}
}

func TestLookupProblem(t *testing.T) {
	for _, name := range problemNames() {
		if _, err := lookupProblem(name); err != nil {
			t.Errorf("lookupProblem(%q): %v", name, err)
		}
	}
	if _, err := lookupProblem("nope"); err == nil {
		t.Error("unknown problem: want error, got nil")
	}
}

func TestSolverFlag(t *testing.T) {
	var s mcquad.Solver
	f := solverFlag{&s}

	if err := f.Set("vegasmc"); err != nil || s != mcquad.SolverVegasMC {
		t.Errorf("Set(vegasmc): err=%v solver=%v", err, s)
	}
	if err := f.Set("bogus"); err == nil {
		t.Error("Set(bogus): want error, got nil")
	}
}

func TestMaxSizeFlag(t *testing.T) {
	var n int64
	f := maxSizeFlag{&n}
	if err := f.Set("5MB"); err != nil {
		t.Fatal(err)
	}
	if n != 5*1000*1000 && n != 5*1024*1024 {
		t.Errorf("5MB parsed as %d bytes", n)
	}
}
