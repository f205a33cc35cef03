package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"

	"github.com/c2h5oh/datasize"

	mcquad "github.com/ltseng/mcquad/lib"
)

// solverFlag implements the flag.Value interface for engine selection.
type solverFlag struct{ solver *mcquad.Solver }

func (f solverFlag) String() string {
	if f.solver == nil {
		return ""
	}
	return f.solver.String()
}

func (f solverFlag) Set(v string) error {
	switch v {
	case "vegas":
		*f.solver = mcquad.SolverVegas
	case "vegasmc":
		*f.solver = mcquad.SolverVegasMC
	default:
		return fmt.Errorf("invalid solver %q, want vegas or vegasmc", v)
	}
	return nil
}

// maxSizeFlag implements the flag.Value interface for human-readable
// byte sizes like 5MB.
type maxSizeFlag struct{ n *int64 }

func (f maxSizeFlag) String() string {
	if f.n == nil {
		return ""
	}
	return datasize.ByteSize(*f.n).String()
}

func (f maxSizeFlag) Set(v string) error {
	var ds datasize.ByteSize
	if err := ds.UnmarshalText([]byte(v)); err != nil {
		return err
	}
	*f.n = int64(ds.Bytes())
	return nil
}

// floatsFlag implements the flag.Value interface for comma separated
// float lists, used for the reweight goal.
type floatsFlag struct{ xs *[]float64 }

func (f floatsFlag) String() string {
	if f.xs == nil {
		return ""
	}
	ss := make([]string, len(*f.xs))
	for i, x := range *f.xs {
		ss[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(ss, ",")
}

func (f floatsFlag) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return err
		}
		*f.xs = append(*f.xs, x)
	}
	return nil
}

type prof struct {
	name string
	f    *os.File
}

func profiles(list string) (ps []*prof) {
	for _, name := range strings.Split(list, ",") {
		if name = strings.TrimSpace(name); name == "cpu" || name == "heap" {
			ps = append(ps, &prof{name: name})
		}
	}
	return ps
}

func (p *prof) start() (err error) {
	if p.f, err = os.Create(p.name + ".pprof"); err != nil {
		return err
	}
	if p.name == "cpu" {
		return pprof.StartCPUProfile(p.f)
	}
	return nil
}

func (p *prof) stop() error {
	switch p.name {
	case "cpu":
		pprof.StopCPUProfile()
	case "heap":
		runtime.GC()
		if err := pprof.WriteHeapProfile(p.f); err != nil {
			return err
		}
	}
	return p.f.Close()
}
