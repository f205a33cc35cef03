package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
)

func main() {
	commands := map[string]command{
		"run":    runCmd(),
		"report": reportCmd(),
		"plot":   plotCmd(),
	}

	fs := flag.NewFlagSet("global", flag.ExitOnError)
	cpus := fs.Int("cpus", runtime.NumCPU(), "Number of CPUs to use")
	profile := fs.String("profile", "", "Enable profiling of [cpu, heap]")
	version := fs.Bool("version", false, "Print version and exit")

	fs.Usage = func() {
		fmt.Println("Usage: mcquad [global flags] <command> [command flags]")
		for name, cmd := range commands {
			fmt.Printf("\n%s command:\n", name)
			cmd.fs.PrintDefaults()
		}
		fmt.Printf("\nglobal flags:\n")
		fs.PrintDefaults()
		fmt.Print(examples)
	}

	fs.Parse(os.Args[1:])

	if *version {
		fmt.Printf("Version: %s\nCommit: %s\nRuntime: %s %s/%s\nDate: %s\n",
			Version, Commit, runtime.Version(), runtime.GOOS, runtime.GOARCH, Date)
		return
	}

	runtime.GOMAXPROCS(*cpus)

	for _, prof := range profiles(*profile) {
		if err := prof.start(); err != nil {
			log.Fatalf("error starting %s profiling: %v", prof.name, err)
		}
		defer prof.stop()
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(1)
	}

	if cmd, ok := commands[args[0]]; !ok {
		log.Fatalf("Unknown command: %s", args[0])
	} else if err := cmd.fn(args[1:]); err != nil {
		log.Fatal(err)
	}
}

var (
	// Version, Commit and Date are set at linking time.
	Version = "dev"
	Commit  = "N/A"
	Date    = "N/A"
)

const examples = `
examples:
  mcquad run -func=peak4d -solver=vegas -neval=100000 -niter=10 > records.bin
  mcquad run -func=singular -solver=vegasmc -output=records.json -format=json
  mcquad report -input=records.bin -reporter=text
  cat records.bin | mcquad report -reporter=hist[0,0.001,0.01,0.1,1]
  mcquad plot -input=records.bin > plot.html
`

type command struct {
	fs *flag.FlagSet
	fn func(args []string) error
}
