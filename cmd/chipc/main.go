// Command chipc synthesizes a packet-processing pipeline's ALU hole
// assignments from a target program and a pair of ALU templates,
// mirroring iterative_solver.py's CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chipmunk-synth/chipc"
	"github.com/sirupsen/logrus"
)

type args struct {
	pktFields      *string
	parallel       *bool
	parallelSketch *bool
	holeElim       *bool
	verbose        *bool

	programFile     string
	statefulAluFile string
	statelessAluFile string
	numStages       int
	numAlusPerStage int
}

func readArgs() *args {
	a := &args{
		pktFields:      flag.String("pkt-fields", "", "comma-separated packet field indices (only logged; the correctness check covers every packet field)"),
		parallel:       flag.Bool("parallel", false, "run multiple sketches in parallel (parallel codegen)"),
		parallelSketch: flag.Bool("parallel-sketch", false, "whether the sketch process itself uses parallelism"),
		holeElim:       flag.Bool("hole-elimination", false, "refine by eliminating failed hole combinations instead of counterexamples"),
		verbose:        flag.Bool("verbose", false, "enable debug logging"),
	}
	flag.Parse()

	rest := flag.Args()
	if len(rest) != 5 {
		fmt.Fprintln(os.Stderr, "usage: chipc [flags] <program_file> <stateful_alu_file> <stateless_alu_file> <num_pipeline_stages> <num_alus_per_stage>")
		os.Exit(1)
	}
	a.programFile = rest[0]
	a.statefulAluFile = rest[1]
	a.statelessAluFile = rest[2]

	var err error
	a.numStages, err = strconv.Atoi(rest[3])
	if err != nil {
		fmt.Fprintln(os.Stderr, "num_pipeline_stages must be an integer:", err)
		os.Exit(1)
	}
	a.numAlusPerStage, err = strconv.Atoi(rest[4])
	if err != nil {
		fmt.Fprintln(os.Stderr, "num_alus_per_stage must be an integer:", err)
		os.Exit(1)
	}
	return a
}

// sketchNameFor derives the stable prefix every allocator hole in a
// generated sketch is namespaced under, mirroring the original's own
// sketch_name convention (program/stateful/stateless file stems plus
// the grid dimensions).
func sketchNameFor(programFile, statefulAluFile, statelessAluFile string, numStages, numAlusPerStage int) string {
	stem := func(path string) string {
		base := filepath.Base(path)
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	return fmt.Sprintf("%s_%s_%s_%d_%d",
		stem(programFile), stem(statefulAluFile), stem(statelessAluFile), numStages, numAlusPerStage)
}

func main() {
	os.Exit(run())
}

// run implements the loop iterative_solver.py's main() drives: read
// the program and ALU templates, then repeatedly synthesize at a
// narrow bit width and verify at a wide one until verification
// succeeds or synthesis itself goes unsat.
func run() int {
	a := readArgs()

	level := logrus.InfoLevel
	if *a.verbose {
		level = logrus.DebugLevel
	}
	log := chipc.NewLogger(level)

	programBytes, err := os.ReadFile(a.programFile)
	if err != nil {
		log.WithError(err).Error("reading program file")
		return 1
	}
	statefulSrc, err := os.ReadFile(a.statefulAluFile)
	if err != nil {
		log.WithError(err).Error("reading stateful ALU file")
		return 1
	}
	statelessSrc, err := os.ReadFile(a.statelessAluFile)
	if err != nil {
		log.WithError(err).Error("reading stateless ALU file")
		return 1
	}

	program := chipc.ScanSpecProgram(string(programBytes))

	statefulTmpl, err := chipc.ParseTemplate(string(statefulSrc))
	if err != nil {
		log.WithError(err).Error("parsing stateful ALU template")
		return 1
	}
	statelessTmpl, err := chipc.ParseTemplate(string(statelessSrc))
	if err != nil {
		log.WithError(err).Error("parsing stateless ALU template")
		return 1
	}

	cfg := chipc.NewConfig()
	cfg.SetBool("solver.parallel_sketch", *a.parallelSketch)
	cfg.SetBool("solver.parallel_codegen", *a.parallel)

	if *a.pktFields != "" {
		log.WithField("pkt_fields", strings.Split(*a.pktFields, ",")).Debug("pkt-fields given; correctness is still checked on every packet field")
	}

	sketchName := sketchNameFor(a.programFile, a.statefulAluFile, a.statelessAluFile, a.numStages, a.numAlusPerStage)
	grid := chipc.NewGridGenerator(cfg, log, sketchName)
	solver := chipc.NewSolverDriver(cfg, log)
	smt := chipc.NewSMTVerifier(cfg, log)
	controller := chipc.NewCegisController(cfg, log, grid, solver, smt)

	mode := chipc.CounterExample
	if *a.holeElim {
		mode = chipc.HoleElimination
	}

	result, err := controller.Run(context.Background(), program, statelessTmpl, statefulTmpl, a.numStages, a.numAlusPerStage, mode)
	if err != nil {
		log.WithError(err).Error("FAILURE: synthesis did not converge")
		return 1
	}

	log.WithFields(logrus.Fields{
		"iterations": result.Iterations,
		"assignment": result.Assignment,
	}).Info("SUCCESS: verification succeeded")
	return 0
}
