package chipc

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// CegisMode selects how a failed verification's evidence feeds back
// into the next synthesis round (spec.md §4.6 / iterative_solver.py's
// --hole-elimination flag): HoleElimination forbids the exact hole
// combination that just failed; CounterExample instead adds concrete
// test vectors the next candidate must satisfy.
type CegisMode int

const (
	CounterExample CegisMode = iota
	HoleElimination
)

// cexBitWidths are the widths iterative_solver.py sweeps (2..9
// inclusive) when minting additional test cases from one counter-
// example: a single failing input is replayed at several bit widths so
// the next synthesis round can't just special-case one magnitude.
var cexBitWidths = []int{2, 3, 4, 5, 6, 7, 8, 9}

// CegisController drives the synth → verify → refine loop: each round
// asks the solver for a 2-bit hole assignment (cheap), then uses the
// SMT verifier to check it holds at the full verification bit width
// (sound). A round that fails contributes either an exclusion
// constraint or new counter-example test cases for the next round.
type CegisController struct {
	cfg    *Config
	log    *logrus.Logger
	grid   *GridGenerator
	solver *SolverDriver
	smt    *SMTVerifier
}

func NewCegisController(cfg *Config, log *logrus.Logger, grid *GridGenerator, solver *SolverDriver, smt *SMTVerifier) *CegisController {
	return &CegisController{cfg: cfg, log: log, grid: grid, solver: solver, smt: smt}
}

// CegisResult is a successfully synthesized and verified pipeline
// configuration.
type CegisResult struct {
	Assignment Assignment
	Holes      map[string]int
	Iterations int
}

// Run executes the CEGIS loop until verification succeeds or synthesis
// goes unsat at the 2-bit width (spec.md §4.6's termination condition).
func (c *CegisController) Run(
	ctx context.Context,
	program *SpecProgram,
	statelessTmpl, statefulTmpl *TemplateNode,
	numStages, numAlusPerStage int,
	mode CegisMode,
) (*CegisResult, error) {
	var exclusions []string
	var testcases []string
	iteration := 1

	for {
		c.log.WithField("iteration", iteration).Info("starting CEGIS round")

		extra := append(append([]string{}, exclusions...), testcases...)
		generate := func(a Assignment) (string, *HoleRegistry, error) {
			return c.grid.Generate(CODEGEN, program, statelessTmpl, statefulTmpl,
				numStages, numAlusPerStage, a, nil, extra)
		}

		var codegen *CodegenResult
		var err error
		if c.cfg.GetBool("solver.parallel_codegen") {
			codegen, err = c.solver.ParallelCodegen(ctx, generate, program.NumStateGroups, numStages, 4)
		} else {
			codegen, err = c.serialCodegen(ctx, generate, program.NumStateGroups, numStages)
		}
		if err != nil {
			if _, ok := err.(SynthesisUnsatError); ok {
				return nil, SynthesisUnsatError{Iterations: iteration}
			}
			return nil, err
		}

		solverifySrc, _, err := c.grid.Generate(SOLVERIFY, program, statelessTmpl, statefulTmpl,
			numStages, numAlusPerStage, codegen.Assignment, codegen.Solve.Holes, nil)
		if err != nil {
			return nil, err
		}
		ir, err := c.solver.EmitDag(ctx, solverifySrc)
		if err != nil {
			return nil, err
		}
		dag, err := ParseDag(ir)
		if err != nil {
			return nil, err
		}

		verified, err := c.smt.SolVerify(ctx, dag.ToSMT2(c.cfg.GetInt("verify.bit_width")))
		if err != nil {
			return nil, err
		}
		if verified {
			c.log.WithField("iteration", iteration).Info("verification succeeded")
			return &CegisResult{Assignment: codegen.Assignment, Holes: codegen.Solve.Holes, Iterations: iteration}, nil
		}

		c.log.WithField("iteration", iteration).Info("verification failed, refining")
		switch mode {
		case HoleElimination:
			exclusions = append(exclusions, generateHoleEliminationAssert(codegen.Solve.Holes))
		case CounterExample:
			pkt, state, err := c.smt.GenerateCounterExamples(ctx, dag, c.cfg.GetInt("verify.bit_width"))
			if err != nil {
				return nil, err
			}
			testcases = append(testcases, generateAdditionalTestcases(pkt, state, program, iteration)...)
		}
		iteration++
	}
}

func (c *CegisController) serialCodegen(
	ctx context.Context,
	generate func(a Assignment) (string, *HoleRegistry, error),
	numGroups, numStages int,
) (*CodegenResult, error) {
	for _, a := range AllAssignments(numGroups, numStages) {
		sketchSrc, registry, err := generate(a)
		if err != nil {
			return nil, err
		}
		res, err := c.solver.Run(ctx, sketchSrc, registry)
		if err != nil {
			return nil, err
		}
		if res.Sat {
			res.Assignment = a
			return &CodegenResult{Assignment: a, Solve: res}, nil
		}
	}
	return nil, SynthesisUnsatError{}
}

// generateHoleEliminationAssert builds the `!(h1==v1 && h2==v2 && ...)`
// constraint that forbids the sketch solver from proposing the exact
// same hole combination again, grounded on
// iterative_solver.py's generate_hole_elimination_assert.
func generateHoleEliminationAssert(holes map[string]int) string {
	names := make([]string, 0, len(holes))
	for n := range holes {
		names = append(names, n)
	}
	sort.Strings(names)

	var terms []string
	for _, n := range names {
		terms = append(terms, fmt.Sprintf("(%s == %d)", n, holes[n]))
	}
	return fmt.Sprintf("assert !(%s);", strings.Join(terms, " && "))
}

// generateAdditionalTestcases mints one `pipeline(x) == program(x)`
// test vector per bit width in cexBitWidths from a single counter-
// example, defaulting any packet field or state slot the counter-
// example left unconstrained to 0 (spec.md §7 kind 5 / iterative_
// solver.py's generate_additional_testcases).
func generateAdditionalTestcases(pkt, state map[string]int, program *SpecProgram, iteration int) []string {
	var out []string
	for _, bits := range cexBitWidths {
		offset := 1 << uint(bits)
		var fields []string
		for i := 0; i < program.NumPacketFields; i++ {
			name := fmt.Sprintf("pkt_%d", i)
			v := pkt[name]
			fields = append(fields, fmt.Sprintf("%s = %d", name, v+offset))
		}
		for _, slot := range program.Slots {
			name := fmt.Sprintf("state_group_%d_state_%d", slot.Group, slot.Slot)
			v := state[name]
			fields = append(fields, fmt.Sprintf("%s = %d", name, v+offset))
		}
		varName := fmt.Sprintf("x_%d_%d", iteration, bits)
		out = append(out, fmt.Sprintf(
			"|StateAndPacket| %s = |StateAndPacket|(\n  %s\n);\nassert (pipeline(%s) == program(%s));",
			varName, strings.Join(fields, ",\n  "), varName, varName))
	}
	return out
}
