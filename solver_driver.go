package chipc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"sync"

	goPs "github.com/mitchellh/go-ps"
	"github.com/sirupsen/logrus"
)

// SolveResult is one run of the external sketch synthesizer: whether
// it found a satisfying hole assignment, and if so, what it was.
type SolveResult struct {
	Sat       bool
	Holes     map[string]int
	Stdout    string
	Assignment Assignment
}

// SolverDriver wraps the external "sketch" binary (spec.md frames the
// synthesizer as an out-of-scope "external collaborator" invoked over
// a process boundary, so this is std os/exec rather than a Go binding
// that doesn't exist anywhere in the ecosystem).
type SolverDriver struct {
	cfg *Config
	log *logrus.Logger
}

func NewSolverDriver(cfg *Config, log *logrus.Logger) *SolverDriver {
	return &SolverDriver{cfg: cfg, log: log}
}

// holeAssignmentRe matches sketch's hole-dump output lines, e.g.
// `Mux2_0__0_s = 1;` — the hole's registry name, an internal counter
// sketch appends, and its solved integer value.
var holeAssignmentRe = regexp.MustCompile(`^(\w+)__\w*\s*=\s*(-?\d+);\s*$`)

// parseHoleAssignments extracts every `<name>__<anon> = <int>;` line
// from a sketch run's stdout.
func parseHoleAssignments(stdout string) map[string]int {
	out := make(map[string]int)
	for _, line := range splitLines(stdout) {
		m := holeAssignmentRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out[m[1]] = v
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// Run invokes the sketch binary once on the given program text and
// returns the parsed result. A non-zero, non-"unsat" exit is a
// SolverError (spec.md §7 kind 6); an "unsat" exit is reported as
// Sat=false rather than an error.
func (d *SolverDriver) Run(ctx context.Context, sketchSrc string, registry *HoleRegistry) (*SolveResult, error) {
	f, err := os.CreateTemp("", "chipc-*.sk")
	if err != nil {
		return nil, fmt.Errorf("creating sketch temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(sketchSrc); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing sketch temp file: %w", err)
	}
	f.Close()

	args := []string{
		"--bnd-inbits", strconv.Itoa(d.cfg.GetInt("synth.bit_width")),
		"--seed", strconv.Itoa(d.cfg.GetInt("solver.seed")),
	}
	if d.cfg.GetBool("solver.parallel_sketch") {
		args = append(args, "--slv-parallel")
	}
	args = append(args, f.Name())

	cmd := exec.CommandContext(ctx, d.cfg.GetString("solver.binary"), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.log.WithFields(logrus.Fields{"binary": cmd.Path, "args": args}).Debug("invoking solver")

	if err := cmd.Start(); err != nil {
		return nil, SolverError{
			Binary: d.cfg.GetString("solver.binary"), Args: args,
			ExitCode: -1, Stdout: stdout.String(), Stderr: err.Error(),
		}
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			killProcessTree(cmd.Process.Pid)
		case <-done:
		}
	}()
	runErr := cmd.Wait()
	close(done)

	if ctx.Err() == context.Canceled {
		return nil, ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, SolverError{
				Binary: d.cfg.GetString("solver.binary"), Args: args,
				ExitCode: -1, Stdout: stdout.String(), Stderr: stderr.String(),
			}
		}
	}

	// sketch conventionally exits 1 on an unsatisfiable instance; any
	// other non-zero exit is treated as the binary having crashed.
	if exitCode != 0 && exitCode != 1 {
		return nil, SolverError{
			Binary: d.cfg.GetString("solver.binary"), Args: args,
			ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String(),
		}
	}
	if exitCode == 1 {
		return &SolveResult{Sat: false}, nil
	}

	holes := parseHoleAssignments(stdout.String())
	for _, h := range registry.All() {
		if _, ok := holes[h.Name]; !ok {
			return nil, SolverError{
				Binary: d.cfg.GetString("solver.binary"), Args: args,
				ExitCode: 0, Stdout: stdout.String(),
				Stderr: fmt.Sprintf("solver reported sat but hole %q missing from output", h.Name),
			}
		}
	}
	return &SolveResult{Sat: true, Holes: holes, Stdout: stdout.String()}, nil
}

// EmitDag runs the solver in dag-dump mode against a sketch with every
// hole already fixed to a concrete value, returning the textual DAG IR
// ParseDag consumes. This is the boundary sol_verify crosses in
// compiler.py: sketch itself lowers a fully-concrete program into the
// IR that z3_utils.get_z3_formula walks.
func (d *SolverDriver) EmitDag(ctx context.Context, sketchSrc string) (string, error) {
	f, err := os.CreateTemp("", "chipc-*.sk")
	if err != nil {
		return "", fmt.Errorf("creating sketch temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(sketchSrc); err != nil {
		f.Close()
		return "", fmt.Errorf("writing sketch temp file: %w", err)
	}
	f.Close()

	args := []string{"--output-dag", f.Name()}
	cmd := exec.CommandContext(ctx, d.cfg.GetString("solver.binary"), args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	d.log.WithFields(logrus.Fields{"binary": cmd.Path, "args": args}).Debug("emitting dag")
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return "", SolverError{Binary: d.cfg.GetString("solver.binary"), Args: args, ExitCode: -1, Stderr: err.Error()}
		}
	}
	return stdout.String(), nil
}

// CodegenResult pairs the winning SolveResult with the group→stage
// assignment that produced it.
type CodegenResult struct {
	Assignment Assignment
	Solve      *SolveResult
}

// ParallelCodegen enumerates the S^G space of state-group→stage
// assignments, running one solver invocation per candidate. The first
// satisfying result cancels every other in-flight invocation and their
// descendant processes, mirroring compiler.py's parallel_codegen +
// kill_child_processes (grounded in psutil there; go-ps here, the only
// process-tree library anywhere in the retrieved corpus).
func (d *SolverDriver) ParallelCodegen(
	ctx context.Context,
	generate func(a Assignment) (string, *HoleRegistry, error),
	numGroups, numStages, parallelism int,
) (*CodegenResult, error) {
	assignments := AllAssignments(numGroups, numStages)
	if parallelism <= 0 {
		parallelism = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup
	var once sync.Once
	resultCh := make(chan *CodegenResult, 1)

	for _, a := range assignments {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			sketchSrc, registry, err := generate(a)
			if err != nil {
				d.log.WithError(err).Warn("skipping assignment, generation failed")
				return
			}
			res, err := d.Run(ctx, sketchSrc, registry)
			if err != nil {
				if err != context.Canceled {
					d.log.WithError(err).Debug("assignment failed")
				}
				return
			}
			if res.Sat {
				res.Assignment = a
				once.Do(func() {
					resultCh <- &CodegenResult{Assignment: a, Solve: res}
					cancel()
				})
			}
		}()
	}

	go func() {
		wg.Wait()
		once.Do(func() { close(resultCh) })
	}()

	result, ok := <-resultCh
	if !ok || result == nil {
		return nil, SynthesisUnsatError{Iterations: len(assignments)}
	}
	return result, nil
}

// killProcessTree best-effort kills pid and every descendant it can
// discover via the process table. Failure to find or kill a process is
// swallowed: by the time codegen cancels its losing branches, some of
// them may have already exited on their own (spec.md §7's "kill is
// best-effort, not required to succeed").
func killProcessTree(pid int) {
	procs, err := goPs.Processes()
	if err != nil {
		return
	}
	children := map[int][]int{}
	for _, p := range procs {
		children[p.PPid()] = append(children[p.PPid()], p.Pid())
	}
	var kill func(p int)
	kill = func(p int) {
		for _, c := range children[p] {
			kill(c)
		}
		if proc, err := os.FindProcess(p); err == nil {
			_ = proc.Kill()
		}
	}
	kill(pid)
}
