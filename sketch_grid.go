package chipc

import (
	"fmt"
	"math/bits"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
)

// Mode selects which of the four sketch harnesses GridGenerator emits
// (spec.md §4.4): CODEGEN searches for any hole assignment, OPTVERIFY
// emits the same pipeline(x) == program(x) harness as CODEGEN (it does
// not compare two separately generated pipelines), SOLVERIFY re-checks
// a fixed assignment against a widened bit width, and CEXGEN negates
// the correctness assertion to extract a counter-example model.
type Mode int

const (
	CODEGEN Mode = iota
	OPTVERIFY
	SOLVERIFY
	CEXGEN
)

func (m Mode) String() string {
	switch m {
	case CODEGEN:
		return "CODEGEN"
	case OPTVERIFY:
		return "OPTVERIFY"
	case SOLVERIFY:
		return "SOLVERIFY"
	case CEXGEN:
		return "CEXGEN"
	default:
		return "UNKNOWN"
	}
}

// Assignment maps a state group index to the pipeline stage its
// stateful ALU instance occupies. Exactly one entry per group is
// required (spec.md §4.3's allocator invariant); GridGenerator treats
// a given Assignment as fixed rather than searching over it itself —
// that search is solver_driver.go's parallel codegen loop, which
// enumerates the S^G space and calls Generate once per candidate.
type Assignment map[int]int

// ValidAssignment checks the bipartite-matching invariant: every state
// group from 0..numGroups-1 is assigned to exactly one stage in
// 0..numStages-1.
func ValidAssignment(a Assignment, numGroups, numStages int) bool {
	if len(a) != numGroups {
		return false
	}
	for g := 0; g < numGroups; g++ {
		stage, ok := a[g]
		if !ok || stage < 0 || stage >= numStages {
			return false
		}
	}
	return true
}

// AllAssignments enumerates the full S^G space of group→stage
// assignments in a deterministic order, the search space
// solver_driver.go's parallel codegen walks.
func AllAssignments(numGroups, numStages int) []Assignment {
	if numGroups == 0 {
		return []Assignment{{}}
	}
	var out []Assignment
	var rec func(g int, cur Assignment)
	rec = func(g int, cur Assignment) {
		if g == numGroups {
			cp := make(Assignment, len(cur))
			for k, v := range cur {
				cp[k] = v
			}
			out = append(out, cp)
			return
		}
		for s := 0; s < numStages; s++ {
			cur[g] = s
			rec(g+1, cur)
		}
	}
	rec(0, Assignment{})
	return out
}

// GridGenerator renders a complete pipeline-grid sketch program: S
// pipeline stages, each with N stateless ALU columns and one stateful
// ALU per state group assigned to that stage, wired together by
// operand and output multiplexers (spec.md §4.3).
type GridGenerator struct {
	cfg        *Config
	log        *logrus.Logger
	sketchName string
}

// NewGridGenerator builds a generator that namespaces every allocator
// hole it emits under sketchName (spec.md §6's stable
// `<sketch>_salu_config_<stage>_<group>` convention). An empty
// sketchName falls back to "sketch".
func NewGridGenerator(cfg *Config, log *logrus.Logger, sketchName string) *GridGenerator {
	if sketchName == "" {
		sketchName = "sketch"
	}
	return &GridGenerator{cfg: cfg, log: log, sketchName: sketchName}
}

// muxCache avoids emitting the same N-ary mux helper twice within one
// generated sketch: every operand and output mux of the same arity
// shares one helper function, specialized only by the hole that drives
// its selector.
type muxCache struct {
	seen    map[int]bool
	builder *strings.Builder
}

func newMuxCache() *muxCache { return &muxCache{seen: map[int]bool{}, builder: &strings.Builder{}} }

func muxHelperName(arity int) string { return fmt.Sprintf("mux_%d", arity) }

// muxSelectWidth returns the number of bits needed to select among n
// options (ceil(log2(n)), minimum 1).
func muxSelectWidth(n int) int {
	if n <= 1 {
		return 1
	}
	return bits.Len(uint(n - 1))
}

// ensure returns the name of the shared arity-ary mux helper, writing
// its definition the first time it's requested. Arities below 2 have
// nothing to select between, so callers with a single source must
// bypass the mux entirely rather than calling ensure.
func (mc *muxCache) ensure(arity int) string {
	name := muxHelperName(arity)
	if mc.seen[arity] || arity < 2 {
		return name
	}
	mc.seen[arity] = true

	var b strings.Builder
	b.WriteString(fmt.Sprintf("int %s(", name))
	for i := 0; i < arity; i++ {
		b.WriteString(fmt.Sprintf("int op%d, ", i))
	}
	b.WriteString("int choice) {\n")
	for i := 0; i < arity; i++ {
		kw := "if"
		if i > 0 {
			kw = "else if"
		}
		if i == arity-1 {
			b.WriteString(fmt.Sprintf("  else return op%d;\n", i))
			break
		}
		b.WriteString(fmt.Sprintf("  %s (choice == %d) return op%d;\n", kw, i, i))
	}
	b.WriteString("}\n\n")
	mc.builder.WriteString(b.String())
	return name
}

// AllocatorHoleName is the stable name of the 1-bit hole recording
// whether group's stateful ALU sits at stage (spec.md §6), grounded on
// compiler.py's parallel_codegen:
// `self.sketch_name + "_salu_config_" + stage + "_" + state_group"`.
func AllocatorHoleName(sketchName string, stage, group int) string {
	return fmt.Sprintf("%s_salu_config_%d_%d", sketchName, stage, group)
}

// emitSelect picks among sources: with one source it returns that value
// directly (nothing to choose, no hole spent); with more than one it
// registers a fresh mux-selector hole, emits a call to the shared mux
// helper, and writes the selection into a newly declared local
// variable named resultVar.
func emitSelect(body *strings.Builder, registry *HoleRegistry, mc *muxCache, holeName, resultVar string, sources []string) {
	if len(sources) == 1 {
		body.WriteString(fmt.Sprintf("  int %s = %s;\n", resultVar, sources[0]))
		return
	}
	width := muxSelectWidth(len(sources))
	registry.Add(holeName, width)
	muxName := mc.ensure(len(sources))
	body.WriteString(fmt.Sprintf("  int %s = %s(%s, %s);\n", resultVar, muxName, strings.Join(sources, ", "), holeName))
}

// Generate compiles the stateless and stateful ALU templates into one
// stage*column grid under the given group→stage assignment, wires the
// grid's operand/output muxes into a real `pipeline` function, emits
// the state allocator's bipartite-matching holes and their constraints,
// embeds the target program as `program`, and renders the requested
// harness mode. fixedHoles supplies concrete values (SOLVERIFY/CEXGEN
// callers pass the solved assignment); it is applied whatever the mode,
// and every hole missing from it is left as a solver-chosen `??`.
func (g *GridGenerator) Generate(
	mode Mode,
	program *SpecProgram,
	statelessTmpl, statefulTmpl *TemplateNode,
	numStages, numAlusPerStage int,
	assignment Assignment,
	fixedHoles map[string]int,
	extraConstraints []string,
) (string, *HoleRegistry, error) {
	if !ValidAssignment(assignment, program.NumStateGroups, numStages) {
		return "", nil, ConfigError{Message: fmt.Sprintf(
			"assignment must map each of %d state groups to one of %d stages", program.NumStateGroups, numStages)}
	}

	constWidth := g.cfg.GetInt("synth.const_hole_width")
	registry := NewHoleRegistry()
	var helpers, instances, pipelineBody strings.Builder
	mc := newMuxCache()

	// containers holds the current stage's N input-container variable
	// names; it's reseated to the next stage's output-mux results as
	// the loop below progresses.
	containers := make([]string, numAlusPerStage)
	for i := range containers {
		if i < program.NumPacketFields {
			containers[i] = fmt.Sprintf("x.pkt_%d", i)
		} else {
			containers[i] = "0"
		}
	}

	// Group state is threaded through exactly one stage's stateful ALU
	// (each group is assigned to a single stage), so its runtime
	// variables are declared and seeded from the input record once,
	// ahead of the stage loop, rather than per stage.
	for grp := 0; grp < program.NumStateGroups; grp++ {
		for k, sv := range statefulTmpl.StateVars {
			varName := groupStateVar(grp, sv)
			pipelineBody.WriteString(fmt.Sprintf("  int %s = x.state_group_%d_state_%d;\n", varName, grp, k))
		}
	}

	for s := 0; s < numStages; s++ {
		pipelineBody.WriteString(fmt.Sprintf("  // stage %d\n", s))

		stageOuts := make([]string, numAlusPerStage)
		for col := 0; col < numAlusPerStage; col++ {
			instance := fmt.Sprintf("stage%d_col%d", s, col)
			ht, ft, reg, err := CompileALU(statelessTmpl, instance, constWidth)
			if err != nil {
				return "", nil, err
			}
			helpers.WriteString(ht)
			instances.WriteString(ft + "\n\n")

			operands := make([]string, len(statelessTmpl.PacketFields))
			for slot := range operands {
				resultVar := fmt.Sprintf("op_s%d_c%d_%d", s, col, slot)
				holeName := fmt.Sprintf("%s_operand_mux_s%d_c%d_%d", g.sketchName, s, col, slot)
				emitSelect(&pipelineBody, registry, mc, holeName, resultVar, containers)
				operands[slot] = resultVar
			}

			callArgs := make([]string, 0, len(statelessTmpl.StateVars)+len(operands)+len(statelessTmpl.HoleVars))
			for range statelessTmpl.StateVars {
				callArgs = append(callArgs, "0")
			}
			callArgs = append(callArgs, operands...)
			for range statelessTmpl.HoleVars {
				callArgs = append(callArgs, "0")
			}
			for _, lh := range LocalHoleNames(reg, instance) {
				callArgs = append(callArgs, instance+"_"+lh)
			}
			registry.Merge(reg)

			outVar := fmt.Sprintf("out_s%d_c%d", s, col)
			pipelineBody.WriteString(fmt.Sprintf("  int %s = %s(%s);\n", outVar, instance, strings.Join(callArgs, ", ")))
			stageOuts[col] = outVar
		}

		for grp := 0; grp < program.NumStateGroups; grp++ {
			if assignment[grp] != s {
				continue
			}
			instance := fmt.Sprintf("stage%d_salu%d", s, grp)
			ht, ft, reg, err := CompileALU(statefulTmpl, instance, constWidth)
			if err != nil {
				return "", nil, err
			}
			helpers.WriteString(ht)
			instances.WriteString(ft + "\n\n")

			operands := make([]string, len(statefulTmpl.PacketFields))
			for slot := range operands {
				resultVar := fmt.Sprintf("op_s%d_salu%d_%d", s, grp, slot)
				holeName := fmt.Sprintf("%s_operand_mux_salu_s%d_g%d_%d", g.sketchName, s, grp, slot)
				emitSelect(&pipelineBody, registry, mc, holeName, resultVar, containers)
				operands[slot] = resultVar
			}

			callArgs := make([]string, 0, len(statefulTmpl.StateVars)+len(operands)+len(statefulTmpl.HoleVars))
			for _, sv := range statefulTmpl.StateVars {
				callArgs = append(callArgs, groupStateVar(grp, sv))
			}
			callArgs = append(callArgs, operands...)
			for range statefulTmpl.HoleVars {
				callArgs = append(callArgs, "0")
			}
			for _, lh := range LocalHoleNames(reg, instance) {
				callArgs = append(callArgs, instance+"_"+lh)
			}
			registry.Merge(reg)

			retVar := instance + "_ret"
			pipelineBody.WriteString(fmt.Sprintf("  %s_state %s = %s(%s);\n", instance, retVar, instance, strings.Join(callArgs, ", ")))
			for _, sv := range statefulTmpl.StateVars {
				pipelineBody.WriteString(fmt.Sprintf("  %s = %s.%s;\n", groupStateVar(grp, sv), retVar, sv))
			}
		}

		nextContainers := make([]string, numAlusPerStage)
		for col := 0; col < numAlusPerStage; col++ {
			resultVar := fmt.Sprintf("c_s%d_%d", s+1, col)
			holeName := fmt.Sprintf("%s_output_mux_s%d_c%d", g.sketchName, s, col)
			emitSelect(&pipelineBody, registry, mc, holeName, resultVar, stageOuts)
			nextContainers[col] = resultVar
		}
		containers = nextContainers
	}

	finalResultVar := "pipeline_out"
	emitSelect(&pipelineBody, registry, mc, g.sketchName+"_final_output_mux", finalResultVar, containers)
	pipelineBody.WriteString(fmt.Sprintf("  return %s;\n", finalResultVar))

	// State allocator bipartite-matching holes (spec.md §3/§4.3/§6/§8):
	// one 1-bit salu_config hole per (stage, group) pair, a sum-to-one
	// constraint per group, and pin constraints matching the caller's
	// chosen assignment, grounded on compiler.py's parallel_codegen
	// (`sketch_name_salu_config_<stage>_<state_group> == 1/0`).
	var allocator strings.Builder
	for grp := 0; grp < program.NumStateGroups; grp++ {
		terms := make([]string, numStages)
		for s := 0; s < numStages; s++ {
			name := AllocatorHoleName(g.sketchName, s, grp)
			registry.Add(name, 1)
			terms[s] = name
			pinned := 0
			if assignment[grp] == s {
				pinned = 1
			}
			allocator.WriteString(fmt.Sprintf("assert (%s == %d);\n", name, pinned))
		}
		allocator.WriteString(fmt.Sprintf("assert (%s == 1);\n", strings.Join(terms, " + ")))
	}

	structDecl := stateAndPacketStruct(program, statefulTmpl)

	var pipelineFn strings.Builder
	pipelineFn.WriteString("int pipeline(|StateAndPacket| x) {\n")
	pipelineFn.WriteString(pipelineBody.String())
	pipelineFn.WriteString("}\n\n")

	oracle := program.Source
	if strings.TrimSpace(oracle) == "" {
		oracle = "int program(|StateAndPacket| state_and_packet) {\n  return 0;\n}\n"
	}

	g.log.WithFields(logrus.Fields{
		"stages":       numStages,
		"columns":      numAlusPerStage,
		"state_groups": program.NumStateGroups,
		"total_holes":  registry.TotalBits(),
		"mode":         mode.String(),
	}).Info("generated pipeline grid")

	holeDecls := declareHoles(registry, fixedHoles)
	harness, err := renderHarness(mode)
	if err != nil {
		return "", nil, err
	}

	var out strings.Builder
	out.WriteString(mc.builder.String())
	out.WriteString(structDecl)
	out.WriteString(helpers.String())
	out.WriteString(instances.String())
	out.WriteString(pipelineFn.String())
	out.WriteString(oracle)
	out.WriteString("\n")
	out.WriteString(holeDecls)
	out.WriteString(allocator.String())
	for _, c := range extraConstraints {
		out.WriteString(c)
		out.WriteString("\n")
	}
	out.WriteString(harness)
	return out.String(), registry, nil
}

// groupStateVar names the runtime variable carrying one state group's
// one state-var value across the single stage its stateful ALU runs
// at.
func groupStateVar(group int, stateVar string) string {
	return fmt.Sprintf("g%d_%s", group, stateVar)
}

// stateAndPacketStruct declares the |StateAndPacket| input record:
// one field per packet index the program reads, and one field per
// (group, slot) pair the stateful template's own state-var count
// implies, so the declaration always matches what pipeline() and the
// embedded oracle actually reference.
func stateAndPacketStruct(program *SpecProgram, statefulTmpl *TemplateNode) string {
	var b strings.Builder
	b.WriteString("struct |StateAndPacket| {\n")
	for i := 0; i < program.NumPacketFields; i++ {
		b.WriteString(fmt.Sprintf("  int pkt_%d;\n", i))
	}
	for grp := 0; grp < program.NumStateGroups; grp++ {
		for k := range statefulTmpl.StateVars {
			b.WriteString(fmt.Sprintf("  int state_group_%d_state_%d;\n", grp, k))
		}
	}
	b.WriteString("}\n\n")
	return b.String()
}

// declareHoles emits one declaration per registered hole: a literal
// value for any hole fixed by the caller (SOLVERIFY/CEXGEN), or an
// unconstrained `??(width)` site for the solver to fill in otherwise.
func declareHoles(registry *HoleRegistry, fixedHoles map[string]int) string {
	var b strings.Builder
	for _, h := range registry.All() {
		if v, ok := fixedHoles[h.Name]; ok {
			b.WriteString(fmt.Sprintf("int %s = %d;\n", h.Name, v))
		} else {
			b.WriteString(fmt.Sprintf("int %s = ??(%d);\n", h.Name, h.Width))
		}
	}
	return b.String()
}

// Merge copies every hole from other into r, preserving registration
// order. It's used to fold each compiled ALU instance's per-instance
// registry into the grid's single master registry.
func (r *HoleRegistry) Merge(other *HoleRegistry) {
	for _, h := range other.All() {
		r.Add(h.Name, h.Width)
	}
}

// harnessTemplate renders the per-mode assertion that exercises
// `pipeline` and `program`, both now real emitted functions (spec.md
// §4.3): CODEGEN asks the solver for any hole assignment making the
// two agree; OPTVERIFY and SOLVERIFY emit that same assertion unchanged
// (the fixed holes and the input range come from the caller, not from
// the harness); CEXGEN negates the same assertion so the solver returns
// a model witnessing disagreement instead.
var harnessTemplate = template.Must(template.New("harness").Parse(`
{{- if eq .Mode "CODEGEN" }}
harness void sketch_codegen(|StateAndPacket| x) {
  assert (pipeline(x) == program(x));
}
{{- else if eq .Mode "OPTVERIFY" }}
harness void sketch_optverify(|StateAndPacket| x) {
  assert (pipeline(x) == program(x));
}
{{- else if eq .Mode "SOLVERIFY" }}
harness void sketch_solverify(|StateAndPacket| x) {
  assert (pipeline(x) == program(x));
}
{{- else }}
harness void sketch_cexgen(|StateAndPacket| x) {
  assert !(pipeline(x) == program(x));
}
{{- end }}
`))

type harnessData struct {
	Mode string
}

func renderHarness(mode Mode) (string, error) {
	var b strings.Builder
	if err := harnessTemplate.Execute(&b, harnessData{Mode: mode.String()}); err != nil {
		return "", err
	}
	return b.String(), nil
}
