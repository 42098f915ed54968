package chipc

import (
	"regexp"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidAssignment(t *testing.T) {
	assert.True(t, ValidAssignment(Assignment{0: 1, 1: 0}, 2, 2))
	assert.False(t, ValidAssignment(Assignment{0: 1}, 2, 2))
	assert.False(t, ValidAssignment(Assignment{0: 1, 1: 5}, 2, 2))
}

func TestAllAssignmentsEnumeratesFullSpace(t *testing.T) {
	all := AllAssignments(2, 3)
	assert.Len(t, all, 9) // 3^2
	for _, a := range all {
		assert.True(t, ValidAssignment(a, 2, 3))
	}
}

func TestAllAssignmentsZeroGroups(t *testing.T) {
	all := AllAssignments(0, 3)
	require.Len(t, all, 1)
	assert.Empty(t, all[0])
}

func TestMuxSelectWidth(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, muxSelectWidth(c.n), "n=%d", c.n)
	}
}

func TestGridGeneratorGenerateSmoke(t *testing.T) {
	stateless := mustParse(t, `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return Mux2(pkt_0, pkt_1);
}`)
	stateful := mustParse(t, `
stateful
state: s0;
packet: pkt_0;
hole: ;
{
  s0 = s0 + pkt_0;
}`)

	program := &SpecProgram{NumPacketFields: 2, NumStateGroups: 1}
	cfg := NewConfig()
	log := NewLogger(logrus.ErrorLevel)
	gg := NewGridGenerator(cfg, log, "sketch")

	assignment := Assignment{0: 0}
	src, registry, err := gg.Generate(CODEGEN, program, stateless, stateful, 2, 2, assignment, nil, nil)
	require.NoError(t, err)
	assert.Contains(t, src, "sketch_codegen")
	assert.Greater(t, len(registry.All()), 0)
}

func TestGridGeneratorGenerateRejectsInvalidAssignment(t *testing.T) {
	stateless := mustParse(t, `
stateless
state: ;
packet: pkt_0;
hole: ;
{
  return pkt_0;
}`)
	stateful := mustParse(t, `
stateful
state: s0;
packet: pkt_0;
hole: ;
{
  s0 = pkt_0;
}`)
	program := &SpecProgram{NumPacketFields: 1, NumStateGroups: 2}
	cfg := NewConfig()
	log := NewLogger(logrus.ErrorLevel)
	gg := NewGridGenerator(cfg, log, "sketch")

	_, _, err := gg.Generate(CODEGEN, program, stateless, stateful, 2, 1, Assignment{0: 0}, nil, nil)
	require.Error(t, err)
	_, ok := err.(ConfigError)
	assert.True(t, ok)
}

// definedFnRe matches every function (or stateful-instance, which
// returns a "<name>_state" struct) definition in a generated sketch.
var definedFnRe = regexp.MustCompile(`(?m)^(?:int|\S+_state) (\w+)\(`)

// TestGridGeneratorGenerateDefinesEveryCalledFunction is the "no
// dangling references" test a reviewer asked for: the harness asserts
// over pipeline(x) and program(x), and pipeline's body in turn calls
// every per-stage ALU instance and mux helper it wires up. Every one of
// those names must have an actual definition in the emitted sketch.
func TestGridGeneratorGenerateDefinesEveryCalledFunction(t *testing.T) {
	stateless := mustParse(t, `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return Mux2(pkt_0, pkt_1);
}`)
	stateful := mustParse(t, `
stateful
state: s0;
packet: pkt_0;
hole: ;
{
  s0 = s0 + pkt_0;
}`)

	program := &SpecProgram{
		NumPacketFields: 2,
		NumStateGroups:  1,
		Source:          "int program(|StateAndPacket| state_and_packet) {\n  return state_and_packet.pkt_0;\n}\n",
	}
	cfg := NewConfig()
	log := NewLogger(logrus.ErrorLevel)
	gg := NewGridGenerator(cfg, log, "sketch")

	assignment := Assignment{0: 1}
	src, _, err := gg.Generate(CODEGEN, program, stateless, stateful, 2, 2, assignment, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, src, "assert (pipeline(x) == program(x));")
	assert.Contains(t, src, "int pipeline(|StateAndPacket| x) {")
	assert.Contains(t, src, "int program(|StateAndPacket| state_and_packet) {")

	defined := map[string]bool{}
	for _, m := range definedFnRe.FindAllStringSubmatch(src, -1) {
		defined[m[1]] = true
	}

	for _, want := range []string{
		"pipeline", "program",
		"stage0_col0", "stage0_col1", "stage1_col0", "stage1_col1",
		"stage1_salu0",
		"mux_2",
	} {
		assert.True(t, defined[want], "sketch calls %q but never defines it", want)
	}
}

// TestGridGeneratorGenerateEmitsAllocatorConstraints exercises the
// bipartite-matching allocator holes (spec.md §3/§4.3/§6/§8): one
// salu_config hole per (stage, group), pinned to the caller's
// assignment, plus a sum-to-one constraint per group.
func TestGridGeneratorGenerateEmitsAllocatorConstraints(t *testing.T) {
	stateless := mustParse(t, `
stateless
state: ;
packet: pkt_0;
hole: ;
{
  return pkt_0;
}`)
	stateful := mustParse(t, `
stateful
state: s0;
packet: pkt_0;
hole: ;
{
  s0 = pkt_0;
}`)
	program := &SpecProgram{NumPacketFields: 1, NumStateGroups: 1}
	cfg := NewConfig()
	log := NewLogger(logrus.ErrorLevel)
	gg := NewGridGenerator(cfg, log, "sketch")

	src, registry, err := gg.Generate(CODEGEN, program, stateless, stateful, 2, 1, Assignment{0: 1}, nil, nil)
	require.NoError(t, err)

	assert.Contains(t, src, "assert (sketch_salu_config_0_0 == 0);")
	assert.Contains(t, src, "assert (sketch_salu_config_1_0 == 1);")
	assert.Contains(t, src, "assert (sketch_salu_config_0_0 + sketch_salu_config_1_0 == 1);")

	_, ok0 := registry.Get("sketch_salu_config_0_0")
	_, ok1 := registry.Get("sketch_salu_config_1_0")
	assert.True(t, ok0)
	assert.True(t, ok1)
}
