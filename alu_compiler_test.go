package chipc

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *TemplateNode {
	t.Helper()
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	return tmpl
}

func TestCompileALUMux2EmitsHoleAndHelper(t *testing.T) {
	tmpl := mustParse(t, `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return Mux2(pkt_0, pkt_1);
}`)

	helpers, fn, registry, err := CompileALU(tmpl, "inst0", DefaultConstHoleWidth)
	require.NoError(t, err)

	assert.Contains(t, helpers, "int inst0_Mux2_0(int op1, int op2, int choice)")
	assert.Contains(t, fn, "inst0_Mux2_0(pkt_0,pkt_1,Mux2_0)")

	hole, ok := registry.Get("inst0_Mux2_0")
	require.True(t, ok)
	assert.Equal(t, WidthMux2, hole.Width)
}

func TestCompileALUConstHoleWidthConfigurable(t *testing.T) {
	tmpl := mustParse(t, `
stateless
state: ;
packet: ;
hole: ;
{
  return C();
}`)

	_, _, registry, err := CompileALU(tmpl, "inst0", 4)
	require.NoError(t, err)
	hole, ok := registry.Get("inst0_const_0")
	require.True(t, ok)
	assert.Equal(t, 4, hole.Width)
}

func TestCompileALUConstCounterIsMonotone(t *testing.T) {
	tmpl := mustParse(t, `
stateless
state: ;
packet: ;
hole: ;
{
  return C() + C();
}`)

	_, fn, registry, err := CompileALU(tmpl, "inst0", 2)
	require.NoError(t, err)
	assert.Contains(t, fn, "inst0_C_0(const_0)")
	assert.Contains(t, fn, "inst0_C_1(const_1)")

	_, ok0 := registry.Get("inst0_const_0")
	_, ok1 := registry.Get("inst0_const_1")
	assert.True(t, ok0)
	assert.True(t, ok1)
}

func TestCompileStatefulUpdateAppendsStateReturn(t *testing.T) {
	tmpl := mustParse(t, `
stateful
state: s0, s1;
packet: pkt_0;
hole: ;
{
  s0 = s0 + pkt_0;
}`)

	helpers, fn, _, err := CompileALU(tmpl, "salu0", 2)
	require.NoError(t, err)
	assert.Contains(t, helpers, "struct salu0_state {")
	assert.Contains(t, fn, "ret.s0 = s0;")
	assert.Contains(t, fn, "ret.s1 = s1;")
	assert.Contains(t, fn, "return ret;")
}

func TestHoleNamesUniqueAcrossInstances(t *testing.T) {
	tmpl := mustParse(t, `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return Mux2(pkt_0, pkt_1);
}`)

	master := NewHoleRegistry()
	for i := 0; i < 3; i++ {
		_, _, reg, err := CompileALU(tmpl, fmt.Sprintf("inst%d", i), 2)
		require.NoError(t, err)
		master.Merge(reg)
	}
	assert.Len(t, master.All(), 3)
}

// TestCompileALUSignatureClosure guards the §8 property a reviewer
// found broken: a compiled instance's signature must list every
// identifier its body references as a bare name. With nested
// constructs (a Mux2 and a rel_op, both nested inside another Mux2)
// multiple local holes are registered while the body is walked;
// the final parameter list must carry all of them, not just the
// template's declared state/packet/hole vars.
func TestCompileALUSignatureClosure(t *testing.T) {
	tmpl := mustParse(t, `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return Mux2(Mux2(pkt_0, pkt_1), rel_op(pkt_0, pkt_1));
}`)

	_, fn, registry, err := CompileALU(tmpl, "inst0", 2)
	require.NoError(t, err)

	locals := LocalHoleNames(registry, "inst0")
	require.NotEmpty(t, locals)

	want := append([]string{"int pkt_0", "int pkt_1"}, holeParams(locals)...)
	wantSig := "int inst0(" + strings.Join(want, ", ") + ") {"
	assert.Contains(t, fn, wantSig)

	// every local hole named in the signature must also appear as a
	// bare identifier somewhere in the body the signature wraps.
	body := strings.TrimPrefix(fn, wantSig)
	for _, h := range locals {
		assert.Contains(t, body, h, "hole %q missing from body though declared in signature", h)
	}
}

func TestSortedHoleNamesIsDeterministic(t *testing.T) {
	tmpl := mustParse(t, `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return Mux2(Mux2(pkt_0, pkt_1), pkt_0);
}`)
	_, _, registry, err := CompileALU(tmpl, "inst0", 2)
	require.NoError(t, err)

	names := SortedHoleNames(registry)
	require.Len(t, names, 2)
	assert.True(t, names[0] < names[1])
}
