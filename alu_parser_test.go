package chipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatelessSimpleReturn(t *testing.T) {
	src := `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return pkt_0 + pkt_1;
}`
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	assert.False(t, tmpl.Stateful)
	assert.Empty(t, tmpl.StateVars)
	assert.Equal(t, []string{"pkt_0", "pkt_1"}, tmpl.PacketFields)

	ret, ok := tmpl.Body.(*ReturnNode)
	require.True(t, ok)
	bin, ok := ret.Expr.(*BinOpNode)
	require.True(t, ok)
	assert.Equal(t, "+", bin.Op)
}

func TestParseStatelessRejectsStateVars(t *testing.T) {
	src := `
stateless
state: s0;
packet: ;
hole: ;
{
  return 1;
}`
	_, err := ParseTemplate(src)
	require.Error(t, err)
}

func TestParseStatefulSimpleUpdate(t *testing.T) {
	src := `
stateful
state: s0;
packet: pkt_0;
hole: ;
{
  s0 = s0 + pkt_0;
}`
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	assert.True(t, tmpl.Stateful)

	upd, ok := tmpl.Body.(*SimpleUpdateNode)
	require.True(t, ok)
	assert.Equal(t, "s0", upd.Update.StateVar)
}

func TestParseIfElifElse(t *testing.T) {
	src := `
stateful
state: s0;
packet: pkt_0;
hole: ;
{
  if (pkt_0 == 0) {
    s0 = 0;
  } elif (pkt_0 == 1) {
    s0 = 1;
  } else {
    s0 = s0;
  }
}`
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)

	cascade, ok := tmpl.Body.(*IfCascadeNode)
	require.True(t, ok)
	require.Len(t, cascade.Branches, 2)
	require.Len(t, cascade.Else, 1)
}

func TestParseParametricConstructs(t *testing.T) {
	src := `
stateless
state: ;
packet: pkt_0, pkt_1;
hole: h0;
{
  return Mux2(rel_op(pkt_0, pkt_1), Opt(arith_op(pkt_0, C())));
}`
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"h0"}, tmpl.HoleVars)

	ret := tmpl.Body.(*ReturnNode)
	mux2, ok := ret.Expr.(*Mux2Node)
	require.True(t, ok)

	_, ok = mux2.A.(*RelOpNode)
	require.True(t, ok)

	opt, ok := mux2.B.(*OptNode)
	require.True(t, ok)
	arith, ok := opt.Operand.(*ArithOpNode)
	require.True(t, ok)
	_, ok = arith.Right.(*ConstantNode)
	require.True(t, ok)
}

func TestParseMux3WithNum(t *testing.T) {
	src := `
stateless
state: ;
packet: pkt_0;
hole: ;
{
  return Mux3WithNum(pkt_0, pkt_0, 7);
}`
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	ret := tmpl.Body.(*ReturnNode)
	m, ok := ret.Expr.(*Mux3WithNumNode)
	require.True(t, ok)
	assert.Equal(t, 7, m.Num)
}

func TestParseRoundTripPrettyString(t *testing.T) {
	src := `
stateless
state: ;
packet: pkt_0;
hole: ;
{
  return pkt_0;
}`
	tmpl, err := ParseTemplate(src)
	require.NoError(t, err)
	assert.Contains(t, tmpl.PrettyString(), "Template")
	assert.Contains(t, tmpl.PrettyString(), "Return")
}
