package chipc

import (
	"fmt"
	"strconv"
	"strings"
)

// Node is the interface implemented by every node in an ALU template's
// parse tree (spec.md §3 "ALU template AST"), mirroring the teacher's
// AstNode: every node knows its source span, can render itself back
// to text and to a tree, and accepts a visitor for compilation.
type Node interface {
	Range() Range
	String() string
	PrettyString() string
	Accept(Visitor) error
}

// ---- Template ----

// TemplateNode is the root of an ALU template: the five ordered
// sections of spec.md §4.1 (state indicator, state variables, packet
// fields, hole variables, body).
type TemplateNode struct {
	rg           Range
	Stateful     bool
	StateVars    []string
	PacketFields []string
	HoleVars     []string
	Body         Node
}

func NewTemplateNode(stateful bool, stateVars, packetFields, holeVars []string, body Node, rg Range) *TemplateNode {
	return &TemplateNode{
		rg:           rg,
		Stateful:     stateful,
		StateVars:    stateVars,
		PacketFields: packetFields,
		HoleVars:     holeVars,
		Body:         body,
	}
}

func (n *TemplateNode) Range() Range          { return n.rg }
func (n *TemplateNode) Accept(v Visitor) error { return v.VisitTemplate(n) }
func (n *TemplateNode) String() string {
	kind := "stateless"
	if n.Stateful {
		kind = "stateful"
	}
	return fmt.Sprintf("alu(%s, state=%v, pkt=%v, holes=%v)", kind, n.StateVars, n.PacketFields, n.HoleVars)
}
func (n *TemplateNode) PrettyString() string { return ppNode(n) }

// ---- Body variants ----

// SimpleUpdateNode is a stateful ALU body consisting of exactly one
// update and nothing else.
type SimpleUpdateNode struct {
	rg     Range
	Update *UpdateNode
}

func NewSimpleUpdateNode(u *UpdateNode, rg Range) *SimpleUpdateNode {
	return &SimpleUpdateNode{rg: rg, Update: u}
}

func (n *SimpleUpdateNode) Range() Range          { return n.rg }
func (n *SimpleUpdateNode) Accept(v Visitor) error { return v.VisitSimpleUpdate(n) }
func (n *SimpleUpdateNode) String() string         { return n.Update.String() }
func (n *SimpleUpdateNode) PrettyString() string   { return ppNode(n) }

// ReturnNode is a stateless ALU body's single `return expr;`.
type ReturnNode struct {
	rg   Range
	Expr Node
}

func NewReturnNode(expr Node, rg Range) *ReturnNode { return &ReturnNode{rg: rg, Expr: expr} }

func (n *ReturnNode) Range() Range          { return n.rg }
func (n *ReturnNode) Accept(v Visitor) error { return v.VisitReturn(n) }
func (n *ReturnNode) String() string         { return "return " + n.Expr.String() + ";" }
func (n *ReturnNode) PrettyString() string   { return ppNode(n) }

// IfBranch is one `if`/`elif` arm: a guard expression plus the
// updates that run when it holds.
type IfBranch struct {
	Guard   Node
	Updates []*UpdateNode
}

// IfCascadeNode is a stateful ALU body of the form
// `if g1 {u1} elif g2 {u2} ... else {uN}`.
type IfCascadeNode struct {
	rg       Range
	Branches []IfBranch
	Else     []*UpdateNode
}

func NewIfCascadeNode(branches []IfBranch, elseUpdates []*UpdateNode, rg Range) *IfCascadeNode {
	return &IfCascadeNode{rg: rg, Branches: branches, Else: elseUpdates}
}

func (n *IfCascadeNode) Range() Range          { return n.rg }
func (n *IfCascadeNode) Accept(v Visitor) error { return v.VisitIfCascade(n) }
func (n *IfCascadeNode) String() string {
	var s strings.Builder
	for i, b := range n.Branches {
		if i == 0 {
			s.WriteString("if (")
		} else {
			s.WriteString("elif (")
		}
		s.WriteString(b.Guard.String())
		s.WriteString(") {")
		for _, u := range b.Updates {
			s.WriteString(u.String())
		}
		s.WriteString("} ")
	}
	if n.Else != nil {
		s.WriteString("else {")
		for _, u := range n.Else {
			s.WriteString(u.String())
		}
		s.WriteString("}")
	}
	return s.String()
}
func (n *IfCascadeNode) PrettyString() string { return ppNode(n) }

// ---- Update ----

// UpdateNode is `state_var = expr;`.
type UpdateNode struct {
	rg       Range
	StateVar string
	Expr     Node
}

func NewUpdateNode(stateVar string, expr Node, rg Range) *UpdateNode {
	return &UpdateNode{rg: rg, StateVar: stateVar, Expr: expr}
}

func (n *UpdateNode) Range() Range          { return n.rg }
func (n *UpdateNode) Accept(v Visitor) error { return v.VisitUpdate(n) }
func (n *UpdateNode) String() string         { return n.StateVar + " = " + n.Expr.String() + ";" }
func (n *UpdateNode) PrettyString() string   { return ppNode(n) }

// ---- Expressions ----

// ValueNode is an integer literal.
type ValueNode struct {
	rg    Range
	Value int
}

func NewValueNode(v int, rg Range) *ValueNode { return &ValueNode{rg: rg, Value: v} }

func (n *ValueNode) Range() Range          { return n.rg }
func (n *ValueNode) Accept(v Visitor) error { return v.VisitValue(n) }
func (n *ValueNode) String() string         { return strconv.Itoa(n.Value) }
func (n *ValueNode) PrettyString() string   { return ppNode(n) }

// TrueNode is the boolean literal `true`.
type TrueNode struct{ rg Range }

func NewTrueNode(rg Range) *TrueNode { return &TrueNode{rg: rg} }

func (n *TrueNode) Range() Range          { return n.rg }
func (n *TrueNode) Accept(v Visitor) error { return v.VisitTrue(n) }
func (n *TrueNode) String() string         { return "true" }
func (n *TrueNode) PrettyString() string   { return ppNode(n) }

// ConstantNode is the `C()` marker: a fully parametric constant whose
// value is a synthesis hole (spec.md §4.2, construct `C()`).
type ConstantNode struct{ rg Range }

func NewConstantNode(rg Range) *ConstantNode { return &ConstantNode{rg: rg} }

func (n *ConstantNode) Range() Range          { return n.rg }
func (n *ConstantNode) Accept(v Visitor) error { return v.VisitConstant(n) }
func (n *ConstantNode) String() string         { return "C()" }
func (n *ConstantNode) PrettyString() string   { return ppNode(n) }

// PacketFieldNode references a packet field by name (e.g. pkt_0).
type PacketFieldNode struct {
	rg   Range
	Name string
}

func NewPacketFieldNode(name string, rg Range) *PacketFieldNode {
	return &PacketFieldNode{rg: rg, Name: name}
}

func (n *PacketFieldNode) Range() Range          { return n.rg }
func (n *PacketFieldNode) Accept(v Visitor) error { return v.VisitPacketField(n) }
func (n *PacketFieldNode) String() string         { return n.Name }
func (n *PacketFieldNode) PrettyString() string   { return ppNode(n) }

// StateVarNode references a state variable by name.
type StateVarNode struct {
	rg   Range
	Name string
}

func NewStateVarNode(name string, rg Range) *StateVarNode {
	return &StateVarNode{rg: rg, Name: name}
}

func (n *StateVarNode) Range() Range          { return n.rg }
func (n *StateVarNode) Accept(v Visitor) error { return v.VisitStateVar(n) }
func (n *StateVarNode) String() string         { return n.Name }
func (n *StateVarNode) PrettyString() string   { return ppNode(n) }

// HoleVarNode references a hole variable declared in the template's
// header by name; unlike ConstantNode (an anonymous, compiler-minted
// hole) this is a named hole the template author declared explicitly.
type HoleVarNode struct {
	rg   Range
	Name string
}

func NewHoleVarNode(name string, rg Range) *HoleVarNode {
	return &HoleVarNode{rg: rg, Name: name}
}

func (n *HoleVarNode) Range() Range          { return n.rg }
func (n *HoleVarNode) Accept(v Visitor) error { return v.VisitHoleVar(n) }
func (n *HoleVarNode) String() string         { return n.Name }
func (n *HoleVarNode) PrettyString() string   { return ppNode(n) }

// ParenNode preserves explicit parenthesization around an expression.
type ParenNode struct {
	rg    Range
	Inner Node
}

func NewParenNode(inner Node, rg Range) *ParenNode { return &ParenNode{rg: rg, Inner: inner} }

func (n *ParenNode) Range() Range          { return n.rg }
func (n *ParenNode) Accept(v Visitor) error { return v.VisitParen(n) }
func (n *ParenNode) String() string         { return "(" + n.Inner.String() + ")" }
func (n *ParenNode) PrettyString() string   { return ppNode(n) }

// BinOpNode is a non-parametric binary operator: arithmetic (+, -) or
// logical/comparison (&&, ||, ==, !=, <, >, <=, >=) that map one-for-
// one into the generated code (spec.md §4.2 "Comparison and logical
// operators map one-for-one").
type BinOpNode struct {
	rg          Range
	Op          string
	Left, Right Node
}

func NewBinOpNode(op string, left, right Node, rg Range) *BinOpNode {
	return &BinOpNode{rg: rg, Op: op, Left: left, Right: right}
}

func (n *BinOpNode) Range() Range          { return n.rg }
func (n *BinOpNode) Accept(v Visitor) error { return v.VisitBinOp(n) }
func (n *BinOpNode) String() string {
	return n.Left.String() + n.Op + n.Right.String()
}
func (n *BinOpNode) PrettyString() string { return ppNode(n) }

// ArithOpNode is the parametric `arith_op(a,b)` construct: a hole
// selects between `+` and `-` at synthesis time (spec.md §4.2).
type ArithOpNode struct {
	rg          Range
	Left, Right Node
}

func NewArithOpNode(left, right Node, rg Range) *ArithOpNode {
	return &ArithOpNode{rg: rg, Left: left, Right: right}
}

func (n *ArithOpNode) Range() Range          { return n.rg }
func (n *ArithOpNode) Accept(v Visitor) error { return v.VisitArithOp(n) }
func (n *ArithOpNode) String() string {
	return "arith_op(" + n.Left.String() + "," + n.Right.String() + ")"
}
func (n *ArithOpNode) PrettyString() string { return ppNode(n) }

// RelOpNode is the parametric `rel_op(a,b)` construct: a 2-bit hole
// selects among !=, <, >, == (spec.md §4.2).
type RelOpNode struct {
	rg          Range
	Left, Right Node
}

func NewRelOpNode(left, right Node, rg Range) *RelOpNode {
	return &RelOpNode{rg: rg, Left: left, Right: right}
}

func (n *RelOpNode) Range() Range          { return n.rg }
func (n *RelOpNode) Accept(v Visitor) error { return v.VisitRelOp(n) }
func (n *RelOpNode) String() string {
	return "rel_op(" + n.Left.String() + "," + n.Right.String() + ")"
}
func (n *RelOpNode) PrettyString() string { return ppNode(n) }

// Mux2Node is `Mux2(a,b)`: a 1-bit hole picks one of two operands.
type Mux2Node struct {
	rg    Range
	A, B  Node
}

func NewMux2Node(a, b Node, rg Range) *Mux2Node { return &Mux2Node{rg: rg, A: a, B: b} }

func (n *Mux2Node) Range() Range          { return n.rg }
func (n *Mux2Node) Accept(v Visitor) error { return v.VisitMux2(n) }
func (n *Mux2Node) String() string {
	return "Mux2(" + n.A.String() + "," + n.B.String() + ")"
}
func (n *Mux2Node) PrettyString() string { return ppNode(n) }

// Mux3Node is `Mux3(a,b,c)`: a 2-bit hole picks one of three operands.
type Mux3Node struct {
	rg       Range
	A, B, C Node
}

func NewMux3Node(a, b, c Node, rg Range) *Mux3Node { return &Mux3Node{rg: rg, A: a, B: b, C: c} }

func (n *Mux3Node) Range() Range          { return n.rg }
func (n *Mux3Node) Accept(v Visitor) error { return v.VisitMux3(n) }
func (n *Mux3Node) String() string {
	return "Mux3(" + n.A.String() + "," + n.B.String() + "," + n.C.String() + ")"
}
func (n *Mux3Node) PrettyString() string { return ppNode(n) }

// Mux3WithNumNode is `Mux3WithNum(a,b,N)`: like Mux3 but the third
// operand is a literal integer baked into the generated helper rather
// than an operand expression (spec.md §4.2).
type Mux3WithNumNode struct {
	rg    Range
	A, B  Node
	Num   int
}

func NewMux3WithNumNode(a, b Node, num int, rg Range) *Mux3WithNumNode {
	return &Mux3WithNumNode{rg: rg, A: a, B: b, Num: num}
}

func (n *Mux3WithNumNode) Range() Range          { return n.rg }
func (n *Mux3WithNumNode) Accept(v Visitor) error { return v.VisitMux3WithNum(n) }
func (n *Mux3WithNumNode) String() string {
	return fmt.Sprintf("Mux3WithNum(%s,%s,%d)", n.A.String(), n.B.String(), n.Num)
}
func (n *Mux3WithNumNode) PrettyString() string { return ppNode(n) }

// OptNode is `Opt(a)`: predicated zeroing, a 1-bit hole that either
// passes the operand through or forces it to zero (spec.md §4.2).
type OptNode struct {
	rg      Range
	Operand Node
}

func NewOptNode(operand Node, rg Range) *OptNode { return &OptNode{rg: rg, Operand: operand} }

func (n *OptNode) Range() Range          { return n.rg }
func (n *OptNode) Accept(v Visitor) error { return v.VisitOpt(n) }
func (n *OptNode) String() string         { return "Opt(" + n.Operand.String() + ")" }
func (n *OptNode) PrettyString() string   { return ppNode(n) }
