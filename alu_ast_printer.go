package chipc

import "fmt"

// AstFormatToken classifies a piece of printed text for theming,
// mirroring the teacher's grammar_ast_printer.go.
type AstFormatToken int

const (
	AstFormatToken_None AstFormatToken = iota
	AstFormatToken_Span
	AstFormatToken_Operator
	AstFormatToken_Operand
)

// ppNode renders any ALU AST node as an indented ASCII tree, used by
// every node's PrettyString method for debugging and test fixtures.
func ppNode(n Node) string {
	pp := newTreePrinter(func(input string, _ AstFormatToken) string { return input })
	ap := &aluPrinter{pp}
	n.Accept(ap)
	return ap.output.String()
}

type aluPrinter struct {
	*treePrinter[AstFormatToken]
}

func (p *aluPrinter) writeOperator(op string) { p.write(op) }
func (p *aluPrinter) writeSpan(n Node)         { p.write(fmt.Sprintf(" (%s)", n.Range())) }
func (p *aluPrinter) writeSpanl(n Node)        { p.writeSpan(n); p.write("\n") }

func (p *aluPrinter) visitChild(label string, n Node, last bool) {
	p.pwrite(label)
	if last {
		p.indent("    ")
	} else {
		p.indent("│   ")
	}
	n.Accept(p)
	p.unindent()
	if !last {
		p.write("\n")
	}
}

func (p *aluPrinter) VisitTemplate(n *TemplateNode) error {
	kind := "Stateless"
	if n.Stateful {
		kind = "Stateful"
	}
	p.writeOperator("Template[" + kind + "]")
	p.writeSpanl(n)
	p.visitChild("└── ", n.Body, true)
	return nil
}

func (p *aluPrinter) VisitSimpleUpdate(n *SimpleUpdateNode) error {
	p.writeOperator("SimpleUpdate")
	p.writeSpanl(n)
	p.visitChild("└── ", n.Update, true)
	return nil
}

func (p *aluPrinter) VisitReturn(n *ReturnNode) error {
	p.writeOperator("Return")
	p.writeSpanl(n)
	p.visitChild("└── ", n.Expr, true)
	return nil
}

func (p *aluPrinter) VisitIfCascade(n *IfCascadeNode) error {
	p.writeOperator("IfCascade")
	p.writeSpanl(n)
	for _, b := range n.Branches {
		p.visitChild("├── ", b.Guard, false)
	}
	for i, u := range n.Else {
		p.visitChild("└── ", u, i == len(n.Else)-1)
	}
	return nil
}

func (p *aluPrinter) VisitUpdate(n *UpdateNode) error {
	p.writeOperator("Update[" + n.StateVar + "]")
	p.writeSpanl(n)
	p.visitChild("└── ", n.Expr, true)
	return nil
}

func (p *aluPrinter) VisitValue(n *ValueNode) error {
	p.writeOperator(fmt.Sprintf("Value[%d]", n.Value))
	p.writeSpan(n)
	return nil
}

func (p *aluPrinter) VisitTrue(n *TrueNode) error {
	p.writeOperator("True")
	p.writeSpan(n)
	return nil
}

func (p *aluPrinter) VisitConstant(n *ConstantNode) error {
	p.writeOperator("Constant")
	p.writeSpan(n)
	return nil
}

func (p *aluPrinter) VisitPacketField(n *PacketFieldNode) error {
	p.writeOperator("PacketField[" + n.Name + "]")
	p.writeSpan(n)
	return nil
}

func (p *aluPrinter) VisitStateVar(n *StateVarNode) error {
	p.writeOperator("StateVar[" + n.Name + "]")
	p.writeSpan(n)
	return nil
}

func (p *aluPrinter) VisitHoleVar(n *HoleVarNode) error {
	p.writeOperator("HoleVar[" + n.Name + "]")
	p.writeSpan(n)
	return nil
}

func (p *aluPrinter) VisitParen(n *ParenNode) error {
	p.writeOperator("Paren")
	p.writeSpanl(n)
	p.visitChild("└── ", n.Inner, true)
	return nil
}

func (p *aluPrinter) VisitBinOp(n *BinOpNode) error {
	p.writeOperator("BinOp[" + n.Op + "]")
	p.writeSpanl(n)
	p.visitChild("├── ", n.Left, false)
	p.visitChild("└── ", n.Right, true)
	return nil
}

func (p *aluPrinter) VisitArithOp(n *ArithOpNode) error {
	p.writeOperator("ArithOp")
	p.writeSpanl(n)
	p.visitChild("├── ", n.Left, false)
	p.visitChild("└── ", n.Right, true)
	return nil
}

func (p *aluPrinter) VisitRelOp(n *RelOpNode) error {
	p.writeOperator("RelOp")
	p.writeSpanl(n)
	p.visitChild("├── ", n.Left, false)
	p.visitChild("└── ", n.Right, true)
	return nil
}

func (p *aluPrinter) VisitMux2(n *Mux2Node) error {
	p.writeOperator("Mux2")
	p.writeSpanl(n)
	p.visitChild("├── ", n.A, false)
	p.visitChild("└── ", n.B, true)
	return nil
}

func (p *aluPrinter) VisitMux3(n *Mux3Node) error {
	p.writeOperator("Mux3")
	p.writeSpanl(n)
	p.visitChild("├── ", n.A, false)
	p.visitChild("├── ", n.B, false)
	p.visitChild("└── ", n.C, true)
	return nil
}

func (p *aluPrinter) VisitMux3WithNum(n *Mux3WithNumNode) error {
	p.writeOperator(fmt.Sprintf("Mux3WithNum[%d]", n.Num))
	p.writeSpanl(n)
	p.visitChild("├── ", n.A, false)
	p.visitChild("└── ", n.B, true)
	return nil
}

func (p *aluPrinter) VisitOpt(n *OptNode) error {
	p.writeOperator("Opt")
	p.writeSpanl(n)
	p.visitChild("└── ", n.Operand, true)
	return nil
}
