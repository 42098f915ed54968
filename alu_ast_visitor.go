package chipc

// Visitor is the double-dispatch interface every ALU AST node accepts
// (spec.md §9 "the source uses a classical double-dispatch visitor").
// The compiler (alu_compiler.go) is the primary implementation; the
// pretty-printer (alu_ast_printer.go) is a second, independent one.
type Visitor interface {
	VisitTemplate(*TemplateNode) error
	VisitSimpleUpdate(*SimpleUpdateNode) error
	VisitReturn(*ReturnNode) error
	VisitIfCascade(*IfCascadeNode) error
	VisitUpdate(*UpdateNode) error
	VisitValue(*ValueNode) error
	VisitTrue(*TrueNode) error
	VisitConstant(*ConstantNode) error
	VisitPacketField(*PacketFieldNode) error
	VisitStateVar(*StateVarNode) error
	VisitHoleVar(*HoleVarNode) error
	VisitParen(*ParenNode) error
	VisitBinOp(*BinOpNode) error
	VisitArithOp(*ArithOpNode) error
	VisitRelOp(*RelOpNode) error
	VisitMux2(*Mux2Node) error
	VisitMux3(*Mux3Node) error
	VisitMux3WithNum(*Mux3WithNumNode) error
	VisitOpt(*OptNode) error
}
