package chipc

import (
	"fmt"
	"sort"
	"strings"
)

// AluCompiler lowers one ALU template AST into:
//   - a block of parametric helper functions, one per synthesis
//     construct instance (Mux2/Mux3/Mux3WithNum/rel_op/arith_op/Opt/C())
//   - the compiled instance function itself, calling those helpers
//   - the HoleRegistry describing every hole the helpers introduced
//
// It implements Visitor directly, mirroring
// stateless_alu_sketch_generator.py's single-buffer accumulation: one
// builder (out) receives the instance function body text as the AST is
// walked in order, and a second builder (helpers) accumulates the
// helper function definitions a construct's first visit emits.
type AluCompiler struct {
	instanceName  string
	constHoleWidth int

	registry *HoleRegistry
	helpers  strings.Builder
	out      strings.Builder

	mux2Count, mux3Count, relOpCount, arithOpCount, optCount, constCount int
}

// CompileALU compiles one template instance. constHoleWidth is the bit
// width given to each C() hole (Config key "synth.const_hole_width", default
// DefaultConstHoleWidth).
func CompileALU(tmpl *TemplateNode, instanceName string, constHoleWidth int) (helperText, functionText string, registry *HoleRegistry, err error) {
	c := &AluCompiler{
		instanceName:   instanceName,
		constHoleWidth: constHoleWidth,
		registry:       NewHoleRegistry(),
	}
	if err := c.compile(tmpl); err != nil {
		return "", "", nil, err
	}
	return c.helpers.String(), c.out.String(), c.registry, nil
}

// compile writes the instance function's body into c.out first, since
// the holes a construct registers (and therefore the trailing sorted
// parameter suffix below) aren't known until the body has been walked;
// the signature line is assembled last and prepended to the buffered
// body text.
func (c *AluCompiler) compile(tmpl *TemplateNode) error {
	baseParams := make([]string, 0, len(tmpl.StateVars)+len(tmpl.PacketFields)+len(tmpl.HoleVars))
	for _, s := range tmpl.StateVars {
		baseParams = append(baseParams, "int "+s)
	}
	for _, p := range tmpl.PacketFields {
		baseParams = append(baseParams, "int "+p)
	}
	for _, h := range tmpl.HoleVars {
		baseParams = append(baseParams, "int "+h)
	}

	if err := tmpl.Body.Accept(c); err != nil {
		return err
	}

	if tmpl.Stateful {
		c.out.WriteString("\n  " + c.instanceName + "_state ret;\n")
		for _, s := range tmpl.StateVars {
			c.out.WriteString(fmt.Sprintf("  ret.%s = %s;\n", s, s))
		}
		c.out.WriteString("  return ret;\n")
	}

	// The signature closure invariant (spec.md §4.2/§8): the parameter
	// list must equal state+packet+hole-var params followed by the
	// sorted list of every hole this instance registered, mirroring
	// stateless_alu_sketch_generator.py's
	// ','.join(['int '+h for h in sorted(self.stateless_alu_args)]).
	params := append(append([]string{}, baseParams...), holeParams(LocalHoleNames(c.registry, c.instanceName))...)

	body := c.out.String()
	c.out.Reset()
	if tmpl.Stateful {
		c.out.WriteString(c.instanceName + "_state " + c.instanceName + "(" + strings.Join(params, ", ") + ") {\n")
	} else {
		c.out.WriteString("int " + c.instanceName + "(" + strings.Join(params, ", ") + ") {\n")
	}
	c.out.WriteString(body)
	c.out.WriteString("}\n")

	if tmpl.Stateful {
		c.writeStateStruct(tmpl.StateVars)
	}
	return nil
}

func holeParams(names []string) []string {
	params := make([]string, len(names))
	for i, n := range names {
		params[i] = "int " + n
	}
	return params
}

func (c *AluCompiler) writeStateStruct(stateVars []string) {
	var s strings.Builder
	s.WriteString("struct " + c.instanceName + "_state {\n")
	for _, v := range stateVars {
		s.WriteString("  int " + v + ";\n")
	}
	s.WriteString("}\n\n")
	// the struct declaration is appended to the helper text, which is
	// emitted ahead of the instance functions, so it's in scope before
	// the instance function references it.
	c.helpers.WriteString(s.String())
}

// add_hole mirrors the original's add_hole: it registers the hole
// under a name namespaced by the instance, guaranteeing uniqueness
// across every instance compiled into the same sketch program.
func (c *AluCompiler) addHole(localName string, width int) {
	c.registry.Add(c.instanceName+"_"+localName, width)
}

// ---- body-level nodes ----

func (c *AluCompiler) VisitTemplate(n *TemplateNode) error { return n.Body.Accept(c) }

func (c *AluCompiler) VisitSimpleUpdate(n *SimpleUpdateNode) error {
	return n.Update.Accept(c)
}

func (c *AluCompiler) VisitReturn(n *ReturnNode) error {
	c.out.WriteString("  return ")
	if err := n.Expr.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(";\n")
	return nil
}

func (c *AluCompiler) VisitIfCascade(n *IfCascadeNode) error {
	for i, b := range n.Branches {
		if i == 0 {
			c.out.WriteString("  if (")
		} else {
			c.out.WriteString(" else if (")
		}
		if err := b.Guard.Accept(c); err != nil {
			return err
		}
		c.out.WriteString(") {\n")
		for _, u := range b.Updates {
			c.out.WriteString("  ")
			if err := u.Accept(c); err != nil {
				return err
			}
			c.out.WriteString("\n")
		}
		c.out.WriteString("  }")
	}
	if n.Else != nil {
		c.out.WriteString(" else {\n")
		for _, u := range n.Else {
			c.out.WriteString("  ")
			if err := u.Accept(c); err != nil {
				return err
			}
			c.out.WriteString("\n")
		}
		c.out.WriteString("  }")
	}
	c.out.WriteString("\n")
	return nil
}

func (c *AluCompiler) VisitUpdate(n *UpdateNode) error {
	c.out.WriteString(n.StateVar + " = ")
	if err := n.Expr.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(";")
	return nil
}

// ---- leaf expressions ----

func (c *AluCompiler) VisitValue(n *ValueNode) error {
	c.out.WriteString(fmt.Sprintf("%d", n.Value))
	return nil
}

func (c *AluCompiler) VisitTrue(n *TrueNode) error {
	c.out.WriteString("true")
	return nil
}

func (c *AluCompiler) VisitPacketField(n *PacketFieldNode) error {
	c.out.WriteString(n.Name)
	return nil
}

func (c *AluCompiler) VisitStateVar(n *StateVarNode) error {
	c.out.WriteString(n.Name)
	return nil
}

func (c *AluCompiler) VisitHoleVar(n *HoleVarNode) error {
	c.out.WriteString(n.Name)
	return nil
}

func (c *AluCompiler) VisitParen(n *ParenNode) error {
	c.out.WriteString("(")
	if err := n.Inner.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(")")
	return nil
}

func (c *AluCompiler) VisitBinOp(n *BinOpNode) error {
	if err := n.Left.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(n.Op)
	return n.Right.Accept(c)
}

// ---- parametric constructs ----

func (c *AluCompiler) VisitConstant(n *ConstantNode) error {
	idx := c.constCount
	c.constCount++
	name := fmt.Sprintf("C_%d", idx)
	holeName := fmt.Sprintf("const_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(" + holeName + ")")
	c.helpers.WriteString(fmt.Sprintf(
		"int %s_%s(int %s) {\n  return %s;\n}\n\n",
		c.instanceName, name, holeName, holeName))
	c.addHole(holeName, c.constHoleWidth)
	return nil
}

// VisitMux2 and the other parametric-construct visitors below reserve
// their index and increment the shared counter before recursing into
// operand subtrees, so a construct nested inside its own operand (e.g.
// Mux2(Mux2(a,b), c)) never reuses the outer instance's number.
func (c *AluCompiler) VisitMux2(n *Mux2Node) error {
	idx := c.mux2Count
	c.mux2Count++
	name := fmt.Sprintf("Mux2_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(")
	if err := n.A.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(",")
	if err := n.B.Accept(c); err != nil {
		return err
	}
	c.out.WriteString("," + name + ")")
	c.helpers.WriteString(fmt.Sprintf(
		"int %s_%s(int op1, int op2, int choice) {\n  if (choice == 0) return op1;\n  else return op2;\n}\n\n",
		c.instanceName, name))
	c.addHole(name, WidthMux2)
	return nil
}

func (c *AluCompiler) VisitMux3(n *Mux3Node) error {
	idx := c.mux3Count
	c.mux3Count++
	name := fmt.Sprintf("Mux3_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(")
	if err := n.A.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(",")
	if err := n.B.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(",")
	if err := n.C.Accept(c); err != nil {
		return err
	}
	c.out.WriteString("," + name + ")")
	c.helpers.WriteString(fmt.Sprintf(
		"int %s_%s(int op1, int op2, int op3, int choice) {\n  if (choice == 0) return op1;\n  else if (choice == 1) return op2;\n  else return op3;\n}\n\n",
		c.instanceName, name))
	c.addHole(name, WidthMux3)
	return nil
}

func (c *AluCompiler) VisitMux3WithNum(n *Mux3WithNumNode) error {
	idx := c.mux3Count
	c.mux3Count++
	name := fmt.Sprintf("Mux3_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(")
	if err := n.A.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(",")
	if err := n.B.Accept(c); err != nil {
		return err
	}
	c.out.WriteString("," + name + ")")
	c.helpers.WriteString(fmt.Sprintf(
		"int %s_%s(int op1, int op2, int choice) {\n  if (choice == 0) return op1;\n  else if (choice == 1) return op2;\n  else return %d;\n}\n\n",
		c.instanceName, name, n.Num))
	c.addHole(name, WidthMux3WithNum)
	return nil
}

func (c *AluCompiler) VisitRelOp(n *RelOpNode) error {
	idx := c.relOpCount
	c.relOpCount++
	name := fmt.Sprintf("rel_op_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(")
	if err := n.Left.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(",")
	if err := n.Right.Accept(c); err != nil {
		return err
	}
	c.out.WriteString("," + name + ") == 1")
	c.helpers.WriteString(fmt.Sprintf(`int %s_%s(int operand1, int operand2, int opcode) {
  if (opcode == 0) {
    return (operand1 != operand2) ? 1 : 0;
  } else if (opcode == 1) {
    return (operand1 < operand2) ? 1 : 0;
  } else if (opcode == 2) {
    return (operand1 > operand2) ? 1 : 0;
  } else {
    return (operand1 == operand2) ? 1 : 0;
  }
}

`, c.instanceName, name))
	c.addHole(name, WidthRelOp)
	return nil
}

func (c *AluCompiler) VisitArithOp(n *ArithOpNode) error {
	idx := c.arithOpCount
	c.arithOpCount++
	name := fmt.Sprintf("arith_op_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(")
	if err := n.Left.Accept(c); err != nil {
		return err
	}
	c.out.WriteString(",")
	if err := n.Right.Accept(c); err != nil {
		return err
	}
	c.out.WriteString("," + name + ")")
	c.helpers.WriteString(fmt.Sprintf(`int %s_%s(int operand1, int operand2, int opcode) {
  if (opcode == 0) {
    return operand1 + operand2;
  } else {
    return operand1 - operand2;
  }
}

`, c.instanceName, name))
	c.addHole(name, WidthArithOp)
	return nil
}

func (c *AluCompiler) VisitOpt(n *OptNode) error {
	idx := c.optCount
	c.optCount++
	name := fmt.Sprintf("Opt_%d", idx)
	c.out.WriteString(c.instanceName + "_" + name + "(")
	if err := n.Operand.Accept(c); err != nil {
		return err
	}
	c.out.WriteString("," + name + ")")
	c.helpers.WriteString(fmt.Sprintf(
		"int %s_%s(int op1, int enable) {\n  if (enable != 0) return 0;\n  return op1;\n}\n\n",
		c.instanceName, name))
	c.addHole(name, WidthOpt)
	return nil
}

// LocalHoleNames strips an instance's name prefix off every hole in
// registry that belongs to it and returns the local construct-hole
// names (e.g. "Mux2_0", "const_1") sorted, the exact ordering compile
// appends to that instance's function signature and the ordering a
// caller wiring a grid together must use at the call site.
func LocalHoleNames(r *HoleRegistry, instanceName string) []string {
	prefix := instanceName + "_"
	var names []string
	for _, h := range r.All() {
		if strings.HasPrefix(h.Name, prefix) {
			names = append(names, strings.TrimPrefix(h.Name, prefix))
		}
	}
	sort.Strings(names)
	return names
}

// SortedHoleNames returns every hole name produced while compiling,
// sorted so callers get a deterministic, reproducible ordering
// independent of traversal order.
func SortedHoleNames(r *HoleRegistry) []string {
	holes := r.All()
	names := make([]string, len(holes))
	for i, h := range holes {
		names[i] = h.Name
	}
	sort.Strings(names)
	return names
}
