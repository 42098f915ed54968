package chipc

import "fmt"

// ParseTemplate parses ALU template source text into a TemplateNode,
// enforcing the structural invariants of spec.md §4.1:
//
//  1. a stateless template declares no state variables and its body is
//     exactly one `return expr;`
//  2. a stateful template's body never contains `return`
//  3. every update ends with `;`
//  4. the state indicator is one of the two legal keywords
//
// The five header sections (state indicator, state variables, packet
// fields, hole variables, body) must appear in that order, following
// the grammar shown by stateless_alu_sketch_generator.py's sections.
func ParseTemplate(src string) (*TemplateNode, error) {
	p := &parser{lex: newLexer(src), src: src}
	p.advance()
	return p.parseTemplate()
}

type parser struct {
	lex *lexer
	src string
	tok token
}

func (p *parser) advance() { p.tok = p.lex.next() }

func (p *parser) errorf(production, expected string) error {
	return ParsingError{
		Production: production,
		Expected:   expected,
		Span:       NewLineIndex([]byte(p.src)).Span(p.tok.rg),
	}
}

func (p *parser) expectKeyword(kw, production string) (Range, error) {
	if p.tok.kind != tokKeyword || p.tok.text != kw {
		return Range{}, p.errorf(production, fmt.Sprintf("keyword %q", kw))
	}
	rg := p.tok.rg
	p.advance()
	return rg, nil
}

func (p *parser) expect(kind tokenKind, production, expected string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errorf(production, expected)
	}
	tok := p.tok
	p.advance()
	return tok, nil
}

func (p *parser) parseTemplate() (*TemplateNode, error) {
	start := p.tok.rg

	var stateful bool
	switch {
	case p.tok.kind == tokKeyword && p.tok.text == "stateful":
		stateful = true
		p.advance()
	case p.tok.kind == tokKeyword && p.tok.text == "stateless":
		stateful = false
		p.advance()
	default:
		return nil, p.errorf("template", `state indicator ("stateful" or "stateless")`)
	}

	stateVars, err := p.parseNamedList("state", "template/state")
	if err != nil {
		return nil, err
	}
	if !stateful && len(stateVars) != 0 {
		return nil, ParsingError{
			Production: "template",
			Message:    "a stateless template must declare no state variables",
			Span:       NewLineIndex([]byte(p.src)).Span(start),
		}
	}

	packetFields, err := p.parseNamedList("packet", "template/packet")
	if err != nil {
		return nil, err
	}

	holeVars, err := p.parseNamedList("hole", "template/hole")
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(tokLBrace, "template/body", "'{'"); err != nil {
		return nil, err
	}
	body, err := p.parseBody(stateful)
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokRBrace, "template/body", "'}'")
	if err != nil {
		return nil, err
	}

	return NewTemplateNode(stateful, stateVars, packetFields, holeVars, body, NewRange(start.Start, end.rg.End)), nil
}

// parseNamedList parses `kw: ident, ident, ...;` or `kw: ;` (empty).
func (p *parser) parseNamedList(kw, production string) ([]string, error) {
	if _, err := p.expectKeyword(kw, production); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, production, "':'"); err != nil {
		return nil, err
	}

	var names []string
	for p.tok.kind == tokIdent {
		names = append(names, p.tok.text)
		p.advance()
		if p.tok.kind == tokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(tokSemi, production, "';'"); err != nil {
		return nil, err
	}
	return names, nil
}

// parseBody parses a template body: a stateless body is exactly one
// return statement; a stateful body is either a single update or an
// if/elif/else cascade.
func (p *parser) parseBody(stateful bool) (Node, error) {
	if !stateful {
		return p.parseReturn()
	}
	if p.tok.kind == tokKeyword && p.tok.text == "if" {
		return p.parseIfCascade()
	}
	u, err := p.parseUpdate()
	if err != nil {
		return nil, err
	}
	return NewSimpleUpdateNode(u, u.Range()), nil
}

func (p *parser) parseReturn() (Node, error) {
	start, err := p.expectKeyword("return", "body/return")
	if err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokSemi, "body/return", "';'")
	if err != nil {
		return nil, err
	}
	return NewReturnNode(expr, NewRange(start.Start, end.rg.End)), nil
}

// parseUpdate parses `state_var = expr;`, the only statement form a
// stateful body's branches may contain (spec.md §4.1, invariant iii:
// "every update ends with a statement terminator").
func (p *parser) parseUpdate() (*UpdateNode, error) {
	name, err := p.expect(tokIdent, "update", "state variable name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEquals, "update", "'='"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(tokSemi, "update", "';'")
	if err != nil {
		return nil, err
	}
	return NewUpdateNode(name.text, expr, NewRange(name.rg.Start, end.rg.End)), nil
}

func (p *parser) parseUpdateBlock() ([]*UpdateNode, error) {
	if _, err := p.expect(tokLBrace, "update-block", "'{'"); err != nil {
		return nil, err
	}
	var updates []*UpdateNode
	for p.tok.kind == tokIdent {
		u, err := p.parseUpdate()
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	if _, err := p.expect(tokRBrace, "update-block", "'}'"); err != nil {
		return nil, err
	}
	return updates, nil
}

func (p *parser) parseIfCascade() (Node, error) {
	start := p.tok.rg

	var branches []IfBranch
	if _, err := p.expectKeyword("if", "body/if"); err != nil {
		return nil, err
	}
	guard, err := p.parseGuard()
	if err != nil {
		return nil, err
	}
	updates, err := p.parseUpdateBlock()
	if err != nil {
		return nil, err
	}
	branches = append(branches, IfBranch{Guard: guard, Updates: updates})

	for p.tok.kind == tokKeyword && p.tok.text == "elif" {
		p.advance()
		guard, err := p.parseGuard()
		if err != nil {
			return nil, err
		}
		updates, err := p.parseUpdateBlock()
		if err != nil {
			return nil, err
		}
		branches = append(branches, IfBranch{Guard: guard, Updates: updates})
	}

	var elseUpdates []*UpdateNode
	end := p.tok.rg
	if p.tok.kind == tokKeyword && p.tok.text == "else" {
		p.advance()
		elseUpdates, err = p.parseUpdateBlock()
		if err != nil {
			return nil, err
		}
	}

	return NewIfCascadeNode(branches, elseUpdates, NewRange(start.Start, end.End)), nil
}

func (p *parser) parseGuard() (Node, error) {
	if _, err := p.expect(tokLParen, "body/if-guard", "'('"); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "body/if-guard", "')'"); err != nil {
		return nil, err
	}
	return expr, nil
}

// Expression grammar, binding loosest to tightest:
//
//	expr    := or
//	or      := and ( "||" and )*
//	and     := cmp ( "&&" cmp )*
//	cmp     := add ( ("=="|"!="|"<"|">"|"<="|">=") add )*
//	add     := primary ( ("+"|"-") primary )*
//	primary := literal | ident | call | "(" expr ")"
func (p *parser) parseExpr() (Node, error) { return p.parseOr() }

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && p.tok.text == "||" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = NewBinOpNode("||", left, right, NewRange(left.Range().Start, right.Range().End))
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && p.tok.text == "&&" {
		p.advance()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = NewBinOpNode("&&", left, right, NewRange(left.Range().Start, right.Range().End))
	}
	return left, nil
}

var cmpOps = map[string]bool{"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true}

func (p *parser) parseCmp() (Node, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && cmpOps[p.tok.text] {
		op := p.tok.text
		p.advance()
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		left = NewBinOpNode(op, left, right, NewRange(left.Range().Start, right.Range().End))
	}
	return left, nil
}

func (p *parser) parseAdd() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.advance()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = NewBinOpNode(op, left, right, NewRange(left.Range().Start, right.Range().End))
	}
	return left, nil
}

func (p *parser) parsePrimary() (Node, error) {
	start := p.tok.rg

	switch {
	case p.tok.kind == tokInt:
		n := NewValueNode(atoi(p.tok.text), p.tok.rg)
		p.advance()
		return n, nil

	case p.tok.kind == tokKeyword && p.tok.text == "true":
		p.advance()
		return NewTrueNode(start), nil

	case p.tok.kind == tokKeyword && p.tok.text == "C":
		p.advance()
		if err := p.expectParens0("C"); err != nil {
			return nil, err
		}
		return NewConstantNode(NewRange(start.Start, p.tok.rg.Start)), nil

	case p.tok.kind == tokKeyword && p.tok.text == "Mux2":
		p.advance()
		args, end, err := p.parseArgs("Mux2", 2)
		if err != nil {
			return nil, err
		}
		return NewMux2Node(args[0], args[1], NewRange(start.Start, end)), nil

	case p.tok.kind == tokKeyword && p.tok.text == "Mux3":
		p.advance()
		args, end, err := p.parseArgs("Mux3", 3)
		if err != nil {
			return nil, err
		}
		return NewMux3Node(args[0], args[1], args[2], NewRange(start.Start, end)), nil

	case p.tok.kind == tokKeyword && p.tok.text == "Mux3WithNum":
		p.advance()
		if _, err := p.expect(tokLParen, "Mux3WithNum", "'('"); err != nil {
			return nil, err
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, "Mux3WithNum", "','"); err != nil {
			return nil, err
		}
		b, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma, "Mux3WithNum", "','"); err != nil {
			return nil, err
		}
		numTok, err := p.expect(tokInt, "Mux3WithNum", "integer literal")
		if err != nil {
			return nil, err
		}
		end, err := p.expect(tokRParen, "Mux3WithNum", "')'")
		if err != nil {
			return nil, err
		}
		return NewMux3WithNumNode(a, b, atoi(numTok.text), NewRange(start.Start, end.rg.End)), nil

	case p.tok.kind == tokKeyword && p.tok.text == "rel_op":
		p.advance()
		args, end, err := p.parseArgs("rel_op", 2)
		if err != nil {
			return nil, err
		}
		return NewRelOpNode(args[0], args[1], NewRange(start.Start, end)), nil

	case p.tok.kind == tokKeyword && p.tok.text == "arith_op":
		p.advance()
		args, end, err := p.parseArgs("arith_op", 2)
		if err != nil {
			return nil, err
		}
		return NewArithOpNode(args[0], args[1], NewRange(start.Start, end)), nil

	case p.tok.kind == tokKeyword && p.tok.text == "Opt":
		p.advance()
		args, end, err := p.parseArgs("Opt", 1)
		if err != nil {
			return nil, err
		}
		return NewOptNode(args[0], NewRange(start.Start, end)), nil

	case p.tok.kind == tokLParen:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(tokRParen, "paren", "')'")
		if err != nil {
			return nil, err
		}
		return NewParenNode(inner, NewRange(start.Start, end.rg.End)), nil

	case p.tok.kind == tokIdent:
		name := p.tok.text
		rg := p.tok.rg
		p.advance()
		return p.resolveIdent(name, rg), nil
	}

	return nil, p.errorf("expr", "literal, identifier or call")
}

// resolveIdent classifies a bare identifier. The ALU template grammar
// doesn't distinguish state/packet/hole references lexically, so every
// bare identifier becomes a StateVarNode; the parser never produces a
// PacketFieldNode or HoleVarNode. The compiler emits all three by name
// alone, so a packet-field or hole-variable reference compiles to the
// same text either way.
func (p *parser) resolveIdent(name string, rg Range) Node {
	return NewStateVarNode(name, rg)
}

// parseArgs parses a fixed-arity call `(e1, e2, ...)` and returns the
// argument expressions plus the byte offset of the closing paren.
func (p *parser) parseArgs(production string, arity int) ([]Node, int, error) {
	if _, err := p.expect(tokLParen, production, "'('"); err != nil {
		return nil, 0, err
	}
	args := make([]Node, 0, arity)
	for i := 0; i < arity; i++ {
		e, err := p.parseExpr()
		if err != nil {
			return nil, 0, err
		}
		args = append(args, e)
		if i < arity-1 {
			if _, err := p.expect(tokComma, production, "','"); err != nil {
				return nil, 0, err
			}
		}
	}
	end, err := p.expect(tokRParen, production, "')'")
	if err != nil {
		return nil, 0, err
	}
	return args, end.rg.End, nil
}

func (p *parser) expectParens0(production string) error {
	if _, err := p.expect(tokLParen, production, "'('"); err != nil {
		return err
	}
	_, err := p.expect(tokRParen, production, "')'")
	return err
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
