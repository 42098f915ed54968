package chipc

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// dagNode is one line of sketch's textual DAG intermediate
// representation: an SSA-like value with an opcode and argument
// references to earlier lines, grounded on dag2smt.py's node classes
// (Source, Const, UnaryOp, BinOp, CondOp) and get_z3_formula's parsing
// loop in z3_utils.py.
type dagNode struct {
	id       string
	op       string
	intType  bool // INT vs BOOL
	intVal   int
	boolVal  bool
	args     []string
}

// ParsedDag is a fully parsed sketch DAG IR program, ready to be
// lowered into an SMT-LIB2 formula.
type ParsedDag struct {
	nodes   map[string]*dagNode
	order   []string
	asserts []string
	sources []string
}

var dagLineRe = regexp.MustCompile(`\S+`)

// ParseDag parses sketch's `-output-dag` textual IR: each line is
// whitespace-separated fields `<id> ... <OP> <args...>`, following the
// shape get_z3_formula's record-splitting loop expects. Header lines
// ("dag", "TUPLE_DEF") are skipped.
func ParseDag(ir string) (*ParsedDag, error) {
	pd := &ParsedDag{nodes: make(map[string]*dagNode)}

	for _, line := range splitLines(ir) {
		fields := dagLineRe.FindAllString(line, -1)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "dag" || fields[0] == "TUPLE_DEF" {
			continue
		}
		if len(fields) < 3 {
			return nil, SMTParseError{Message: "malformed dag line: " + line}
		}

		id := "_n" + fields[0]
		op := fields[2]
		n := &dagNode{id: id, op: op}

		switch op {
		case "ASSERT":
			pd.asserts = append(pd.asserts, "_n"+fields[3])
			continue
		case "S":
			if fields[3] != "INT" {
				return nil, SMTParseError{Message: "unsupported source type: " + fields[3]}
			}
			n.intType = true
			pd.sources = append(pd.sources, id)
		case "CONST":
			switch fields[3] {
			case "INT":
				v, err := strconv.Atoi(fields[4])
				if err != nil {
					return nil, SMTParseError{Message: "bad CONST int: " + line}
				}
				n.intType = true
				n.intVal = v
			case "BOOL":
				n.boolVal = fields[4] == "1"
			default:
				return nil, SMTParseError{Message: "unsupported const type: " + fields[3]}
			}
		case "NEG", "NOT":
			n.args = []string{"_n" + fields[4]}
		case "AND", "OR", "XOR", "PLUS", "TIMES", "DIV", "MOD", "LT", "EQ":
			n.args = []string{"_n" + fields[4], "_n" + fields[5]}
		case "ARRACC":
			n.args = []string{"_n" + fields[4], "_n" + fields[6], "_n" + fields[7]}
		case "ARRASS":
			n.args = []string{"_n" + fields[4], fields[6], "_n" + fields[7], "_n" + fields[8]}
		default:
			return nil, SMTParseError{Message: "unknown dag operation: " + op}
		}

		pd.nodes[id] = n
		pd.order = append(pd.order, id)
	}

	if len(pd.asserts) == 0 {
		return nil, SMTParseError{Message: "dag contains no ASSERT statements"}
	}
	return pd, nil
}

// ToSMT2 lowers a parsed DAG into a single SMT-LIB2 assertion: every
// source variable is declared an Int, bounded to [0, 2^verifyBitWidth),
// and the conjunction of all ASSERT targets is wrapped in a universal
// quantifier over the sources — `forall srcs. range(srcs) => body`,
// kept in quantifier form per spec.md §4.5 rather than simplified away.
func (pd *ParsedDag) ToSMT2(verifyBitWidth int) string {
	var b strings.Builder
	for _, src := range pd.sources {
		b.WriteString(fmt.Sprintf("(declare-fun %s () Int)\n", src))
	}

	exprs := make(map[string]string, len(pd.order))
	for _, id := range pd.order {
		n := pd.nodes[id]
		exprs[id] = lowerDagNode(n, exprs)
	}

	var assertBody string
	if len(pd.asserts) == 1 {
		assertBody = exprs[pd.asserts[0]]
	} else {
		parts := make([]string, len(pd.asserts))
		for i, a := range pd.asserts {
			parts[i] = exprs[a]
		}
		assertBody = "(and " + strings.Join(parts, " ") + ")"
	}

	upper := fmt.Sprintf("%d", 1<<uint(verifyBitWidth))
	var rangeParts []string
	var binders []string
	for _, src := range pd.sources {
		rangeParts = append(rangeParts, fmt.Sprintf("(and (<= 0 %s) (< %s %s))", src, src, upper))
		binders = append(binders, fmt.Sprintf("(%s Int)", src))
	}
	rangeExpr := "true"
	if len(rangeParts) > 0 {
		rangeExpr = "(and " + strings.Join(rangeParts, " ") + ")"
	}

	if len(binders) == 0 {
		b.WriteString(fmt.Sprintf("(assert (=> %s %s))\n", rangeExpr, assertBody))
	} else {
		b.WriteString(fmt.Sprintf("(assert (forall (%s) (=> %s %s)))\n",
			strings.Join(binders, " "), rangeExpr, assertBody))
	}
	b.WriteString("(check-sat)\n(get-model)\n")
	return b.String()
}

// ToSMT2Negated builds the counter-example-search formula: the
// negation of a ForAll's body is an Exists over the same binders of
// `range && !body`, grounded directly on z3_utils.py's negated_body
// (there applied to the already-parsed z3 AST; here built straight
// from the DAG rather than round-tripped through SMT-LIB2 text).
func (pd *ParsedDag) ToSMT2Negated(verifyBitWidth int) string {
	var b strings.Builder
	for _, src := range pd.sources {
		b.WriteString(fmt.Sprintf("(declare-fun %s () Int)\n", src))
	}

	exprs := make(map[string]string, len(pd.order))
	for _, id := range pd.order {
		exprs[id] = lowerDagNode(pd.nodes[id], exprs)
	}

	var assertBody string
	if len(pd.asserts) == 1 {
		assertBody = exprs[pd.asserts[0]]
	} else {
		parts := make([]string, len(pd.asserts))
		for i, a := range pd.asserts {
			parts[i] = exprs[a]
		}
		assertBody = "(and " + strings.Join(parts, " ") + ")"
	}

	upper := fmt.Sprintf("%d", 1<<uint(verifyBitWidth))
	var rangeParts []string
	var binders []string
	for _, src := range pd.sources {
		rangeParts = append(rangeParts, fmt.Sprintf("(and (<= 0 %s) (< %s %s))", src, src, upper))
		binders = append(binders, fmt.Sprintf("(%s Int)", src))
	}
	rangeExpr := "true"
	if len(rangeParts) > 0 {
		rangeExpr = "(and " + strings.Join(rangeParts, " ") + ")"
	}

	if len(binders) == 0 {
		b.WriteString(fmt.Sprintf("(assert (and %s (not %s)))\n", rangeExpr, assertBody))
	} else {
		b.WriteString(fmt.Sprintf("(assert (exists (%s) (and %s (not %s))))\n",
			strings.Join(binders, " "), rangeExpr, assertBody))
	}
	b.WriteString("(check-sat)\n(get-model)\n")
	return b.String()
}

func lowerDagNode(n *dagNode, exprs map[string]string) string {
	switch n.op {
	case "S":
		return n.id
	case "CONST":
		if n.intType {
			return strconv.Itoa(n.intVal)
		}
		if n.boolVal {
			return "true"
		}
		return "false"
	case "NEG":
		return fmt.Sprintf("(- %s)", exprs[n.args[0]])
	case "NOT":
		return fmt.Sprintf("(not %s)", exprs[n.args[0]])
	case "AND":
		return fmt.Sprintf("(and %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "OR":
		return fmt.Sprintf("(or %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "XOR":
		return fmt.Sprintf("(xor %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "PLUS":
		return fmt.Sprintf("(+ %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "TIMES":
		return fmt.Sprintf("(* %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "DIV":
		return fmt.Sprintf("(div %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "MOD":
		return fmt.Sprintf("(mod %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "LT":
		return fmt.Sprintf("(< %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "EQ":
		return fmt.Sprintf("(= %s %s)", exprs[n.args[0]], exprs[n.args[1]])
	case "ARRACC":
		return fmt.Sprintf("(ite %s %s %s)", exprs[n.args[0]], exprs[n.args[2]], exprs[n.args[1]])
	case "ARRASS":
		return fmt.Sprintf("(ite (= %s %s) %s %s)", exprs[n.args[0]], n.args[1], exprs[n.args[3]], exprs[n.args[2]])
	default:
		return "false"
	}
}

// SMTVerifier invokes the external z3 binary to check formulas emitted
// by ToSMT2 (spec.md frames the SMT engine as an out-of-scope external
// collaborator, same rationale as SolverDriver).
type SMTVerifier struct {
	cfg *Config
	log *logrus.Logger
}

func NewSMTVerifier(cfg *Config, log *logrus.Logger) *SMTVerifier {
	return &SMTVerifier{cfg: cfg, log: log}
}

// SolVerify checks whether a fixed hole assignment's formula holds
// universally. A "sat" result here means the ForAll held (the
// assertion was over the negation-free body), matching compiler.py's
// sol_verify which returns 0 on success and -1 otherwise.
func (v *SMTVerifier) SolVerify(ctx context.Context, smt2 string) (bool, error) {
	out, err := v.runZ3(ctx, smt2)
	if err != nil {
		return false, err
	}
	return strings.Contains(out, "sat") && !strings.Contains(out, "unsat"), nil
}

var (
	pktCexRe   = regexp.MustCompile(`pkt_\d+`)
	stateCexRe = regexp.MustCompile(`state_group_\d+_state_\d+`)
	modelVarRe = regexp.MustCompile(`\(define-fun (\S+) \(\) Int\s+(-?\d+)\)`)
)

// GenerateCounterExamples negates a verification formula's body and
// asks z3 for a model: a satisfying model is a packet/state assignment
// that breaks the candidate pipeline, grounded on z3_utils.py's
// negated_body + generate_counter_examples.
func (v *SMTVerifier) GenerateCounterExamples(ctx context.Context, pd *ParsedDag, verifyBitWidth int) (pkt, state map[string]int, err error) {
	negated := pd.ToSMT2Negated(verifyBitWidth)
	out, err := v.runZ3(ctx, negated)
	if err != nil {
		return nil, nil, err
	}
	if !strings.Contains(out, "sat") || strings.Contains(out, "unsat") {
		v.log.Warn("failed to generate counterexamples, z3 returned unsat")
		return map[string]int{}, map[string]int{}, nil
	}

	pkt = map[string]int{}
	state = map[string]int{}
	for _, m := range modelVarRe.FindAllStringSubmatch(out, -1) {
		name, val := m[1], m[2]
		n, convErr := strconv.Atoi(val)
		if convErr != nil {
			continue
		}
		if pktCexRe.MatchString(name) {
			pkt[pktCexRe.FindString(name)] = n
		} else if stateCexRe.MatchString(name) {
			state[stateCexRe.FindString(name)] = n
		}
	}
	v.log.WithFields(logrus.Fields{
		"pkt_vars":   sortedKeys(pkt),
		"state_vars": sortedKeys(state),
	}).Debug("generated counter-example")
	return pkt, state, nil
}

func (v *SMTVerifier) runZ3(ctx context.Context, smt2 string) (string, error) {
	f, err := os.CreateTemp("", "chipc-*.smt2")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(smt2); err != nil {
		f.Close()
		return "", err
	}
	f.Close()

	cmd := exec.CommandContext(ctx, v.cfg.GetString("smt.binary"), f.Name())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	v.log.WithField("file", f.Name()).Debug("invoking z3")
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return "", SolverError{Binary: v.cfg.GetString("smt.binary"), Args: []string{f.Name()}, ExitCode: -1, Stderr: err.Error()}
		}
	}
	return stdout.String(), nil
}

// sortedKeys is a small helper kept for deterministic logging of
// counter-example maps.
func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
