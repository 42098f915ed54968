package chipc

import "fmt"

// Hole is a synthesis unknown the sketch solver must fill in: a named,
// fixed-width integer hole emitted into a generated `??(width)` site
// (spec.md §4.2, the per-construct hole emission table).
type Hole struct {
	Name  string
	Width int
}

// HoleRegistry tracks every hole minted while compiling one ALU
// template instance, enforcing global name uniqueness (spec.md §4.2
// "hole names are unique across the whole compiled program") and
// giving deterministic enumeration order for the generated helper's
// parameter list and for hole-assignment parsing (solver_driver.go).
type HoleRegistry struct {
	holes   []*Hole
	byName  map[string]*Hole
	counter map[string]int
}

func NewHoleRegistry() *HoleRegistry {
	return &HoleRegistry{
		byName:  make(map[string]*Hole),
		counter: make(map[string]int),
	}
}

// Add registers a hole with an explicit, caller-chosen name. It panics
// if the name was already used: that's a compiler bug, not a user
// error, since instance names are namespaced by the caller.
func (r *HoleRegistry) Add(name string, width int) *Hole {
	if _, exists := r.byName[name]; exists {
		panic(fmt.Sprintf("hole %q registered twice", name))
	}
	h := &Hole{Name: name, Width: width}
	r.holes = append(r.holes, h)
	r.byName[name] = h
	return h
}

// Fresh mints a new hole named "<prefix>_<n>" where n is a strictly
// monotone counter scoped to prefix within this registry (spec.md's
// "const_<i>" decision for C() holes, generalized to any anonymous
// hole family).
func (r *HoleRegistry) Fresh(prefix string, width int) *Hole {
	n := r.counter[prefix]
	r.counter[prefix] = n + 1
	return r.Add(fmt.Sprintf("%s_%d", prefix, n), width)
}

func (r *HoleRegistry) Get(name string) (*Hole, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// All returns every hole in registration order.
func (r *HoleRegistry) All() []*Hole {
	out := make([]*Hole, len(r.holes))
	copy(out, r.holes)
	return out
}

// TotalBits sums the bit width of every registered hole, the quantity
// logged after each sketch-grid generation pass (SPEC_FULL.md ambient
// logging requirements).
func (r *HoleRegistry) TotalBits() int {
	total := 0
	for _, h := range r.holes {
		total += h.Width
	}
	return total
}

// Emission widths for the parametric ALU constructs (spec.md §4.2):
// Mux2 picks one of 2 operands (1 bit), Mux3/Mux3WithNum pick one of 3
// (2 bits, one value unused), rel_op selects among 4 relational
// operators (2 bits), arith_op selects between + and - (1 bit), Opt is
// a pass/zero toggle (1 bit).
const (
	WidthMux2        = 1
	WidthMux3        = 2
	WidthMux3WithNum = 2
	WidthRelOp       = 2
	WidthArithOp     = 1
	WidthOpt         = 1
)

// DefaultConstHoleWidth is the bit width given to C() holes unless a
// caller overrides it via Config's "synth.const_hole_width" key.
const DefaultConstHoleWidth = 2
