package chipc

import "fmt"

// Config is a small typed key-value store, in the same shape as the
// teacher's grammar/compiler configuration object: every knob chipc
// exposes (hole widths, bit widths, solver seed, binary names, parallel
// toggles) lives here instead
// of as scattered function parameters, so a single object can be
// threaded from cmd/chipc down to every component.
type Config map[string]*cfgVal

// NewConfig seeds the defaults spec.md calls out: a 2-bit default
// constant-hole width (spec.md's Open Questions: "narrow ... but
// default to 2 for bug-compatibility"), a 2-bit synthesis width, a
// 10-bit verification width, and serial (non-parallel) codegen.
func NewConfig() *Config {
	m := make(Config)
	m.SetInt("synth.const_hole_width", 2)
	m.SetInt("synth.bit_width", 2)
	m.SetInt("verify.bit_width", 10)
	m.SetInt("solver.seed", 1)
	m.SetBool("solver.parallel_sketch", false)
	m.SetBool("solver.parallel_codegen", false)
	m.SetString("solver.binary", "sketch")
	m.SetString("smt.binary", "z3")
	m.SetString("cegis.mode", "cex")
	return &m
}

type cfgValType int

const (
	cfgValType_Undefined cfgValType = iota
	cfgValType_Bool
	cfgValType_Int
	cfgValType_String
)

func (vt cfgValType) String() string {
	return map[cfgValType]string{
		cfgValType_Undefined: "undefined",
		cfgValType_Bool:      "bool",
		cfgValType_Int:       "int",
		cfgValType_String:    "string",
	}[vt]
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

// assignType guards against programmer error: reassigning a config
// key to a different type than it was declared with is a bug, not a
// recoverable condition, so it panics rather than erroring.
func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValType_Undefined {
		panic(fmt.Sprintf("can't assign `%s` to type `%s`", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("can't retrieve `%s` from `%s` variable", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Bool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_Int)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValType_String)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Bool)
		return val.asBool
	}
	panic(fmt.Sprintf("bool setting `%s` does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_Int)
		return val.asInt
	}
	panic(fmt.Sprintf("int setting `%s` does not exist", path))
}

func (c *Config) GetString(path string) string {
	if val, ok := (*c)[path]; ok {
		val.checkType(cfgValType_String)
		return val.asString
	}
	panic(fmt.Sprintf("string setting `%s` does not exist", path))
}
