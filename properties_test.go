package chipc

import (
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

// TestPropertyHoleNamesAlwaysUnique builds Mux2 expressions nested to a
// random depth and checks CompileALU never registers the same hole name
// twice, the invariant the nested-construct counter fix exists for.
func TestPropertyHoleNamesAlwaysUnique(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		depth := rapid.IntRange(0, 4).Draw(rt, "depth")
		src := buildNestedTemplate(depth)
		tmpl, err := ParseTemplate(src)
		if err != nil {
			rt.Fatalf("parse failed on generated template: %v\n%s", err, src)
		}

		_, _, registry, err := CompileALU(tmpl, "inst0", 2)
		if err != nil {
			rt.Fatalf("compile failed: %v", err)
		}

		seen := map[string]bool{}
		for _, h := range registry.All() {
			if seen[h.Name] {
				rt.Fatalf("duplicate hole name %q", h.Name)
			}
			seen[h.Name] = true
		}
	})
}

// buildNestedTemplate builds a stateless template whose body is a chain
// of nested Mux2 calls depth levels deep, exercising the same shape as
// Mux2(Mux2(pkt_0, pkt_1), pkt_0) at arbitrary nesting.
func buildNestedTemplate(depth int) string {
	expr := "pkt_0"
	for i := 0; i < depth; i++ {
		expr = fmt.Sprintf("Mux2(%s, pkt_1)", expr)
	}
	return fmt.Sprintf(`
stateless
state: ;
packet: pkt_0, pkt_1;
hole: ;
{
  return %s;
}`, expr)
}

// TestPropertyAllAssignmentsAreExact checks AllAssignments(numGroups,
// numStages) always produces exactly numStages^numGroups entries and
// that every one validates, the allocator-exactness invariant.
func TestPropertyAllAssignmentsAreExact(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numGroups := rapid.IntRange(0, 3).Draw(rt, "numGroups")
		numStages := rapid.IntRange(1, 3).Draw(rt, "numStages")

		all := AllAssignments(numGroups, numStages)
		want := 1
		for i := 0; i < numGroups; i++ {
			want *= numStages
		}
		if len(all) != want {
			rt.Fatalf("expected %d assignments, got %d", want, len(all))
		}
		for _, a := range all {
			if !ValidAssignment(a, numGroups, numStages) {
				rt.Fatalf("invalid assignment produced: %v", a)
			}
		}
	})
}

// TestPropertyHoleRegistryFreshNeverCollides checks Fresh's monotone
// counter never reuses a name even under an interleaved mix of prefixes.
func TestPropertyHoleRegistryFreshNeverCollides(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		prefixes := rapid.SliceOfN(rapid.SampledFrom([]string{"const", "mux", "op"}), 0, 20).Draw(rt, "prefixes")
		r := NewHoleRegistry()
		seen := map[string]bool{}
		for _, p := range prefixes {
			h := r.Fresh(p, 1)
			if seen[h.Name] {
				rt.Fatalf("Fresh produced duplicate name %q", h.Name)
			}
			seen[h.Name] = true
		}
	})
}

// TestPropertyCompileALUIsDeterministic checks compiling the same
// template and instance name twice yields byte-identical output and
// the same set of hole names, independent of map iteration order
// elsewhere in the compiler.
func TestPropertyCompileALUIsDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		depth := rapid.IntRange(0, 3).Draw(rt, "depth")
		src := buildNestedTemplate(depth)
		tmpl, err := ParseTemplate(src)
		if err != nil {
			rt.Fatalf("parse failed: %v", err)
		}

		helpers1, fn1, reg1, err := CompileALU(tmpl, "inst0", 2)
		if err != nil {
			rt.Fatalf("compile 1 failed: %v", err)
		}
		helpers2, fn2, reg2, err := CompileALU(tmpl, "inst0", 2)
		if err != nil {
			rt.Fatalf("compile 2 failed: %v", err)
		}

		if helpers1 != helpers2 || fn1 != fn2 {
			rt.Fatalf("compilation is not deterministic")
		}
		if fmt.Sprint(SortedHoleNames(reg1)) != fmt.Sprint(SortedHoleNames(reg2)) {
			rt.Fatalf("hole names differ across runs")
		}
	})
}
