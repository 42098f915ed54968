package chipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseHoleAssignments(t *testing.T) {
	stdout := `SAT
Mux2_0__0_s = 1;
const_0__123 = -3;
garbage line without equals
RelOp_4__xyz = 2;
`
	holes := parseHoleAssignments(stdout)
	assert.Equal(t, map[string]int{
		"Mux2_0":  1,
		"const_0": -3,
		"RelOp_4": 2,
	}, holes)
}

func TestParseHoleAssignmentsEmptyInput(t *testing.T) {
	assert.Empty(t, parseHoleAssignments(""))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitLines("a\nb\nc"))
	assert.Equal(t, []string{"a", "b", "c"}, splitLines("a\nb\nc\n"))
	assert.Empty(t, splitLines(""))
	assert.Equal(t, []string{"single"}, splitLines("single"))
}

func TestKillProcessTreeNoSuchPidIsNoop(t *testing.T) {
	assert.NotPanics(t, func() { killProcessTree(-1) })
}
