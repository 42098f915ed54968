package chipc

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHoleEliminationAssertShape(t *testing.T) {
	holes := map[string]int{"Mux2_0": 1, "const_0": -3}
	got := generateHoleEliminationAssert(holes)
	assert.Equal(t, "assert !((Mux2_0 == 1) && (const_0 == -3));", got)
}

func TestGenerateHoleEliminationAssertSingleHole(t *testing.T) {
	got := generateHoleEliminationAssert(map[string]int{"h0": 2})
	assert.Equal(t, "assert !((h0 == 2));", got)
}

func TestGenerateAdditionalTestcasesSweepsAllBitWidths(t *testing.T) {
	program := &SpecProgram{
		NumPacketFields: 1,
		Slots:           []StateSlot{{Group: 0, Slot: 0}},
	}
	out := generateAdditionalTestcases(map[string]int{"pkt_0": 3}, map[string]int{"state_group_0_state_0": 7}, program, 1)
	assert.Len(t, out, len(cexBitWidths))
	assert.Contains(t, out[0], "x_1_2")
	assert.Contains(t, out[0], "pkt_0 = 7") // 3 + 2^2
	assert.Contains(t, out[0], "state_group_0_state_0 = 11") // 7 + 2^2
	assert.Contains(t, out[0], "pipeline(x_1_2) == program(x_1_2)")
}

func TestGenerateAdditionalTestcasesDefaultsMissingFieldsToZero(t *testing.T) {
	program := &SpecProgram{NumPacketFields: 2}
	out := generateAdditionalTestcases(map[string]int{}, map[string]int{}, program, 3)
	offset := 1 << uint(cexBitWidths[0])
	assert.Contains(t, out[0], "pkt_0 = "+strconv.Itoa(offset))
	assert.Contains(t, out[0], "pkt_1 = "+strconv.Itoa(offset))
}
