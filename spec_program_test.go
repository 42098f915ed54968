package chipc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanSpecProgramFieldsAndGroups(t *testing.T) {
	src := `
int program(|StateAndPacket| state_and_packet) {
  int x = state_and_packet.pkt_0 + state_and_packet.pkt_2;
  state_and_packet.state_group_0_state_0 = x;
  state_and_packet.state_group_0_state_1 = state_and_packet.state_group_1_state_0;
  return x;
}`
	prog := ScanSpecProgram(src)
	assert.Equal(t, 3, prog.NumPacketFields)
	assert.Equal(t, 2, prog.NumStateGroups)
	assert.Equal(t, []StateSlot{
		{Group: 0, Slot: 0},
		{Group: 0, Slot: 1},
		{Group: 1, Slot: 0},
	}, prog.Slots)
	assert.Equal(t, src, prog.Source)
}

func TestScanSpecProgramNoStateGroups(t *testing.T) {
	src := `int program(|StateAndPacket| state_and_packet) { return state_and_packet.pkt_0; }`
	prog := ScanSpecProgram(src)
	assert.Equal(t, 1, prog.NumPacketFields)
	assert.Equal(t, 0, prog.NumStateGroups)
	assert.Empty(t, prog.Slots)
}

func TestScanSpecProgramDedupesRepeatedSlots(t *testing.T) {
	src := `
  state_and_packet.state_group_0_state_0 = 1;
  state_and_packet.state_group_0_state_0 = 2;
`
	prog := ScanSpecProgram(src)
	assert.Equal(t, 1, prog.NumStateGroups)
	assert.Len(t, prog.Slots, 1)
}
