package chipc

import (
	"regexp"
	"sort"
	"strconv"
)

// SpecProgram summarizes the shape of a target program: how many
// packet fields it reads and how many state groups (and slots within
// each) it keeps, as declared by the naming convention
// `state_and_packet.pkt_<i>` / `state_and_packet.state_group_<g>_state_<k>`
// (spec.md §6). Rather than a full parser, the original scans the
// program text with regular expressions; we keep that approach.
type SpecProgram struct {
	NumPacketFields int
	NumStateGroups  int
	// Slots lists every (group, slot) pair that appears in the
	// program text, in ascending (group, slot) order.
	Slots []StateSlot
	// Source is the program's raw text, embedded verbatim as the
	// `program` oracle function in a generated sketch (spec.md §3:
	// "embed it as the oracle in the sketch harness"). Empty for a
	// SpecProgram built directly from counts rather than scanned text.
	Source string
}

type StateSlot struct {
	Group, Slot int
}

var (
	pktFieldRe   = regexp.MustCompile(`state_and_packet\.pkt_(\d+)`)
	stateGroupRe = regexp.MustCompile(`state_and_packet\.state_group_(\d+)_state_(\d+)`)
)

// ScanSpecProgram extracts a SpecProgram's dimensions from raw program
// source text, grounded on get_num_pkt_fields_and_state_groups /
// get_info_of_state_groups (chipc/utils.py): field and group counts are
// `1 + max index seen`, not a separate declaration the author writes
// out.
func ScanSpecProgram(src string) *SpecProgram {
	maxPkt := -1
	for _, m := range pktFieldRe.FindAllStringSubmatch(src, -1) {
		if i := atoiMust(m[1]); i > maxPkt {
			maxPkt = i
		}
	}

	maxGroup := -1
	slotSet := make(map[StateSlot]bool)
	for _, m := range stateGroupRe.FindAllStringSubmatch(src, -1) {
		g, k := atoiMust(m[1]), atoiMust(m[2])
		if g > maxGroup {
			maxGroup = g
		}
		slotSet[StateSlot{Group: g, Slot: k}] = true
	}

	slots := make([]StateSlot, 0, len(slotSet))
	for s := range slotSet {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Group != slots[j].Group {
			return slots[i].Group < slots[j].Group
		}
		return slots[i].Slot < slots[j].Slot
	})

	return &SpecProgram{
		NumPacketFields: maxPkt + 1,
		NumStateGroups:  maxGroup + 1,
		Slots:           slots,
		Source:          src,
	}
}

func atoiMust(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		panic("spec_program: regex guaranteed digits, got " + s)
	}
	return n
}
