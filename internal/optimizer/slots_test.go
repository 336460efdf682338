package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftKingsNBASlots(t *testing.T) {
	slots := DraftKingsNBASlots()
	require.Len(t, slots, 8)
	assert.Equal(t, 8, RosterSize(slots))

	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.Name
		assert.Equal(t, 1, s.Count, "every DraftKings NBA slot holds one player")
	}
	assert.Equal(t, []string{"PG", "SG", "SF", "PF", "C", "G", "F", "UTIL"}, names)

	require.NoError(t, ValidateTemplate(slots, 8))
}

func TestSlotRuleAccepts(t *testing.T) {
	guard := SlotRule{Name: "G", Eligible: []string{"PG", "SG"}, Count: 1}
	pointGuard := Player{Name: "Chris Paul", Positions: []string{"PG"}, Salary: 5500, Projection: 35.0}
	center := Player{Name: "Rudy Gobert", Positions: []string{"C"}, Salary: 7200, Projection: 41.0}
	combo := Player{Name: "Derrick White", Positions: []string{"PG", "SG"}, Salary: 6100, Projection: 33.0}

	assert.True(t, guard.Accepts(pointGuard))
	assert.True(t, guard.Accepts(combo))
	assert.False(t, guard.Accepts(center))

	util := SlotRule{Name: "UTIL", Eligible: []string{"PG", "SG", "SF", "PF", "C"}, Count: 1}
	assert.True(t, util.Accepts(center))
}

func TestValidateTemplate_RejectsBadShapes(t *testing.T) {
	cases := []struct {
		name  string
		slots []SlotRule
		size  int
	}{
		{"empty template", nil, 8},
		{"unnamed slot", []SlotRule{{Name: "", Eligible: []string{"PG"}, Count: 1}}, 1},
		{"duplicate slot", []SlotRule{
			{Name: "PG", Eligible: []string{"PG"}, Count: 1},
			{Name: "PG", Eligible: []string{"PG"}, Count: 1},
		}, 2},
		{"zero count", []SlotRule{{Name: "PG", Eligible: []string{"PG"}, Count: 0}}, 0},
		{"no eligible positions", []SlotRule{{Name: "PG", Eligible: nil, Count: 1}}, 1},
		{"unknown position", []SlotRule{{Name: "QB", Eligible: []string{"QB"}, Count: 1}}, 1},
		{"count mismatch", []SlotRule{{Name: "PG", Eligible: []string{"PG"}, Count: 1}}, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTemplate(tc.slots, tc.size)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestAssignPlayersToSlots_FillsEverySlot(t *testing.T) {
	// A staffable DraftKings roster: three guards, three forwards, two
	// centers, with two dual-eligible players.
	roster := []Player{
		{Name: "Stephen Curry", Positions: []string{"PG"}, Salary: 9100, Projection: 58.0},
		{Name: "De'Aaron Fox", Positions: []string{"PG"}, Salary: 4500, Projection: 46.0},
		{Name: "Jordan Poole", Positions: []string{"SG"}, Salary: 4400, Projection: 45.0},
		{Name: "Kevin Durant", Positions: []string{"SF"}, Salary: 9300, Projection: 60.0},
		{Name: "Mikal Bridges", Positions: []string{"SF", "PF"}, Salary: 4600, Projection: 47.0},
		{Name: "Jerami Grant", Positions: []string{"PF"}, Salary: 4450, Projection: 45.5},
		{Name: "Nikola Jokic", Positions: []string{"C"}, Salary: 8900, Projection: 57.0},
		{Name: "Clint Capela", Positions: []string{"C"}, Salary: 4550, Projection: 46.5},
	}

	assigned := AssignPlayersToSlots(DraftKingsNBASlots(), roster)
	require.Len(t, assigned, 8)

	slotCounts := make(map[string]int)
	seenPlayers := make(map[string]bool)
	byName := make(map[string]Player, len(roster))
	for _, p := range roster {
		byName[p.Name] = p
	}
	slotByName := make(map[string]SlotRule)
	for _, s := range DraftKingsNBASlots() {
		slotByName[s.Name] = s
	}

	for _, lp := range assigned {
		slotCounts[lp.Slot]++
		assert.False(t, seenPlayers[lp.Name], "player %s assigned twice", lp.Name)
		seenPlayers[lp.Name] = true

		slot, ok := slotByName[lp.Slot]
		require.True(t, ok, "unknown slot %s", lp.Slot)
		assert.True(t, slot.Accepts(byName[lp.Name]), "player %s cannot fill slot %s", lp.Name, lp.Slot)
	}

	for _, slot := range []string{"PG", "SG", "SF", "PF", "C", "G", "F", "UTIL"} {
		assert.Equal(t, 1, slotCounts[slot], "slot %s should hold exactly one player", slot)
	}
}

func TestAssignPlayersToSlots_PrefersScarcePlayersForExactSlots(t *testing.T) {
	// The only pure shooting guard must take the SG slot even though the
	// combo guard is listed first.
	roster := []Player{
		{Name: "Combo Guard", Positions: []string{"PG", "SG"}, Salary: 6000, Projection: 30.0},
		{Name: "Pure Shooting Guard", Positions: []string{"SG"}, Salary: 6000, Projection: 30.0},
	}
	slots := []SlotRule{
		{Name: "SG", Eligible: []string{"SG"}, Count: 1, Priority: 1},
		{Name: "G", Eligible: []string{"PG", "SG"}, Count: 1, Priority: 2},
	}

	assigned := AssignPlayersToSlots(slots, roster)
	require.Len(t, assigned, 2)

	bySlot := make(map[string]string)
	for _, lp := range assigned {
		bySlot[lp.Slot] = lp.Name
	}
	assert.Equal(t, "Pure Shooting Guard", bySlot["SG"])
	assert.Equal(t, "Combo Guard", bySlot["G"])
}

func TestAssignPlayersToSlots_LabelsLeftovers(t *testing.T) {
	// Two centers against a guard-only template: the second center cannot
	// be placed and falls back to a position label.
	roster := []Player{
		{Name: "Nikola Jokic", Positions: []string{"C"}, Salary: 8900, Projection: 57.0},
		{Name: "Joel Embiid", Positions: []string{"C"}, Salary: 8800, Projection: 56.0},
	}
	slots := []SlotRule{
		{Name: "C", Eligible: []string{"C"}, Count: 1, Priority: 1},
		{Name: "G", Eligible: []string{"PG", "SG"}, Count: 1, Priority: 2},
	}

	assigned := AssignPlayersToSlots(slots, roster)
	require.Len(t, assigned, 2)
	assert.Equal(t, "C", assigned[0].Slot)
	assert.Equal(t, "C", assigned[1].Slot, "leftover center keeps its position as the label")
}
