package optimizer

import "sort"

// SlotRule describes one roster slot: which positions may fill it and how
// many lineup spots it contributes. Priority orders slots for display
// assignment, most restrictive first.
type SlotRule struct {
	Name     string   `json:"name"`
	Eligible []string `json:"eligible"`
	Count    int      `json:"count"`
	Priority int      `json:"priority"`
}

// Accepts reports whether a player can fill this slot.
func (s SlotRule) Accepts(p Player) bool {
	for _, pos := range s.Eligible {
		if p.HasPosition(pos) {
			return true
		}
	}
	return false
}

// DraftKingsNBASlots returns the classic DraftKings NBA roster template:
// PG, SG, SF, PF, C, G, F, UTIL, one spot each.
func DraftKingsNBASlots() []SlotRule {
	return []SlotRule{
		{Name: "PG", Eligible: []string{"PG"}, Count: 1, Priority: 1},
		{Name: "SG", Eligible: []string{"SG"}, Count: 1, Priority: 2},
		{Name: "SF", Eligible: []string{"SF"}, Count: 1, Priority: 3},
		{Name: "PF", Eligible: []string{"PF"}, Count: 1, Priority: 4},
		{Name: "C", Eligible: []string{"C"}, Count: 1, Priority: 5},
		{Name: "G", Eligible: []string{"PG", "SG"}, Count: 1, Priority: 6},
		{Name: "F", Eligible: []string{"SF", "PF"}, Count: 1, Priority: 7},
		{Name: "UTIL", Eligible: []string{"PG", "SG", "SF", "PF", "C"}, Count: 1, Priority: 8},
	}
}

// RosterSize sums the slot counts of a template.
func RosterSize(slots []SlotRule) int {
	total := 0
	for _, s := range slots {
		total += s.Count
	}
	return total
}

// ValidateTemplate checks a slot template is usable: unique names, positive
// counts, known positions, and counts summing to the roster size.
func ValidateTemplate(slots []SlotRule, rosterSize int) error {
	if len(slots) == 0 {
		return NewValidationError("slots", "empty slot template")
	}
	names := make(map[string]bool, len(slots))
	total := 0
	for _, s := range slots {
		if s.Name == "" {
			return NewValidationError("slots", "slot with empty name")
		}
		if names[s.Name] {
			return NewValidationError("slots", "duplicate slot "+s.Name)
		}
		names[s.Name] = true
		if s.Count <= 0 {
			return NewValidationError("slots", "slot "+s.Name+" has non-positive count")
		}
		if len(s.Eligible) == 0 {
			return NewValidationError("slots", "slot "+s.Name+" accepts no positions")
		}
		for _, pos := range s.Eligible {
			if !isKnownPosition(pos) {
				return NewValidationError("slots", "slot "+s.Name+" references unknown position "+pos)
			}
		}
		total += s.Count
	}
	if total != rosterSize {
		return NewValidationError("slots", "slot counts do not sum to roster size")
	}
	return nil
}

// AssignPlayersToSlots maps a solved roster onto display slots. Slots are
// filled most restrictive first; within a slot the player with the fewest
// remaining options goes first so flexible players keep the G/F/UTIL spots.
// Labels are presentation metadata only, the solver never sees them.
func AssignPlayersToSlots(slots []SlotRule, players []Player) []LineupPlayer {
	ordered := make([]SlotRule, len(slots))
	copy(ordered, slots)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	assigned := make([]LineupPlayer, 0, len(players))
	used := make([]bool, len(players))

	optionsLeft := func(idx int) int {
		n := 0
		for _, s := range ordered {
			if s.Accepts(players[idx]) {
				n += s.Count
			}
		}
		return n
	}

	for _, slot := range ordered {
		for fill := 0; fill < slot.Count; fill++ {
			best := -1
			bestPositions := 0
			bestOptions := 0
			for i := range players {
				if used[i] || !slot.Accepts(players[i]) {
					continue
				}
				positions := len(players[i].Positions)
				opts := optionsLeft(i)
				if best == -1 || positions < bestPositions ||
					(positions == bestPositions && opts < bestOptions) {
					best = i
					bestPositions = positions
					bestOptions = opts
				}
			}
			if best == -1 {
				continue
			}
			used[best] = true
			assigned = append(assigned, LineupPlayer{
				Name:       players[best].Name,
				Slot:       slot.Name,
				Positions:  players[best].Positions,
				Salary:     players[best].Salary,
				Projection: players[best].Projection,
			})
		}
	}

	// Exotic position sets can defeat the greedy pass. Label leftovers by
	// their primary position so the lineup still renders complete.
	for i := range players {
		if used[i] {
			continue
		}
		assigned = append(assigned, LineupPlayer{
			Name:       players[i].Name,
			Slot:       players[i].Positions[0],
			Positions:  players[i].Positions,
			Salary:     players[i].Salary,
			Projection: players[i].Projection,
		})
	}
	return assigned
}
