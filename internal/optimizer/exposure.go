package optimizer

import (
	"math"
	"sort"
)

// ExposureTracker counts how many accepted lineups each player appears in
// and converts a batch-level exposure fraction into a hard per-player cap.
// The cap is floor(requested * fraction): a fraction of 1 can never bind,
// and a fraction small enough to floor to zero bans the whole pool, which
// the solver then reports as infeasible.
type ExposureTracker struct {
	counts      map[string]int
	accepted    int
	requested   int
	maxFraction float64
	limit       int
}

// NewExposureTracker builds a tracker for a batch of requested lineups.
// Fractions outside (0, 1] mean no cap and normalize to 1.
func NewExposureTracker(requested int, maxFraction float64) *ExposureTracker {
	if maxFraction <= 0 || maxFraction > 1 {
		maxFraction = 1.0
	}
	return &ExposureTracker{
		counts:      make(map[string]int),
		requested:   requested,
		maxFraction: maxFraction,
		limit:       int(math.Floor(float64(requested) * maxFraction)),
	}
}

// AtLimit reports whether a player has used up their exposure budget.
func (t *ExposureTracker) AtLimit(name string) bool {
	return t.counts[name] >= t.limit
}

// Record counts every player of an accepted lineup.
func (t *ExposureTracker) Record(lineup Lineup) {
	for _, p := range lineup.Players {
		t.counts[p.Name]++
	}
	t.accepted++
}

// Count returns how many accepted lineups contain the player.
func (t *ExposureTracker) Count(name string) int {
	return t.counts[name]
}

// Limit returns the per-player lineup cap for this batch.
func (t *ExposureTracker) Limit() int {
	return t.limit
}

// Accepted returns how many lineups have been recorded.
func (t *ExposureTracker) Accepted() int {
	return t.accepted
}

// Reset clears all counts so the tracker can serve another batch.
func (t *ExposureTracker) Reset() {
	t.counts = make(map[string]int)
	t.accepted = 0
}

// PlayerExposure is one player's share of a finished batch.
type PlayerExposure struct {
	Name        string  `json:"name"`
	Count       int     `json:"count"`
	Percentage  float64 `json:"percentage"`
	IsViolation bool    `json:"is_violation"`
}

// ExposureReport summarizes player usage across the accepted lineups of a
// batch. IsViolation marks players a lock pushed past the cap.
type ExposureReport struct {
	AcceptedLineups int              `json:"accepted_lineups"`
	Limit           int              `json:"limit"`
	MaxFraction     float64          `json:"max_fraction"`
	Players         []PlayerExposure `json:"players"`
}

// Report builds the usage summary, most-used players first.
func (t *ExposureTracker) Report() *ExposureReport {
	report := &ExposureReport{
		AcceptedLineups: t.accepted,
		Limit:           t.limit,
		MaxFraction:     t.maxFraction,
		Players:         make([]PlayerExposure, 0, len(t.counts)),
	}
	for name, count := range t.counts {
		pct := 0.0
		if t.accepted > 0 {
			pct = float64(count) / float64(t.accepted)
		}
		report.Players = append(report.Players, PlayerExposure{
			Name:        name,
			Count:       count,
			Percentage:  pct,
			IsViolation: count > t.limit,
		})
	}
	sort.Slice(report.Players, func(i, j int) bool {
		if report.Players[i].Count != report.Players[j].Count {
			return report.Players[i].Count > report.Players[j].Count
		}
		return report.Players[i].Name < report.Players[j].Name
	})
	return report
}
