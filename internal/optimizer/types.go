package optimizer

import (
	"sort"
	"strings"
	"time"
)

// Player is one candidate in a catalog. Name is the unique key; Positions
// holds every position code the player can legally fill (multi-eligibility
// like "SF/PF" arrives already split).
type Player struct {
	Name       string   `json:"name"`
	Positions  []string `json:"positions"`
	Salary     int      `json:"salary"`
	Projection float64  `json:"projection"`
	Team       string   `json:"team,omitempty"`
}

// Value returns projected points per $1k of salary, the usual DFS value
// metric. Salary is validated positive before a Player enters a catalog.
func (p Player) Value() float64 {
	return p.Projection / (float64(p.Salary) / 1000.0)
}

// HasPosition reports whether the player is eligible at the given position.
func (p Player) HasPosition(code string) bool {
	for _, pos := range p.Positions {
		if pos == code {
			return true
		}
	}
	return false
}

// PositionString renders the position set the way salary files list it.
func (p Player) PositionString() string {
	return strings.Join(p.Positions, "/")
}

// OptimizeConfig carries the per-batch user inputs.
type OptimizeConfig struct {
	SalaryCapMin     int      `json:"salary_cap_min"`
	SalaryCapMax     int      `json:"salary_cap_max"`
	NumLineups       int      `json:"num_lineups"`
	LockedPlayers    []string `json:"locked_players,omitempty"`
	ExcludedPlayers  []string `json:"excluded_players,omitempty"`
	MaxExposure      float64  `json:"max_exposure,omitempty"` // fraction of the batch; 0 means unlimited
	ValueWeight      float64  `json:"value_weight,omitempty"` // blends points-per-$1k into the objective
	DuplicateRetries int      `json:"duplicate_retries,omitempty"`

	// RunID keys the batch before it starts, so callers can persist and
	// subscribe to the run up front. Empty means the optimizer assigns one.
	RunID string `json:"-"`
}

// LineupPlayer is one roster spot in an accepted lineup. Slot is the display
// assignment; feasibility is decided by the constraint system, not by it.
type LineupPlayer struct {
	Name       string   `json:"name"`
	Slot       string   `json:"slot"`
	Positions  []string `json:"positions"`
	Salary     int      `json:"salary"`
	Projection float64  `json:"projection"`
}

// Lineup is one accepted roster. Immutable once accepted into a batch.
type Lineup struct {
	ID              string         `json:"id"`
	Players         []LineupPlayer `json:"players"`
	TotalSalary     int            `json:"total_salary"`
	TotalProjection float64        `json:"total_projection"`
}

// PlayerNames returns the member names in lineup order.
func (l Lineup) PlayerNames() []string {
	names := make([]string, len(l.Players))
	for i, p := range l.Players {
		names[i] = p.Name
	}
	return names
}

// Key returns the order-independent identity of the roster, used for
// duplicate rejection within a batch.
func (l Lineup) Key() string {
	names := l.PlayerNames()
	sort.Strings(names)
	return strings.Join(names, "|")
}

// Contains reports whether the lineup includes the named player.
func (l Lineup) Contains(name string) bool {
	for _, p := range l.Players {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Failure reasons recorded per requested lineup that produced no roster.
const (
	FailureInfeasible = "infeasible"
	FailureDuplicate  = "duplicate"
)

// LineupFailure records one requested lineup the batch could not fill.
type LineupFailure struct {
	LineupNumber int    `json:"lineup_number"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
}

// BatchSummary aggregates the accepted lineups of a batch.
type BatchSummary struct {
	MeanProjection   float64 `json:"mean_projection"`
	StdDevProjection float64 `json:"stddev_projection"`
	BestProjection   float64 `json:"best_projection"`
}

// BatchResult is the output of one orchestrated run. A result with fewer
// lineups than requested is valid, degraded output, not an error.
type BatchResult struct {
	RunID     string          `json:"run_id"`
	Requested int             `json:"requested"`
	Lineups   []Lineup        `json:"lineups"`
	Failures  []LineupFailure `json:"failures,omitempty"`
	Exposure  *ExposureReport `json:"exposure,omitempty"`
	Summary   BatchSummary    `json:"summary"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
}

// ProgressUpdate is emitted after every attempted lineup in a batch.
type ProgressUpdate struct {
	RunID        string    `json:"run_id"`
	Stage        string    `json:"stage"` // solving, accepted, infeasible, duplicate, completed
	LineupNumber int       `json:"lineup_number"`
	TotalLineups int       `json:"total_lineups"`
	Accepted     int       `json:"accepted"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}
