package optimizer

import (
	"math"
	"strings"
)

// NBAPositions is the position vocabulary catalogs are validated against.
var NBAPositions = []string{"PG", "SG", "SF", "PF", "C"}

func isKnownPosition(code string) bool {
	for _, p := range NBAPositions {
		if p == code {
			return true
		}
	}
	return false
}

// ParsePositions splits a salary-file position string ("SF/PF") into a
// normalized, deduplicated position set.
func ParsePositions(raw string) ([]string, error) {
	parts := strings.Split(raw, "/")
	seen := make(map[string]bool, len(parts))
	positions := make([]string, 0, len(parts))
	for _, part := range parts {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if !isKnownPosition(code) {
			return nil, NewValidationError("position", "unknown position code "+code)
		}
		if !seen[code] {
			seen[code] = true
			positions = append(positions, code)
		}
	}
	if len(positions) == 0 {
		return nil, NewValidationError("position", "empty position set")
	}
	return positions, nil
}

// Catalog is the validated in-memory player pool one batch optimizes over.
type Catalog struct {
	players []Player
	index   map[string]int
}

// NewCatalog validates every record and builds the pool. The ingestion side
// owns column detection and normalization; anything still malformed here is
// a ValidationError, not something to repair.
func NewCatalog(players []Player) (*Catalog, error) {
	c := &Catalog{
		players: make([]Player, 0, len(players)),
		index:   make(map[string]int, len(players)),
	}
	for _, p := range players {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return nil, NewValidationError("name", "player name is required")
		}
		if _, exists := c.index[p.Name]; exists {
			return nil, NewValidationError("name", "duplicate player "+p.Name)
		}
		if p.Salary <= 0 {
			return nil, NewValidationError("salary", "player "+p.Name+" has non-positive salary")
		}
		if p.Projection < 0 || math.IsNaN(p.Projection) || math.IsInf(p.Projection, 0) {
			return nil, NewValidationError("projection", "player "+p.Name+" has invalid projection")
		}
		if len(p.Positions) == 0 {
			return nil, NewValidationError("position", "player "+p.Name+" has no positions")
		}
		normalized := make([]string, 0, len(p.Positions))
		seen := make(map[string]bool, len(p.Positions))
		for _, raw := range p.Positions {
			code := strings.ToUpper(strings.TrimSpace(raw))
			if !isKnownPosition(code) {
				return nil, NewValidationError("position", "player "+p.Name+" has unknown position "+raw)
			}
			if !seen[code] {
				seen[code] = true
				normalized = append(normalized, code)
			}
		}
		p.Positions = normalized

		c.index[p.Name] = len(c.players)
		c.players = append(c.players, p)
	}
	if len(c.players) == 0 {
		return nil, NewValidationError("catalog", "empty player catalog")
	}
	return c, nil
}

// Players returns the pool in catalog order. Callers must not mutate it.
func (c *Catalog) Players() []Player {
	return c.players
}

// Len returns the pool size.
func (c *Catalog) Len() int {
	return len(c.players)
}

// Lookup finds a player by name.
func (c *Catalog) Lookup(name string) (Player, bool) {
	i, ok := c.index[name]
	if !ok {
		return Player{}, false
	}
	return c.players[i], true
}

// IndexOf returns the variable index of a player, or -1.
func (c *Catalog) IndexOf(name string) int {
	i, ok := c.index[name]
	if !ok {
		return -1
	}
	return i
}
