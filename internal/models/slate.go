package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
)

// Slate is a stored player pool for one contest date. DefaultRules holds
// slate-level optimizer defaults (salary window, exposure) as JSON so new
// defaults never need a migration.
type Slate struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string         `gorm:"not null" json:"name"`
	Sport        string         `gorm:"not null;default:nba" json:"sport"`
	Platform     string         `gorm:"not null;default:draftkings" json:"platform"`
	SalaryCap    int            `gorm:"not null" json:"salary_cap"`
	GameCount    int            `json:"game_count"`
	StartTime    time.Time      `json:"start_time"`
	IsActive     bool           `gorm:"default:true" json:"is_active"`
	DefaultRules datatypes.JSON `gorm:"type:jsonb" json:"default_rules,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	Players []SlatePlayer `gorm:"foreignKey:SlateID;constraint:OnDelete:CASCADE" json:"players,omitempty"`
}

func (Slate) TableName() string {
	return "slates"
}

// BeforeCreate assigns a UUID primary key when none was provided.
func (s *Slate) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// SlatePlayer is one salary-file row. The composite unique index mirrors
// the catalog invariant that a name appears once per slate.
type SlatePlayer struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SlateID    string         `gorm:"type:uuid;not null;uniqueIndex:idx_slate_player_name" json:"slate_id"`
	Name       string         `gorm:"not null;uniqueIndex:idx_slate_player_name" json:"name"`
	Team       string         `json:"team"`
	Positions  pq.StringArray `gorm:"type:text[];not null" json:"positions"`
	Salary     int            `gorm:"not null" json:"salary"`
	Projection float64        `gorm:"not null" json:"projection"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (SlatePlayer) TableName() string {
	return "slate_players"
}

// ToCatalogPlayer converts a stored row into the optimizer's player shape.
func (p *SlatePlayer) ToCatalogPlayer() optimizer.Player {
	return optimizer.Player{
		Name:       p.Name,
		Positions:  append([]string(nil), p.Positions...),
		Salary:     p.Salary,
		Projection: p.Projection,
		Team:       p.Team,
	}
}

// CatalogPlayers converts a slate's rows into optimizer players.
func CatalogPlayers(rows []SlatePlayer) []optimizer.Player {
	players := make([]optimizer.Player, len(rows))
	for i := range rows {
		players[i] = rows[i].ToCatalogPlayer()
	}
	return players
}

// SlatePlayersFrom builds storable rows from optimizer players.
func SlatePlayersFrom(slateID string, players []optimizer.Player) []SlatePlayer {
	rows := make([]SlatePlayer, len(players))
	for i, p := range players {
		rows[i] = SlatePlayer{
			SlateID:    slateID,
			Name:       p.Name,
			Team:       p.Team,
			Positions:  pq.StringArray(p.Positions),
			Salary:     p.Salary,
			Projection: p.Projection,
		}
	}
	return rows
}
