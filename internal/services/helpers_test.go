package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.NewConnection(":memory:", false)
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Slate{}, &models.SlatePlayer{}, &models.OptimizationRun{}))

	t.Cleanup(func() { db.Close() })
	return db
}

// testPoolPlayers is two players per position: one stud, one punt. Any eight
// of the ten are DraftKings-staffable, so lineup choice comes down to which
// two studs get dropped for salary.
func testPoolPlayers() []optimizer.Player {
	return []optimizer.Player{
		{Name: "Trae Young", Positions: []string{"PG"}, Salary: 8800, Projection: 54.0, Team: "ATL"},
		{Name: "Zach LaVine", Positions: []string{"SG"}, Salary: 9200, Projection: 55.0, Team: "CHI"},
		{Name: "Jimmy Butler", Positions: []string{"SF"}, Salary: 9100, Projection: 56.0, Team: "MIA"},
		{Name: "Paolo Banchero", Positions: []string{"PF"}, Salary: 9000, Projection: 53.0, Team: "ORL"},
		{Name: "Bam Adebayo", Positions: []string{"C"}, Salary: 9300, Projection: 57.0, Team: "MIA"},
		{Name: "Coby White", Positions: []string{"PG"}, Salary: 4000, Projection: 44.0, Team: "CHI"},
		{Name: "Malik Monk", Positions: []string{"SG"}, Salary: 4100, Projection: 43.0, Team: "SAC"},
		{Name: "Andrew Wiggins", Positions: []string{"SF"}, Salary: 4200, Projection: 45.0, Team: "GSW"},
		{Name: "Tobias Harris", Positions: []string{"PF"}, Salary: 4300, Projection: 46.0, Team: "DET"},
		{Name: "Isaiah Hartenstein", Positions: []string{"C"}, Salary: 4400, Projection: 47.0, Team: "OKC"},
	}
}

func seedSlate(t *testing.T, store *SlateStore, startTime time.Time) *models.Slate {
	t.Helper()

	slate := &models.Slate{
		Name:      "NBA Main Slate",
		Sport:     "nba",
		Platform:  "draftkings",
		SalaryCap: 50000,
		GameCount: 5,
		StartTime: startTime,
		IsActive:  true,
	}
	require.NoError(t, store.CreateSlate(context.Background(), slate, testPoolPlayers()))
	return slate
}
