package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ablakos-go/internal/model"
)

type IntegrationSuite struct {
	suite.Suite
	app *TestApp
	ctx context.Context
}

func TestIntegrationSuite(t *testing.T) {
	suite.Run(t, new(IntegrationSuite))
}

func (s *IntegrationSuite) SetupTest() {
	s.app = NewTestApp()
	s.ctx = context.Background()
}

func (s *IntegrationSuite) seedPlayers(ids ...string) []model.PlayerID {
	playerIDs := make([]model.PlayerID, 0, len(ids))
	for _, id := range ids {
		p, err := s.app.SeedPlayer(s.ctx, id, "Player "+id)
		s.Require().NoError(err)
		playerIDs = append(playerIDs, p.ID)
	}
	return playerIDs
}

// Test: Complete game flow from start through threshold completion and
// stat reconciliation
func (s *IntegrationSuite) TestCompleteGameFlow() {
	s.app.MockRandom.QueueString("GAME01")
	players := s.seedPlayers("alice", "bob", "carol")

	// Step 1: Start a game
	g, err := s.app.GameController.StartGame(s.ctx, players)
	s.Require().NoError(err)
	s.Equal(model.GameID("GAME01"), g.ID)
	s.Equal(model.GameStatusInProgress, g.Status)

	// Step 2: Submit a round that does not reach the threshold
	g, err = s.app.GameController.SubmitRound(s.ctx, g.ID, map[model.PlayerID]int{
		"alice": 10, "bob": 20, "carol": 30,
	})
	s.Require().NoError(err)
	s.Equal(model.GameStatusInProgress, g.Status)
	s.Len(g.Rounds, 1)

	// Step 3: Submit a round that pushes carol over the threshold
	g, err = s.app.GameController.SubmitRound(s.ctx, g.ID, map[model.PlayerID]int{
		"alice": 5, "bob": 15, "carol": 70,
	})
	s.Require().NoError(err)
	s.Equal(model.GameStatusCompleted, g.Status)
	s.Equal(model.EndReasonThreshold, g.EndReason)

	// Step 4: Alice has the lowest total and wins
	winner, ok := s.app.GameController.Winner(g)
	s.Require().True(ok)
	s.Equal(model.PlayerID("alice"), winner)

	// Step 5: Stats were reconciled exactly once per player
	alice, err := s.app.Storage.GetPlayer(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1, alice.Stats.Wins)
	s.Equal(1, alice.Stats.MatchesPlayed)
	s.Equal(15, alice.Stats.TotalPoints)
	s.Require().NotNil(alice.Stats.BestGameScore)
	s.Equal(15, *alice.Stats.BestGameScore)

	carol, err := s.app.Storage.GetPlayer(s.ctx, "carol")
	s.Require().NoError(err)
	s.Equal(0, carol.Stats.Wins)
	s.Equal(1, carol.Stats.MatchesPlayed)
	s.Equal(100, carol.Stats.TotalPoints)

	// Step 6: Game appears in completed history
	history, err := s.app.GameController.ListCompletedGames(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(g.ID, history[0].ID)

	// Step 7: Further rounds are rejected
	_, err = s.app.GameController.SubmitRound(s.ctx, g.ID, map[model.PlayerID]int{
		"alice": 1, "bob": 1, "carol": 1,
	})
	s.Require().ErrorIs(err, model.ErrGameNotActive)
}

// Test: Manual termination leaves player statistics untouched
func (s *IntegrationSuite) TestManualEndFlow() {
	s.app.MockRandom.QueueString("GAME02")
	players := s.seedPlayers("dan", "erin", "faye")

	g, err := s.app.GameController.StartGame(s.ctx, players)
	s.Require().NoError(err)

	_, err = s.app.GameController.SubmitRound(s.ctx, g.ID, map[model.PlayerID]int{
		"dan": 40, "erin": 50, "faye": 60,
	})
	s.Require().NoError(err)

	g, err = s.app.GameController.EndGameManually(s.ctx, g.ID)
	s.Require().NoError(err)
	s.Equal(model.GameStatusCompleted, g.Status)
	s.Equal(model.EndReasonManual, g.EndReason)

	for _, id := range players {
		p, err := s.app.Storage.GetPlayer(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(0, p.Stats.MatchesPlayed)
		s.Equal(0, p.Stats.TotalPoints)
		s.Nil(p.Stats.BestGameScore)
	}
}

// Test: Auth registration and game participation end to end
func (s *IntegrationSuite) TestAuthAndObserveFlow() {
	s.app.MockRandom.QueueString("GAME03")

	// Register three players through the auth service
	var players []model.PlayerID
	for _, name := range []string{"gus", "hana", "ivan"} {
		session, err := s.app.AuthService.Register(s.ctx, name, "hunter22", "Player "+name)
		s.Require().NoError(err)
		players = append(players, session.PlayerID)
	}

	g, err := s.app.GameController.StartGame(s.ctx, players)
	s.Require().NoError(err)

	// Observe should deliver the current state immediately
	sub, err := s.app.GameController.ObserveGame(s.ctx, g.ID)
	s.Require().NoError(err)
	defer sub.Close()

	update := <-sub.Updates()
	s.Require().True(update.Exists)
	s.Equal(g.ID, update.Game.ID)
}
