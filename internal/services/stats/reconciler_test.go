package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/scoring"
	"github.com/mcoot/ablakos-go/internal/storage"
	"github.com/mcoot/ablakos-go/internal/storage/memory"
	"github.com/mcoot/ablakos-go/internal/testutil"
)

// flakyStorage wraps a storage backend and fails ApplyStatDelta for chosen
// players, simulating partial write failures.
type flakyStorage struct {
	storage.Storage
	failFor map[model.PlayerID]bool
}

func (f *flakyStorage) ApplyStatDelta(ctx context.Context, id model.PlayerID, delta model.StatDelta) error {
	if f.failFor[id] {
		return errors.New("write failed")
	}
	return f.Storage.ApplyStatDelta(ctx, id, delta)
}

type ReconcilerSuite struct {
	suite.Suite
	storage    *memory.Storage
	flaky      *flakyStorage
	reconciler *Reconciler
	ctx        context.Context
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.storage = memory.New()
	s.flaky = &flakyStorage{Storage: s.storage, failFor: map[model.PlayerID]bool{}}
	s.reconciler = NewReconciler(s.flaky, scoring.New(scoring.DefaultThreshold), testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *ReconcilerSuite) seedPlayers(ids ...model.PlayerID) {
	for _, id := range ids {
		player := &model.Player{
			ID:          id,
			UID:         "test:" + string(id),
			DisplayName: string(id),
			CreatedAt:   time.Now(),
		}
		s.Require().NoError(s.storage.SavePlayer(s.ctx, player))
	}
}

func (s *ReconcilerSuite) completedGame(scores map[model.PlayerID]int) *model.Game {
	players := []model.PlayerID{"a", "b", "c"}
	endedAt := time.Now()
	return &model.Game{
		ID:        "game-1",
		PlayerIDs: players,
		Status:    model.GameStatusCompleted,
		EndReason: model.EndReasonThreshold,
		Rounds:    []model.Round{{Scores: scores, PlayedAt: endedAt}},
		StartedAt: endedAt.Add(-time.Hour),
		EndedAt:   &endedAt,
	}
}

func (s *ReconcilerSuite) getStats(id model.PlayerID) model.PlayerStats {
	player, err := s.storage.GetPlayer(s.ctx, id)
	s.Require().NoError(err)
	return player.Stats
}

func (s *ReconcilerSuite) TestApply() {
	s.seedPlayers("a", "b", "c")
	game := s.completedGame(map[model.PlayerID]int{"a": 30, "b": 105, "c": -135})

	s.Require().NoError(s.reconciler.Apply(s.ctx, game))

	c := s.getStats("c")
	s.Equal(1, c.Wins)
	s.Equal(1, c.MatchesPlayed)
	s.Equal(-135, c.TotalPoints)
	s.Require().NotNil(c.BestGameScore)
	s.Equal(-135, *c.BestGameScore)

	b := s.getStats("b")
	s.Equal(0, b.Wins)
	s.Equal(1, b.MatchesPlayed)
	s.Equal(105, b.TotalPoints)
}

func (s *ReconcilerSuite) TestApplyTwiceIsExactlyOnce() {
	s.seedPlayers("a", "b", "c")
	game := s.completedGame(map[model.PlayerID]int{"a": 10, "b": 50, "c": 110})

	s.Require().NoError(s.reconciler.Apply(s.ctx, game))
	s.Require().NoError(s.reconciler.Apply(s.ctx, game))

	a := s.getStats("a")
	s.Equal(1, a.Wins)
	s.Equal(1, a.MatchesPlayed)
	s.Equal(10, a.TotalPoints)
}

func (s *ReconcilerSuite) TestApplyInProgressGame() {
	game := s.completedGame(map[model.PlayerID]int{"a": 10, "b": 50, "c": 110})
	game.Status = model.GameStatusInProgress
	game.EndReason = ""

	err := s.reconciler.Apply(s.ctx, game)
	s.ErrorIs(err, model.ErrGameNotCompleted)
}

func (s *ReconcilerSuite) TestApplyManuallyEndedGame() {
	s.seedPlayers("a", "b", "c")
	game := s.completedGame(map[model.PlayerID]int{"a": 10, "b": 50, "c": 110})
	game.EndReason = model.EndReasonManual

	s.Require().NoError(s.reconciler.Apply(s.ctx, game))

	s.Equal(0, s.getStats("a").MatchesPlayed)
	s.Equal(0, s.getStats("c").MatchesPlayed)
}

func (s *ReconcilerSuite) TestApplyPartialFailureThenRetry() {
	s.seedPlayers("a", "b", "c")
	game := s.completedGame(map[model.PlayerID]int{"a": 10, "b": 50, "c": 110})

	s.flaky.failFor["b"] = true

	err := s.reconciler.Apply(s.ctx, game)
	var recErr *ReconciliationError
	s.Require().ErrorAs(err, &recErr)
	s.Equal(game.ID, recErr.GameID)
	s.Contains(recErr.Failed, model.PlayerID("b"))
	s.Len(recErr.Failed, 1)

	// Successful players were applied despite the failure
	s.Equal(1, s.getStats("a").MatchesPlayed)
	s.Equal(0, s.getStats("b").MatchesPlayed)

	// Retry applies only the failed player, without double-applying the rest
	s.flaky.failFor["b"] = false
	s.Require().NoError(s.reconciler.Apply(s.ctx, game))

	s.Equal(1, s.getStats("a").MatchesPlayed)
	s.Equal(10, s.getStats("a").TotalPoints)
	s.Equal(1, s.getStats("b").MatchesPlayed)
	s.Equal(50, s.getStats("b").TotalPoints)
}

func (s *ReconcilerSuite) TestBestGameScoreOnlyImproves() {
	s.seedPlayers("a", "b", "c")

	first := s.completedGame(map[model.PlayerID]int{"a": 10, "b": 50, "c": 110})
	s.Require().NoError(s.reconciler.Apply(s.ctx, first))

	second := s.completedGame(map[model.PlayerID]int{"a": 40, "b": 30, "c": 105})
	second.ID = "game-2"
	s.Require().NoError(s.reconciler.Apply(s.ctx, second))

	a := s.getStats("a")
	s.Equal(2, a.MatchesPlayed)
	s.Equal(50, a.TotalPoints)
	s.Require().NotNil(a.BestGameScore)
	s.Equal(10, *a.BestGameScore)
}
