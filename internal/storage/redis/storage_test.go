package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage"
)

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	s.storage = NewWithClient(client, DefaultConfig())
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) savePlayer(id, uid string) *model.Player {
	player := &model.Player{
		ID:          model.PlayerID(id),
		UID:         uid,
		DisplayName: "Player " + id,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.storage.SavePlayer(s.ctx, player))
	return player
}

func (s *StorageSuite) saveGame(id string, players ...model.PlayerID) *model.Game {
	game := &model.Game{
		ID:        model.GameID(id),
		PlayerIDs: players,
		Status:    model.GameStatusInProgress,
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.storage.SaveGame(s.ctx, game))
	return game
}

// Player tests

func (s *StorageSuite) TestSaveAndGetPlayer() {
	player := s.savePlayer("player-1", "uid-1")

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(player.ID, retrieved.ID)
	s.Equal(player.UID, retrieved.UID)
	s.Equal(player.DisplayName, retrieved.DisplayName)
	s.Equal(0, retrieved.Stats.MatchesPlayed)
	s.Nil(retrieved.Stats.BestGameScore)
}

func (s *StorageSuite) TestGetPlayerNotFound() {
	_, err := s.storage.GetPlayer(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestGetPlayerByUID() {
	s.savePlayer("player-1", "uid-1")

	retrieved, err := s.storage.GetPlayerByUID(s.ctx, "uid-1")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.ID)

	_, err = s.storage.GetPlayerByUID(s.ctx, "uid-other")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestListPlayers() {
	s.savePlayer("player-1", "uid-1")
	s.savePlayer("player-2", "uid-2")

	players, err := s.storage.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Len(players, 2)
}

func (s *StorageSuite) TestDeletePlayer() {
	s.savePlayer("player-1", "uid-1")

	s.Require().NoError(s.storage.DeletePlayer(s.ctx, "player-1"))

	_, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
	_, err = s.storage.GetPlayerByUID(s.ctx, "uid-1")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *StorageSuite) TestSavePlayerDoesNotResetStats() {
	player := s.savePlayer("player-1", "uid-1")

	err := s.storage.ApplyStatDelta(s.ctx, "player-1", model.StatDelta{
		Wins: 1, MatchesPlayed: 1, TotalPoints: 30, GameScore: 30,
	})
	s.Require().NoError(err)

	// Re-saving the profile must not clobber reconciled stats
	player.DisplayName = "Renamed"
	s.Require().NoError(s.storage.SavePlayer(s.ctx, player))

	retrieved, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal("Renamed", retrieved.DisplayName)
	s.Equal(1, retrieved.Stats.Wins)
	s.Equal(30, retrieved.Stats.TotalPoints)
}

// Credentials tests

func (s *StorageSuite) TestSaveAndGetCredentials() {
	creds := &model.Credentials{
		PlayerID:     "player-1",
		Username:     "alice",
		PasswordHash: "hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.storage.SaveCredentials(s.ctx, creds))

	retrieved, err := s.storage.GetCredentialsByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(model.PlayerID("player-1"), retrieved.PlayerID)
	s.Equal("hash", retrieved.PasswordHash)

	_, err = s.storage.GetCredentialsByUsername(s.ctx, "bob")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

// Game tests

func (s *StorageSuite) TestSaveAndGetGame() {
	s.saveGame("game-1", "a", "b", "c")

	retrieved, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Equal([]model.PlayerID{"a", "b", "c"}, retrieved.PlayerIDs)
	s.Equal(model.GameStatusInProgress, retrieved.Status)
	s.Empty(retrieved.Rounds)
}

func (s *StorageSuite) TestGetGameNotFound() {
	_, err := s.storage.GetGame(s.ctx, "nonexistent")
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestAppendRoundPreservesOrder() {
	s.saveGame("game-1", "a", "b", "c")

	for i := 1; i <= 5; i++ {
		round := model.Round{
			Scores:   map[model.PlayerID]int{"a": i, "b": i, "c": i},
			PlayedAt: time.Now().UTC().Truncate(time.Second),
		}
		s.Require().NoError(s.storage.AppendRound(s.ctx, "game-1", round))
	}

	game, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Require().Len(game.Rounds, 5)
	for i, round := range game.Rounds {
		s.Equal(i+1, round.Scores["a"])
	}
}

func (s *StorageSuite) TestAppendRoundGameNotFound() {
	err := s.storage.AppendRound(s.ctx, "nonexistent", model.Round{})
	s.ErrorIs(err, model.ErrGameNotFound)
}

func (s *StorageSuite) TestAppendRoundCompletedGame() {
	s.saveGame("game-1", "a", "b", "c")

	transitioned, err := s.storage.CompleteGame(s.ctx, "game-1", model.EndReasonThreshold, time.Now().UTC().Truncate(time.Second))
	s.Require().NoError(err)
	s.True(transitioned)

	round := model.Round{
		Scores:   map[model.PlayerID]int{"a": 1, "b": 2, "c": 3},
		PlayedAt: time.Now().UTC().Truncate(time.Second),
	}
	err = s.storage.AppendRound(s.ctx, "game-1", round)
	s.ErrorIs(err, model.ErrGameNotActive)

	// The completed game's round log is untouched
	game, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Empty(game.Rounds)
}

func (s *StorageSuite) TestCompleteGameOnlyTransitionsOnce() {
	s.saveGame("game-1", "a", "b", "c")

	transitioned, err := s.storage.CompleteGame(s.ctx, "game-1", model.EndReasonThreshold, time.Now())
	s.Require().NoError(err)
	s.True(transitioned)

	transitioned, err = s.storage.CompleteGame(s.ctx, "game-1", model.EndReasonManual, time.Now())
	s.Require().NoError(err)
	s.False(transitioned)

	game, err := s.storage.GetGame(s.ctx, "game-1")
	s.Require().NoError(err)
	s.Equal(model.GameStatusCompleted, game.Status)
	s.Equal(model.EndReasonThreshold, game.EndReason)
	s.Require().NotNil(game.EndedAt)
}

func (s *StorageSuite) TestListGamesByStatus() {
	s.saveGame("game-1", "a", "b", "c")
	s.saveGame("game-2", "a", "b", "c")
	_, err := s.storage.CompleteGame(s.ctx, "game-2", model.EndReasonThreshold, time.Now())
	s.Require().NoError(err)

	active, err := s.storage.ListGamesByStatus(s.ctx, model.GameStatusInProgress)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(model.GameID("game-1"), active[0].ID)

	completed, err := s.storage.ListGamesByStatus(s.ctx, model.GameStatusCompleted)
	s.Require().NoError(err)
	s.Require().Len(completed, 1)
	s.Equal(model.GameID("game-2"), completed[0].ID)
}

// Stat tests

func (s *StorageSuite) TestApplyStatDeltaBestScoreIsMinimum() {
	s.savePlayer("player-1", "uid-1")

	apply := func(score int) {
		err := s.storage.ApplyStatDelta(s.ctx, "player-1", model.StatDelta{
			MatchesPlayed: 1, TotalPoints: score, GameScore: score,
		})
		s.Require().NoError(err)
	}

	apply(42)
	apply(100)
	apply(-5)

	player, err := s.storage.GetPlayer(s.ctx, "player-1")
	s.Require().NoError(err)
	s.Equal(3, player.Stats.MatchesPlayed)
	s.Equal(137, player.Stats.TotalPoints)
	s.Require().NotNil(player.Stats.BestGameScore)
	s.Equal(-5, *player.Stats.BestGameScore)
}

func (s *StorageSuite) TestMarkStatsAppliedClaimsOnce() {
	claimed, err := s.storage.MarkStatsApplied(s.ctx, "game-1", "player-1")
	s.Require().NoError(err)
	s.True(claimed)

	claimed, err = s.storage.MarkStatsApplied(s.ctx, "game-1", "player-1")
	s.Require().NoError(err)
	s.False(claimed)

	s.Require().NoError(s.storage.ClearStatsApplied(s.ctx, "game-1", "player-1"))

	claimed, err = s.storage.MarkStatsApplied(s.ctx, "game-1", "player-1")
	s.Require().NoError(err)
	s.True(claimed)
}

// Subscription tests

func (s *StorageSuite) TestWatchGameInitialDelivery() {
	s.saveGame("game-1", "a", "b", "c")

	sub, err := s.storage.WatchGame(s.ctx, "game-1")
	s.Require().NoError(err)
	defer sub.Close()

	update := s.receiveUpdate(sub.Updates())
	s.Require().True(update.Exists)
	s.Equal(model.GameID("game-1"), update.Game.ID)
}

func (s *StorageSuite) TestWatchGameDeliversChanges() {
	s.saveGame("game-1", "a", "b", "c")

	sub, err := s.storage.WatchGame(s.ctx, "game-1")
	s.Require().NoError(err)
	defer sub.Close()

	// Drain the initial snapshot
	_ = s.receiveUpdate(sub.Updates())

	round := model.Round{
		Scores:   map[model.PlayerID]int{"a": 1, "b": 2, "c": 3},
		PlayedAt: time.Now().UTC().Truncate(time.Second),
	}
	s.Require().NoError(s.storage.AppendRound(s.ctx, "game-1", round))

	update := s.receiveUpdate(sub.Updates())
	s.Require().True(update.Exists)
	s.Len(update.Game.Rounds, 1)
}

func (s *StorageSuite) receiveUpdate(ch <-chan storage.GameUpdate) storage.GameUpdate {
	select {
	case update := <-ch:
		return update
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for game update")
		panic("unreachable")
	}
}
