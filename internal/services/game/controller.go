package game

import (
	"context"
	"log/slog"

	"github.com/mcoot/ablakos-go/internal/dependencies/clock"
	"github.com/mcoot/ablakos-go/internal/dependencies/random"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/scoring"
	"github.com/mcoot/ablakos-go/internal/services/stats"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// Controller orchestrates the game lifecycle: creation, round submission,
// end-of-game evaluation and the handoff to winner resolution and stat
// reconciliation. It is the only component with storage side effects; the
// scoring computations it drives are pure.
type Controller struct {
	storage    storage.Storage
	scoring    scoring.ServiceInterface
	reconciler stats.ReconcilerInterface
	clock      clock.Clock
	random     random.Random
	logger     *slog.Logger
}

// NewController creates a new game session controller
func NewController(
	storage storage.Storage,
	scoring scoring.ServiceInterface,
	reconciler stats.ReconcilerInterface,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:    storage,
		scoring:    scoring,
		reconciler: reconciler,
		clock:      clock,
		random:     random,
		logger:     logger,
	}
}

// StartGame creates a new game for the given participants. Participants are
// fixed for the game's lifetime; at least 3 unique players are required and
// every participant must be an existing player.
func (c *Controller) StartGame(ctx context.Context, playerIDs []model.PlayerID) (*model.Game, error) {
	seen := make(map[model.PlayerID]bool, len(playerIDs))
	for _, id := range playerIDs {
		if seen[id] {
			return nil, model.ErrDuplicatePlayers
		}
		seen[id] = true
	}
	if len(playerIDs) < model.MinPlayers {
		return nil, model.ErrInsufficientPlayers
	}

	for _, id := range playerIDs {
		if _, err := c.storage.GetPlayer(ctx, id); err != nil {
			return nil, err
		}
	}

	now := c.clock.Now()
	gameID := model.GameID(c.random.String(12, "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"))

	game := &model.Game{
		ID:        gameID,
		PlayerIDs: append([]model.PlayerID(nil), playerIDs...),
		Status:    model.GameStatusInProgress,
		Rounds:    nil,
		StartedAt: now,
	}

	if err := c.storage.SaveGame(ctx, game); err != nil {
		c.logger.Error("failed to save game",
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Info("game started",
		slog.String("game_id", string(gameID)),
		slog.Int("player_count", len(playerIDs)),
	)

	return game, nil
}

// GetGame retrieves a game by ID
func (c *Controller) GetGame(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	return c.storage.GetGame(ctx, gameID)
}

// SubmitRound appends one complete round of scores to an active game, then
// runs the aggregate -> evaluate pipeline. A round must carry a score for
// exactly the game's participant set. Returns the game as of this submission.
func (c *Controller) SubmitRound(ctx context.Context, gameID model.GameID, scores map[model.PlayerID]int) (*model.Game, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if !game.IsActive() {
		return nil, model.ErrGameNotActive
	}

	for id := range scores {
		if !game.HasPlayer(id) {
			return nil, model.ErrUnknownRoundPlayer
		}
	}
	for _, id := range game.PlayerIDs {
		if _, ok := scores[id]; !ok {
			return nil, model.ErrIncompleteRound
		}
	}

	round := model.Round{
		Scores:   scores,
		PlayedAt: c.clock.Now(),
	}

	if err := c.storage.AppendRound(ctx, gameID, round); err != nil {
		return nil, err
	}

	// Evaluation always follows an append; if a previous terminal write
	// failed the game is still IN_PROGRESS here and gets re-evaluated
	return c.EvaluateGameEnd(ctx, gameID)
}

// EvaluateGameEnd re-aggregates the round log and, if any total has reached
// the threshold, performs the one-way transition to COMPLETED and feeds the
// completed game to the stat reconciler. Only the invocation that actually
// performs the transition triggers reconciliation, so concurrent evaluations
// on the same game converge without duplicate downstream effects. Evaluating
// an already-completed game is a no-op.
//
// Reconciliation failures are logged for system-level retry, never surfaced
// to the submitting caller: the game itself completed successfully.
func (c *Controller) EvaluateGameEnd(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	game, err := c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if game.Status != model.GameStatusInProgress {
		return game, nil
	}

	totals := c.scoring.TotalScores(game)
	if !c.scoring.ShouldEnd(totals) {
		return game, nil
	}

	endedAt := c.clock.Now()
	transitioned, err := c.storage.CompleteGame(ctx, gameID, model.EndReasonThreshold, endedAt)
	if err != nil {
		// Terminal write failed: the game stays IN_PROGRESS and the next
		// submission re-evaluates
		c.logger.Error("failed to complete game",
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	game, err = c.storage.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if !transitioned {
		// Lost the race to another evaluator; it owns the downstream effects
		return game, nil
	}

	winner, _ := c.scoring.Winner(game, totals)
	c.logger.Info("game completed",
		slog.String("game_id", string(gameID)),
		slog.String("winner", string(winner)),
		slog.Int("rounds", len(game.Rounds)),
	)

	if err := c.reconciler.Apply(ctx, game); err != nil {
		c.logger.Error("stat reconciliation failed",
			slog.String("game_id", string(gameID)),
			slog.String("error", err.Error()),
		)
	}

	return game, nil
}

// EndGameManually terminates a session before the threshold is reached.
// The transition is recorded with a manual end reason and the game is never
// fed to the stat reconciler: an abandoned game does not count as played.
// Ending an already-finished game is a no-op.
func (c *Controller) EndGameManually(ctx context.Context, gameID model.GameID) (*model.Game, error) {
	transitioned, err := c.storage.CompleteGame(ctx, gameID, model.EndReasonManual, c.clock.Now())
	if err != nil {
		return nil, err
	}

	if transitioned {
		c.logger.Info("game ended manually", slog.String("game_id", string(gameID)))
	}

	return c.storage.GetGame(ctx, gameID)
}

// ObserveGame subscribes to live updates of a game's state. The current
// value (or its absence, if the record does not exist yet) is delivered
// first, then every change until the subscription is closed.
func (c *Controller) ObserveGame(ctx context.Context, gameID model.GameID) (storage.GameSubscription, error) {
	return c.storage.WatchGame(ctx, gameID)
}

// ListCompletedGames returns the completed-game history, newest first
func (c *Controller) ListCompletedGames(ctx context.Context) ([]*model.Game, error) {
	return c.storage.ListGamesByStatus(ctx, model.GameStatusCompleted)
}

// TotalScores returns the current fold of a game's round log
func (c *Controller) TotalScores(game *model.Game) map[model.PlayerID]int {
	return c.scoring.TotalScores(game)
}

// Winner resolves the winner of a completed game
func (c *Controller) Winner(game *model.Game) (model.PlayerID, bool) {
	if game.Status != model.GameStatusCompleted {
		return "", false
	}
	return c.scoring.Winner(game, c.scoring.TotalScores(game))
}

// Interface for dependency injection
type ControllerInterface interface {
	StartGame(ctx context.Context, playerIDs []model.PlayerID) (*model.Game, error)
	GetGame(ctx context.Context, gameID model.GameID) (*model.Game, error)
	SubmitRound(ctx context.Context, gameID model.GameID, scores map[model.PlayerID]int) (*model.Game, error)
	EvaluateGameEnd(ctx context.Context, gameID model.GameID) (*model.Game, error)
	EndGameManually(ctx context.Context, gameID model.GameID) (*model.Game, error)
	ObserveGame(ctx context.Context, gameID model.GameID) (storage.GameSubscription, error)
	ListCompletedGames(ctx context.Context) ([]*model.Game, error)
	TotalScores(game *model.Game) map[model.PlayerID]int
	Winner(game *model.Game) (model.PlayerID, bool)
}

var _ ControllerInterface = (*Controller)(nil)
