package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/scoring"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// ReconciliationError reports the subset of per-player stat updates that
// failed for a completed game. Updates are independent: successful players
// stay applied, and only the failed subset needs retrying.
type ReconciliationError struct {
	GameID model.GameID
	Failed map[model.PlayerID]error
}

func (e *ReconciliationError) Error() string {
	ids := make([]string, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return fmt.Sprintf("reconciling game %s failed for players: %s", e.GameID, strings.Join(ids, ", "))
}

// Reconciler applies a completed game's outcome to the participants' durable
// stats, exactly once per (game, player) pair.
type Reconciler struct {
	storage storage.Storage
	scoring scoring.ServiceInterface
	logger  *slog.Logger
}

// NewReconciler creates a new stat reconciler
func NewReconciler(storage storage.Storage, scoring scoring.ServiceInterface, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		storage: storage,
		scoring: scoring,
		logger:  logger,
	}
}

// Apply durably updates every participant's stats for one completed game:
// matchesPlayed, totalPoints, a win for the resolved winner, and the
// best-score minimum.
//
// Increments are not naturally idempotent, so each (game, player) update is
// gated on a dedup claim in storage: duplicate completion notifications find
// the claim held and skip. A claim whose stat write fails is released so a
// retry re-applies exactly the failed subset. Apply is therefore safe to call
// any number of times for the same game.
//
// Games ended manually are never reconciled.
func (r *Reconciler) Apply(ctx context.Context, game *model.Game) error {
	if game.Status != model.GameStatusCompleted {
		return model.ErrGameNotCompleted
	}
	if game.EndReason == model.EndReasonManual {
		return nil
	}

	totals := r.scoring.TotalScores(game)
	winner, hasWinner := r.scoring.Winner(game, totals)

	failed := make(map[model.PlayerID]error)
	applied := 0

	for _, playerID := range game.PlayerIDs {
		claimed, err := r.storage.MarkStatsApplied(ctx, game.ID, playerID)
		if err != nil {
			failed[playerID] = err
			continue
		}
		if !claimed {
			// Another reconciliation attempt already handled this player
			continue
		}

		delta := model.StatDelta{
			MatchesPlayed: 1,
			TotalPoints:   totals[playerID],
			GameScore:     totals[playerID],
		}
		if hasWinner && playerID == winner {
			delta.Wins = 1
		}

		if err := r.storage.ApplyStatDelta(ctx, playerID, delta); err != nil {
			// Release the claim so a retry covers this player again
			if clearErr := r.storage.ClearStatsApplied(ctx, game.ID, playerID); clearErr != nil {
				r.logger.Error("failed to release reconciliation claim",
					slog.String("game_id", string(game.ID)),
					slog.String("player_id", string(playerID)),
					slog.String("error", clearErr.Error()),
				)
			}
			failed[playerID] = err
			continue
		}
		applied++
	}

	if len(failed) > 0 {
		r.logger.Error("stat reconciliation partially failed",
			slog.String("game_id", string(game.ID)),
			slog.Int("applied", applied),
			slog.Int("failed", len(failed)),
		)
		return &ReconciliationError{GameID: game.ID, Failed: failed}
	}

	if applied > 0 {
		r.logger.Info("stats reconciled",
			slog.String("game_id", string(game.ID)),
			slog.String("winner", string(winner)),
			slog.Int("players", applied),
		)
	}
	return nil
}

// Interface for dependency injection
type ReconcilerInterface interface {
	Apply(ctx context.Context, game *model.Game) error
}

var _ ReconcilerInterface = (*Reconciler)(nil)
