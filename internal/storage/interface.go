package storage

import (
	"context"
	"time"

	"github.com/mcoot/ablakos-go/internal/model"
)

// GameUpdate is one delivery on a game subscription. Every change carries the
// full current value; a missing record is signaled as absence, not an error,
// since it can be a legitimate transient state.
type GameUpdate struct {
	Game   *model.Game
	Exists bool
}

// GameSubscription is a cancelable push subscription to a single game.
// Close stops delivery immediately and releases the underlying watch;
// Updates is closed after Close returns.
type GameSubscription interface {
	Updates() <-chan GameUpdate
	Close()
}

// Storage defines the interface for data persistence. Implementations must
// make AppendRound an atomic append, CompleteGame a conditional one-way
// transition, and ApplyStatDelta atomic per player.
type Storage interface {
	// Player operations
	SavePlayer(ctx context.Context, player *model.Player) error
	GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error)
	GetPlayerByUID(ctx context.Context, uid string) (*model.Player, error)
	ListPlayers(ctx context.Context) ([]*model.Player, error)
	DeletePlayer(ctx context.Context, id model.PlayerID) error

	// Credential operations (local accounts)
	SaveCredentials(ctx context.Context, creds *model.Credentials) error
	GetCredentialsByUsername(ctx context.Context, username string) (*model.Credentials, error)

	// Game operations
	SaveGame(ctx context.Context, game *model.Game) error
	GetGame(ctx context.Context, id model.GameID) (*model.Game, error)
	ListGamesByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error)

	// AppendRound atomically appends one round to the game's round log.
	// The status check is part of the same atomic step: appending to a game
	// that is not IN_PROGRESS returns ErrGameNotActive, so a submission
	// racing a completion can never extend a COMPLETED game's log.
	// Rounds are immutable once appended.
	AppendRound(ctx context.Context, id model.GameID, round model.Round) error

	// CompleteGame performs the one-way IN_PROGRESS -> COMPLETED transition.
	// It returns true iff this call performed the transition; a game that is
	// already completed returns false with no error, which is the
	// exactly-once completion edge callers gate downstream effects on.
	CompleteGame(ctx context.Context, id model.GameID, reason model.EndReason, endedAt time.Time) (bool, error)

	// Stat operations

	// ApplyStatDelta applies one game's outcome to a player's stats as a
	// single atomic step (increments plus conditional best-score min).
	ApplyStatDelta(ctx context.Context, id model.PlayerID, delta model.StatDelta) error

	// MarkStatsApplied claims the (game, player) reconciliation slot.
	// It returns true iff this call made the claim; false means another
	// reconciliation attempt already holds it.
	MarkStatsApplied(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (bool, error)

	// ClearStatsApplied releases a claim after a failed stat write so the
	// failed subset can be retried.
	ClearStatsApplied(ctx context.Context, gameID model.GameID, playerID model.PlayerID) error

	// Subscriptions

	// WatchGame subscribes to a game record. The current value (or absence)
	// is delivered first, then the full value on every subsequent change.
	WatchGame(ctx context.Context, id model.GameID) (GameSubscription, error)
}
