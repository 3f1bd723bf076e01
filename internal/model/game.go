package model

import "time"

// GameID uniquely identifies a game
type GameID string

// GameStatus represents the lifecycle phase of a game
type GameStatus string

const (
	GameStatusInProgress GameStatus = "IN_PROGRESS"
	GameStatusCompleted  GameStatus = "COMPLETED"
)

// EndReason records which path completed a game
type EndReason string

const (
	// EndReasonThreshold means a player's total crossed the scoring threshold
	EndReasonThreshold EndReason = "threshold"
	// EndReasonManual means a user terminated the session before the
	// threshold was reached; such games are never reconciled into stats
	EndReasonManual EndReason = "manual"
)

// MinPlayers is the minimum number of unique participants per game
const MinPlayers = 3

// Round is one atomic, immutable batch of per-player score deltas.
// Every participant has an entry; rounds are only ever appended.
type Round struct {
	Scores   map[PlayerID]int
	PlayedAt time.Time
}

// Game is a single scoring session. The round log is the canonical source of
// truth: totals are always a fold over Rounds, never stored.
type Game struct {
	ID GameID

	// Participants, fixed at creation, in stored order (tie-break order)
	PlayerIDs []PlayerID

	Status    GameStatus
	EndReason EndReason // set on completion only
	Rounds    []Round

	StartedAt time.Time
	EndedAt   *time.Time // set on completion only
}

// IsActive reports whether the game still accepts rounds
func (g *Game) IsActive() bool {
	return g.Status == GameStatusInProgress
}

// HasPlayer reports whether id is a participant of this game
func (g *Game) HasPlayer(id PlayerID) bool {
	for _, p := range g.PlayerIDs {
		if p == id {
			return true
		}
	}
	return false
}
