package model

import "time"

// PlayerID uniquely identifies a player across the system
type PlayerID string

// Player represents a score-tracker profile. One profile exists per external
// identity, created on first login and never duplicated.
type Player struct {
	ID          PlayerID
	UID         string // stable external identity id this profile is keyed on
	DisplayName string
	Email       string
	AvatarURL   string
	CreatedAt   time.Time

	// Stats are owned exclusively by the stat reconciler
	Stats PlayerStats
}

// PlayerStats holds the durable statistics accumulated across completed games
type PlayerStats struct {
	Wins          int
	MatchesPlayed int
	TotalPoints   int

	// BestGameScore is the lowest final score across completed games
	// (lower is better in Ablakos). Nil until the first completed game.
	BestGameScore *int
}

// Credentials holds login data for a locally-registered account
// Stored separately so password hashes never travel with the profile
type Credentials struct {
	PlayerID     PlayerID
	Username     string // login username (immutable)
	PasswordHash string // bcrypt hash
	CreatedAt    time.Time
}

// StatDelta is the per-player outcome of one completed game, applied
// atomically to a player's stats
type StatDelta struct {
	Wins          int
	MatchesPlayed int
	TotalPoints   int

	// GameScore is this game's final score for the player, a candidate for
	// BestGameScore (kept only if lower than the current best)
	GameScore int
}
