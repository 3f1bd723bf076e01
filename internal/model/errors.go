package model

import "errors"

// Common errors used across the application
var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")

	// Game errors
	ErrGameNotFound        = errors.New("game not found")
	ErrGameNotActive       = errors.New("game is not in progress")
	ErrGameNotCompleted    = errors.New("game is not completed")
	ErrInsufficientPlayers = errors.New("a game needs at least 3 players")
	ErrDuplicatePlayers    = errors.New("duplicate player in participant list")

	// Round errors
	ErrIncompleteRound    = errors.New("round is missing scores for some participants")
	ErrUnknownRoundPlayer = errors.New("round contains a score for a non-participant")
)
