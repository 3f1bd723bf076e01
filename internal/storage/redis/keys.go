package redis

import (
	"fmt"

	"github.com/mcoot/ablakos-go/internal/model"
)

// Key prefix for all score-tracker data
const keyPrefix = "ablakos"

// Key generation functions for each entity type

// playerKey returns the Redis key for a Player profile
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// playerStatsKey returns the Redis key for a player's stats hash.
// Stats live in a hash so increments are atomic field operations.
func playerStatsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:stats:%s", keyPrefix, id)
}

// playersIndexKey returns the Redis key for the SET of all player ids
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}

// uidIndexKey returns the Redis key for the uid -> player_id index
func uidIndexKey(uid string) string {
	return fmt.Sprintf("%s:idx:uid:%s", keyPrefix, uid)
}

// credentialsKey returns the Redis key for a player's Credentials
func credentialsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:creds:%s", keyPrefix, id)
}

// usernameIndexKey returns the Redis key for the username -> player_id index
func usernameIndexKey(username string) string {
	return fmt.Sprintf("%s:idx:username:%s", keyPrefix, username)
}

// gameKey returns the Redis key for a Game's metadata (everything but rounds)
func gameKey(id model.GameID) string {
	return fmt.Sprintf("%s:game:%s", keyPrefix, id)
}

// roundsKey returns the Redis key for a Game's append-only round log (LIST)
func roundsKey(id model.GameID) string {
	return fmt.Sprintf("%s:rounds:%s", keyPrefix, id)
}

// gamesByStatusKey returns the Redis key for the ZSET of games in a status,
// scored by start time for newest-first listing
func gamesByStatusKey(status model.GameStatus) string {
	return fmt.Sprintf("%s:idx:games:%s", keyPrefix, status)
}

// reconciledKey returns the Redis key marking that a game's outcome has been
// applied to a player's stats
func reconciledKey(gameID model.GameID, playerID model.PlayerID) string {
	return fmt.Sprintf("%s:reconciled:%s:%s", keyPrefix, gameID, playerID)
}

// gameChangeChannel returns the Pub/Sub channel for a game's change feed
func gameChangeChannel(id model.GameID) string {
	return fmt.Sprintf("%s:changes:game:%s", keyPrefix, id)
}
