package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// CompletedGameTTL expires completed games and their round logs.
	// Zero keeps them forever.
	CompletedGameTTL time.Duration

	// TxRetries bounds optimistic-transaction retries on write conflicts
	TxRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:              "redis://localhost:6379",
		PoolSize:         10,
		MinIdleConns:     2,
		CompletedGameTTL: 0,
		TxRetries:        5,
	}
}
