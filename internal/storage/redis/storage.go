package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface.
//
// Layout: player profiles and game metadata are JSON values, the round log is
// a Redis LIST (RPUSH is the atomic append), stats live in a per-player hash
// so increments are atomic, and change notifications ride Pub/Sub channels.
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Stats hash fields
const (
	statsFieldWins    = "wins"
	statsFieldMatches = "matches_played"
	statsFieldPoints  = "total_points"
	statsFieldBest    = "best_game_score"
)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	// The profile JSON never carries stats; those live in the stats hash so
	// they can only change through ApplyStatDelta
	profile := *player
	profile.Stats = model.PlayerStats{}

	data, err := json.Marshal(&profile)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, playerKey(player.ID), data, 0)
	pipe.SAdd(ctx, playersIndexKey(), string(player.ID))
	if player.UID != "" {
		pipe.Set(ctx, uidIndexKey(player.UID), string(player.ID), 0)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	data, err := s.client.Get(ctx, playerKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var player model.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, err
	}

	stats, err := s.readStats(ctx, id)
	if err != nil {
		return nil, err
	}
	player.Stats = stats
	return &player, nil
}

func (s *Storage) GetPlayerByUID(ctx context.Context, uid string) (*model.Player, error) {
	idStr, err := s.client.Get(ctx, uidIndexKey(uid)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}
	return s.GetPlayer(ctx, model.PlayerID(idStr))
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	ids, err := s.client.SMembers(ctx, playersIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	players := make([]*model.Player, 0, len(ids))
	for _, id := range ids {
		player, err := s.GetPlayer(ctx, model.PlayerID(id))
		if errors.Is(err, model.ErrPlayerNotFound) {
			// Index can lag a deletion
			continue
		}
		if err != nil {
			return nil, err
		}
		players = append(players, player)
	}

	sortPlayersByCreation(players)
	return players, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	player, err := s.GetPlayer(ctx, id)
	if errors.Is(err, model.ErrPlayerNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, playerKey(id))
	pipe.Del(ctx, playerStatsKey(id))
	pipe.Del(ctx, credentialsKey(id))
	pipe.SRem(ctx, playersIndexKey(), string(id))
	if player.UID != "" {
		pipe.Del(ctx, uidIndexKey(player.UID))
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Credential operations

func (s *Storage) SaveCredentials(ctx context.Context, creds *model.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return err
	}

	// Pipeline for atomic save + index update
	pipe := s.client.Pipeline()
	pipe.Set(ctx, credentialsKey(creds.PlayerID), data, 0)
	pipe.Set(ctx, usernameIndexKey(creds.Username), string(creds.PlayerID), 0)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetCredentialsByUsername(ctx context.Context, username string) (*model.Credentials, error) {
	idStr, err := s.client.Get(ctx, usernameIndexKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	data, err := s.client.Get(ctx, credentialsKey(model.PlayerID(idStr))).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrPlayerNotFound
		}
		return nil, err
	}

	var creds model.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	meta := *game
	meta.Rounds = nil

	data, err := json.Marshal(&meta)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, gameKey(game.ID), data, 0)
	pipe.ZAdd(ctx, gamesByStatusKey(game.Status), redis.Z{
		Score:  float64(game.StartedAt.UnixMilli()),
		Member: string(game.ID),
	})
	for _, round := range game.Rounds {
		roundData, err := json.Marshal(round)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, roundsKey(game.ID), roundData)
	}
	pipe.Publish(ctx, gameChangeChannel(game.ID), "change")
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	data, err := s.client.Get(ctx, gameKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrGameNotFound
		}
		return nil, err
	}

	var game model.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, err
	}

	rounds, err := s.client.LRange(ctx, roundsKey(id), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	game.Rounds = make([]model.Round, 0, len(rounds))
	for _, r := range rounds {
		var round model.Round
		if err := json.Unmarshal([]byte(r), &round); err != nil {
			return nil, err
		}
		game.Rounds = append(game.Rounds, round)
	}

	return &game, nil
}

func (s *Storage) ListGamesByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error) {
	// ZSET is scored by start time; reverse range gives newest first
	ids, err := s.client.ZRevRange(ctx, gamesByStatusKey(status), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	games := make([]*model.Game, 0, len(ids))
	for _, id := range ids {
		game, err := s.GetGame(ctx, model.GameID(id))
		if errors.Is(err, model.ErrGameNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if game.Status != status {
			// Index entry from before a status transition
			continue
		}
		games = append(games, game)
	}
	return games, nil
}

func (s *Storage) AppendRound(ctx context.Context, id model.GameID, round model.Round) error {
	data, err := json.Marshal(round)
	if err != nil {
		return err
	}

	txn := func(tx *redis.Tx) error {
		gameData, err := tx.Get(ctx, gameKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrGameNotFound
			}
			return err
		}

		var game model.Game
		if err := json.Unmarshal(gameData, &game); err != nil {
			return err
		}

		if game.Status != model.GameStatusInProgress {
			return model.ErrGameNotActive
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.RPush(ctx, roundsKey(id), data)
			pipe.Publish(ctx, gameChangeChannel(id), "change")
			return nil
		})
		return err
	}

	// WATCH the game key so an append racing a completion aborts and
	// re-checks the status instead of writing into a COMPLETED game
	for attempt := 0; attempt <= s.cfg.TxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, gameKey(id))
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("append round to game %s: transaction retries exhausted", id)
}

func (s *Storage) CompleteGame(ctx context.Context, id model.GameID, reason model.EndReason, endedAt time.Time) (bool, error) {
	var transitioned bool

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, gameKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return model.ErrGameNotFound
			}
			return err
		}

		var game model.Game
		if err := json.Unmarshal(data, &game); err != nil {
			return err
		}

		if game.Status != model.GameStatusInProgress {
			transitioned = false
			return nil
		}

		game.Status = model.GameStatusCompleted
		game.EndReason = reason
		t := endedAt
		game.EndedAt = &t

		updated, err := json.Marshal(&game)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, gameKey(id), updated, 0)
			pipe.ZRem(ctx, gamesByStatusKey(model.GameStatusInProgress), string(id))
			pipe.ZAdd(ctx, gamesByStatusKey(model.GameStatusCompleted), redis.Z{
				Score:  float64(game.StartedAt.UnixMilli()),
				Member: string(id),
			})
			if s.cfg.CompletedGameTTL > 0 {
				pipe.Expire(ctx, gameKey(id), s.cfg.CompletedGameTTL)
				pipe.Expire(ctx, roundsKey(id), s.cfg.CompletedGameTTL)
			}
			pipe.Publish(ctx, gameChangeChannel(id), "change")
			return nil
		})
		if err == nil {
			transitioned = true
		}
		return err
	}

	// Optimistic transaction: WATCH the game key so a concurrent completion
	// on another client aborts this one, which then observes COMPLETED
	for attempt := 0; attempt <= s.cfg.TxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, gameKey(id))
		if err == nil {
			return transitioned, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return false, err
	}
	return false, fmt.Errorf("complete game %s: transaction retries exhausted", id)
}

// Stat operations

func (s *Storage) ApplyStatDelta(ctx context.Context, id model.PlayerID, delta model.StatDelta) error {
	exists, err := s.client.Exists(ctx, playerKey(id)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrPlayerNotFound
	}

	statsKey := playerStatsKey(id)

	txn := func(tx *redis.Tx) error {
		best, err := tx.HGet(ctx, statsKey, statsFieldBest).Result()
		hasBest := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			hasBest = false
		}

		newBest := delta.GameScore
		if hasBest {
			current, err := strconv.Atoi(best)
			if err != nil {
				return err
			}
			if current < newBest {
				newBest = current
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HIncrBy(ctx, statsKey, statsFieldWins, int64(delta.Wins))
			pipe.HIncrBy(ctx, statsKey, statsFieldMatches, int64(delta.MatchesPlayed))
			pipe.HIncrBy(ctx, statsKey, statsFieldPoints, int64(delta.TotalPoints))
			pipe.HSet(ctx, statsKey, statsFieldBest, strconv.Itoa(newBest))
			return nil
		})
		return err
	}

	for attempt := 0; attempt <= s.cfg.TxRetries; attempt++ {
		err := s.client.Watch(ctx, txn, statsKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("apply stat delta for %s: transaction retries exhausted", id)
}

func (s *Storage) MarkStatsApplied(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (bool, error) {
	// First writer wins: SETNX is the dedup guard
	return s.client.SetNX(ctx, reconciledKey(gameID, playerID), "1", 0).Result()
}

func (s *Storage) ClearStatsApplied(ctx context.Context, gameID model.GameID, playerID model.PlayerID) error {
	return s.client.Del(ctx, reconciledKey(gameID, playerID)).Err()
}

// readStats loads a player's stats hash
func (s *Storage) readStats(ctx context.Context, id model.PlayerID) (model.PlayerStats, error) {
	fields, err := s.client.HGetAll(ctx, playerStatsKey(id)).Result()
	if err != nil {
		return model.PlayerStats{}, err
	}

	var stats model.PlayerStats
	if v, ok := fields[statsFieldWins]; ok {
		if stats.Wins, err = strconv.Atoi(v); err != nil {
			return model.PlayerStats{}, err
		}
	}
	if v, ok := fields[statsFieldMatches]; ok {
		if stats.MatchesPlayed, err = strconv.Atoi(v); err != nil {
			return model.PlayerStats{}, err
		}
	}
	if v, ok := fields[statsFieldPoints]; ok {
		if stats.TotalPoints, err = strconv.Atoi(v); err != nil {
			return model.PlayerStats{}, err
		}
	}
	if v, ok := fields[statsFieldBest]; ok {
		best, err := strconv.Atoi(v)
		if err != nil {
			return model.PlayerStats{}, err
		}
		stats.BestGameScore = &best
	}
	return stats, nil
}

// Subscriptions

// gameSubscription bridges a Pub/Sub change feed to a GameSubscription.
// Each notification triggers a fresh read of the full record.
type gameSubscription struct {
	store  *Storage
	gameID model.GameID
	pubsub *redis.PubSub
	ch     chan storage.GameUpdate
	done   chan struct{}

	closeOnce sync.Once
}

func (s *Storage) WatchGame(ctx context.Context, id model.GameID) (storage.GameSubscription, error) {
	pubsub := s.client.Subscribe(ctx, gameChangeChannel(id))

	// Confirm the subscription before the initial read so no change between
	// the read and the subscribe is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &gameSubscription{
		store:  s,
		gameID: id,
		pubsub: pubsub,
		ch:     make(chan storage.GameUpdate, 16),
		done:   make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

func (sub *gameSubscription) Updates() <-chan storage.GameUpdate {
	return sub.ch
}

func (sub *gameSubscription) Close() {
	sub.closeOnce.Do(func() {
		close(sub.done)
		_ = sub.pubsub.Close()
	})
}

func (sub *gameSubscription) run() {
	defer close(sub.ch)

	// Initial delivery: current value, or absence if not (yet) created
	sub.deliver()

	msgs := sub.pubsub.Channel()
	for {
		select {
		case <-sub.done:
			return
		case _, ok := <-msgs:
			if !ok {
				return
			}
			sub.deliver()
		}
	}
}

// deliver reads the current record and pushes a snapshot, coalescing when the
// subscriber is behind so the latest value always lands
func (sub *gameSubscription) deliver() {
	update := storage.GameUpdate{}
	game, err := sub.store.GetGame(context.Background(), sub.gameID)
	if err == nil {
		update.Game = game
		update.Exists = true
	} else if !errors.Is(err, model.ErrGameNotFound) {
		// Transient read failure; the next notification retries
		return
	}

	select {
	case <-sub.done:
		return
	case sub.ch <- update:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- update:
		default:
		}
	}
}

// sortPlayersByCreation orders players oldest first
func sortPlayersByCreation(players []*model.Player) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].CreatedAt.Before(players[j].CreatedAt)
	})
}
