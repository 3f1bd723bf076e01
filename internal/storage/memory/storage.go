package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	players       map[model.PlayerID]*model.Player
	uidIndex      map[string]model.PlayerID
	credentials   map[model.PlayerID]*model.Credentials
	usernameIndex map[string]model.PlayerID
	games         map[model.GameID]*model.Game
	reconciled    map[reconcileKey]bool
	watchers      map[model.GameID]map[*gameSubscription]bool
}

type reconcileKey struct {
	gameID   model.GameID
	playerID model.PlayerID
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		players:       make(map[model.PlayerID]*model.Player),
		uidIndex:      make(map[string]model.PlayerID),
		credentials:   make(map[model.PlayerID]*model.Credentials),
		usernameIndex: make(map[string]model.PlayerID),
		games:         make(map[model.GameID]*model.Game),
		reconciled:    make(map[reconcileKey]bool),
		watchers:      make(map[model.GameID]map[*gameSubscription]bool),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := clonePlayer(player)
	s.players[p.ID] = p
	if p.UID != "" {
		s.uidIndex[p.UID] = p.ID
	}
	return nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return clonePlayer(player), nil
}

func (s *Storage) GetPlayerByUID(ctx context.Context, uid string) (*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.uidIndex[uid]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	player, ok := s.players[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	return clonePlayer(player), nil
}

func (s *Storage) ListPlayers(ctx context.Context) ([]*model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]*model.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, clonePlayer(p))
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].CreatedAt.Before(players[j].CreatedAt)
	})
	return players, nil
}

func (s *Storage) DeletePlayer(ctx context.Context, id model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[id]; ok {
		delete(s.uidIndex, p.UID)
	}
	delete(s.players, id)
	if c, ok := s.credentials[id]; ok {
		delete(s.usernameIndex, c.Username)
	}
	delete(s.credentials, id)
	return nil
}

// Credential operations

func (s *Storage) SaveCredentials(ctx context.Context, creds *model.Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *creds
	s.credentials[c.PlayerID] = &c
	s.usernameIndex[c.Username] = c.PlayerID
	return nil
}

func (s *Storage) GetCredentialsByUsername(ctx context.Context, username string) (*model.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIndex[username]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	creds, ok := s.credentials[id]
	if !ok {
		return nil, model.ErrPlayerNotFound
	}
	c := *creds
	return &c, nil
}

// Game operations

func (s *Storage) SaveGame(ctx context.Context, game *model.Game) error {
	s.mu.Lock()
	g := cloneGame(game)
	s.games[g.ID] = g
	s.notifyLocked(g.ID)
	s.mu.Unlock()
	return nil
}

func (s *Storage) GetGame(ctx context.Context, id model.GameID) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	return cloneGame(game), nil
}

func (s *Storage) ListGamesByStatus(ctx context.Context, status model.GameStatus) ([]*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var games []*model.Game
	for _, g := range s.games {
		if g.Status == status {
			games = append(games, cloneGame(g))
		}
	}
	// Newest first
	sort.Slice(games, func(i, j int) bool {
		return games[i].StartedAt.After(games[j].StartedAt)
	})
	return games, nil
}

func (s *Storage) AppendRound(ctx context.Context, id model.GameID, round model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return model.ErrGameNotFound
	}
	if game.Status != model.GameStatusInProgress {
		return model.ErrGameNotActive
	}
	game.Rounds = append(game.Rounds, cloneRound(round))
	s.notifyLocked(id)
	return nil
}

func (s *Storage) CompleteGame(ctx context.Context, id model.GameID, reason model.EndReason, endedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[id]
	if !ok {
		return false, model.ErrGameNotFound
	}
	if game.Status != model.GameStatusInProgress {
		return false, nil
	}
	game.Status = model.GameStatusCompleted
	game.EndReason = reason
	t := endedAt
	game.EndedAt = &t
	s.notifyLocked(id)
	return true, nil
}

// Stat operations

func (s *Storage) ApplyStatDelta(ctx context.Context, id model.PlayerID, delta model.StatDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[id]
	if !ok {
		return model.ErrPlayerNotFound
	}
	player.Stats.Wins += delta.Wins
	player.Stats.MatchesPlayed += delta.MatchesPlayed
	player.Stats.TotalPoints += delta.TotalPoints
	if player.Stats.BestGameScore == nil || delta.GameScore < *player.Stats.BestGameScore {
		score := delta.GameScore
		player.Stats.BestGameScore = &score
	}
	return nil
}

func (s *Storage) MarkStatsApplied(ctx context.Context, gameID model.GameID, playerID model.PlayerID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reconcileKey{gameID: gameID, playerID: playerID}
	if s.reconciled[key] {
		return false, nil
	}
	s.reconciled[key] = true
	return true, nil
}

func (s *Storage) ClearStatsApplied(ctx context.Context, gameID model.GameID, playerID model.PlayerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reconciled, reconcileKey{gameID: gameID, playerID: playerID})
	return nil
}

// Subscriptions

// gameSubscription fans a game's changes out to one subscriber. Delivery is
// buffered; if the subscriber falls behind, intermediate snapshots are
// coalesced into the latest value.
type gameSubscription struct {
	store  *Storage
	gameID model.GameID
	ch     chan storage.GameUpdate

	closeOnce sync.Once
}

func (sub *gameSubscription) Updates() <-chan storage.GameUpdate {
	return sub.ch
}

func (sub *gameSubscription) Close() {
	sub.closeOnce.Do(func() {
		sub.store.mu.Lock()
		if subs, ok := sub.store.watchers[sub.gameID]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(sub.store.watchers, sub.gameID)
			}
		}
		sub.store.mu.Unlock()
		close(sub.ch)
	})
}

func (s *Storage) WatchGame(ctx context.Context, id model.GameID) (storage.GameSubscription, error) {
	sub := &gameSubscription{
		store:  s,
		gameID: id,
		ch:     make(chan storage.GameUpdate, 16),
	}

	s.mu.Lock()
	if s.watchers[id] == nil {
		s.watchers[id] = make(map[*gameSubscription]bool)
	}
	s.watchers[id][sub] = true
	// Initial delivery: current value, or absence if not (yet) created
	sub.deliverLocked(s.games[id])
	s.mu.Unlock()

	return sub, nil
}

// deliverLocked sends a snapshot without blocking; callers hold s.mu
func (sub *gameSubscription) deliverLocked(game *model.Game) {
	update := storage.GameUpdate{}
	if game != nil {
		update.Game = cloneGame(game)
		update.Exists = true
	}
	select {
	case sub.ch <- update:
	default:
		// Subscriber is not draining; drop the oldest and retry so the
		// latest snapshot always lands
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

// notifyLocked pushes the current value of a game to all watchers; callers
// hold s.mu
func (s *Storage) notifyLocked(id model.GameID) {
	subs := s.watchers[id]
	if len(subs) == 0 {
		return
	}
	game := s.games[id]
	for sub := range subs {
		sub.deliverLocked(game)
	}
}

// Cloning guards the append-only invariants: stored records are never
// aliased by callers.

func clonePlayer(p *model.Player) *model.Player {
	cp := *p
	if p.Stats.BestGameScore != nil {
		best := *p.Stats.BestGameScore
		cp.Stats.BestGameScore = &best
	}
	return &cp
}

func cloneGame(g *model.Game) *model.Game {
	cg := *g
	cg.PlayerIDs = append([]model.PlayerID(nil), g.PlayerIDs...)
	cg.Rounds = make([]model.Round, len(g.Rounds))
	for i, r := range g.Rounds {
		cg.Rounds[i] = cloneRound(r)
	}
	if g.EndedAt != nil {
		t := *g.EndedAt
		cg.EndedAt = &t
	}
	return &cg
}

func cloneRound(r model.Round) model.Round {
	cr := r
	cr.Scores = make(map[model.PlayerID]int, len(r.Scores))
	for id, score := range r.Scores {
		cr.Scores[id] = score
	}
	return cr
}
