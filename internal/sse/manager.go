package sse

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// GameObserver is the slice of the session controller the SSE layer needs
type GameObserver interface {
	ObserveGame(ctx context.Context, gameID model.GameID) (storage.GameSubscription, error)
	TotalScores(game *model.Game) map[model.PlayerID]int
	Winner(game *model.Game) (model.PlayerID, bool)
}

// gameEvent is the wire payload broadcast on every game change
type gameEvent struct {
	ID        model.GameID           `json:"id"`
	Status    model.GameStatus       `json:"status"`
	PlayerIDs []model.PlayerID       `json:"player_ids"`
	Rounds    int                    `json:"rounds"`
	Totals    map[model.PlayerID]int `json:"totals"`
	Winner    model.PlayerID         `json:"winner,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
}

// HubManager manages one hub per observed game. Creating a hub also starts a
// pump goroutine holding the storage subscription; removing the hub closes
// both, releasing the underlying watch.
type HubManager struct {
	observer GameObserver
	hubs     map[model.GameID]*hubEntry
	mu       sync.RWMutex
	logger   *slog.Logger
}

type hubEntry struct {
	hub *Hub
	sub storage.GameSubscription
}

// NewHubManager creates a new HubManager
func NewHubManager(observer GameObserver, logger *slog.Logger) *HubManager {
	return &HubManager{
		observer: observer,
		hubs:     make(map[model.GameID]*hubEntry),
		logger:   logger.With(slog.String("component", "sse")),
	}
}

// GetOrCreateHub returns the hub for a game, creating (and starting) one
// along with its change-feed pump if it doesn't exist
func (m *HubManager) GetOrCreateHub(ctx context.Context, gameID model.GameID) (*Hub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.hubs[gameID]; ok {
		return entry.hub, nil
	}

	sub, err := m.observer.ObserveGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	hub := NewHub(gameID, m.logger)
	m.hubs[gameID] = &hubEntry{hub: hub, sub: sub}
	go hub.Run()
	go m.pump(gameID, hub, sub)
	return hub, nil
}

// pump forwards every subscription delivery to the hub as an SSE event
func (m *HubManager) pump(gameID model.GameID, hub *Hub, sub storage.GameSubscription) {
	for update := range sub.Updates() {
		if !update.Exists {
			hub.BroadcastEvent("absent", `{"exists":false}`)
			continue
		}

		game := update.Game
		event := gameEvent{
			ID:        game.ID,
			Status:    game.Status,
			PlayerIDs: game.PlayerIDs,
			Rounds:    len(game.Rounds),
			Totals:    m.observer.TotalScores(game),
			StartedAt: game.StartedAt,
			EndedAt:   game.EndedAt,
		}
		if winner, ok := m.observer.Winner(game); ok {
			event.Winner = winner
		}

		data, err := json.Marshal(event)
		if err != nil {
			m.logger.Error("failed to marshal game event",
				slog.String("game_id", string(gameID)),
				slog.String("error", err.Error()))
			continue
		}
		hub.BroadcastEvent("game", string(data))
	}
}

// GetHub returns the hub for a game, or nil if it doesn't exist
func (m *HubManager) GetHub(gameID model.GameID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if entry, ok := m.hubs[gameID]; ok {
		return entry.hub
	}
	return nil
}

// RemoveHub removes a hub, closing its clients and its storage watch
func (m *HubManager) RemoveHub(gameID model.GameID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.hubs[gameID]; ok {
		entry.sub.Close()
		entry.hub.Close()
		delete(m.hubs, gameID)
		m.logger.Info("sse hub removed", slog.String("game_id", string(gameID)))
	}
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for gameID, entry := range m.hubs {
		if entry.hub.ClientCount() == 0 {
			entry.sub.Close()
			entry.hub.Close()
			delete(m.hubs, gameID)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("sse empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}
