package sse

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage"
	"github.com/mcoot/ablakos-go/internal/storage/memory"
	"github.com/mcoot/ablakos-go/internal/testutil"
)

// stubObserver adapts a storage directly so manager tests don't need the
// full session controller
type stubObserver struct {
	store storage.Storage
}

func (o *stubObserver) ObserveGame(ctx context.Context, gameID model.GameID) (storage.GameSubscription, error) {
	return o.store.WatchGame(ctx, gameID)
}

func (o *stubObserver) TotalScores(game *model.Game) map[model.PlayerID]int {
	totals := make(map[model.PlayerID]int)
	for _, playerID := range game.PlayerIDs {
		totals[playerID] = 0
	}
	for _, round := range game.Rounds {
		for playerID, score := range round.Scores {
			totals[playerID] += score
		}
	}
	return totals
}

func (o *stubObserver) Winner(game *model.Game) (model.PlayerID, bool) {
	return "", false
}

func newTestManager(t *testing.T) (*HubManager, *memory.Storage) {
	t.Helper()
	store := memory.New()
	manager := NewHubManager(&stubObserver{store: store}, testutil.NopLogger())
	return manager, store
}

func saveGame(t *testing.T, store *memory.Storage, gameID model.GameID) {
	t.Helper()
	err := store.SaveGame(context.Background(), &model.Game{
		ID:        gameID,
		Status:    model.GameStatusInProgress,
		PlayerIDs: []model.PlayerID{"a", "b", "c"},
		StartedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
}

func TestHubManager_GetOrCreateHub(t *testing.T) {
	manager, store := newTestManager(t)
	saveGame(t, store, "GAME1")

	ctx := context.Background()
	hub1, err := manager.GetOrCreateHub(ctx, "GAME1")
	require.NoError(t, err)
	require.NotNil(t, hub1)

	// Same game returns the same hub
	hub2, err := manager.GetOrCreateHub(ctx, "GAME1")
	require.NoError(t, err)
	assert.Same(t, hub1, hub2)

	// A different game gets its own hub
	saveGame(t, store, "GAME2")
	hub3, err := manager.GetOrCreateHub(ctx, "GAME2")
	require.NoError(t, err)
	assert.NotSame(t, hub1, hub3)

	assert.Same(t, hub1, manager.GetHub("GAME1"))
	assert.Nil(t, manager.GetHub("MISSING"))

	manager.RemoveHub("GAME1")
	manager.RemoveHub("GAME2")
}

func TestHubManager_PumpsGameUpdates(t *testing.T) {
	manager, store := newTestManager(t)
	saveGame(t, store, "GAME1")

	ctx := context.Background()
	hub, err := manager.GetOrCreateHub(ctx, "GAME1")
	require.NoError(t, err)
	defer manager.RemoveHub("GAME1")

	client := NewClient(hub, "player1")
	hub.Register(client)

	// Let the hub process registration and the pump drain the initial
	// snapshot delivered by the watch
	time.Sleep(20 * time.Millisecond)

	err = store.AppendRound(ctx, "GAME1", model.Round{
		Scores: map[model.PlayerID]int{"a": 10, "b": 20, "c": 30},
	})
	require.NoError(t, err)

	select {
	case msg := <-client.send:
		text := string(msg)
		require.True(t, strings.HasPrefix(text, "event: game\n"), "unexpected message: %q", text)

		payload := strings.TrimPrefix(text, "event: game\n")
		payload = strings.TrimPrefix(payload, "data: ")
		payload = strings.TrimSuffix(payload, "\n\n")

		var event gameEvent
		require.NoError(t, json.Unmarshal([]byte(payload), &event))
		assert.Equal(t, model.GameID("GAME1"), event.ID)
		assert.Equal(t, model.GameStatusInProgress, event.Status)
		assert.Equal(t, 1, event.Rounds)
		assert.Equal(t, 10, event.Totals["a"])
		assert.Equal(t, 30, event.Totals["c"])
	case <-time.After(time.Second):
		t.Fatal("client did not receive game update")
	}
}

func TestHubManager_AbsentGame(t *testing.T) {
	manager, _ := newTestManager(t)

	ctx := context.Background()
	hub, err := manager.GetOrCreateHub(ctx, "MISSING")
	require.NoError(t, err)
	defer manager.RemoveHub("MISSING")

	client := NewClient(hub, "player1")
	hub.Register(client)
	time.Sleep(20 * time.Millisecond)

	// Once the game appears, observers are told
	store := manager.observer.(*stubObserver).store
	err = store.SaveGame(ctx, &model.Game{
		ID:        "MISSING",
		Status:    model.GameStatusInProgress,
		PlayerIDs: []model.PlayerID{"a", "b", "c"},
		StartedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	select {
	case msg := <-client.send:
		assert.True(t, strings.HasPrefix(string(msg), "event: game\n"))
	case <-time.After(time.Second):
		t.Fatal("client did not receive update after game appeared")
	}
}

func TestHubManager_CleanupEmptyHubs(t *testing.T) {
	manager, store := newTestManager(t)
	saveGame(t, store, "GAME1")
	saveGame(t, store, "GAME2")

	ctx := context.Background()
	hub1, err := manager.GetOrCreateHub(ctx, "GAME1")
	require.NoError(t, err)
	_, err = manager.GetOrCreateHub(ctx, "GAME2")
	require.NoError(t, err)

	// GAME1 keeps a client, GAME2 is empty
	client := NewClient(hub1, "player1")
	hub1.Register(client)
	time.Sleep(10 * time.Millisecond)

	manager.CleanupEmptyHubs()

	assert.NotNil(t, manager.GetHub("GAME1"))
	assert.Nil(t, manager.GetHub("GAME2"))

	manager.RemoveHub("GAME1")
}
