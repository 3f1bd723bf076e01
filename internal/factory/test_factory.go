package factory

import (
	"context"
	"time"

	"github.com/mcoot/ablakos-go/internal/dependencies/mocks"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/auth"
	"github.com/mcoot/ablakos-go/internal/services/scoring"
	"github.com/mcoot/ablakos-go/internal/storage/memory"
	"github.com/mcoot/ablakos-go/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(
		store,
		mockClock,
		mockRandom,
		auth.DefaultConfig(),
		scoring.DefaultThreshold,
		testutil.NopLogger(),
	)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// SeedPlayer stores a player directly, bypassing registration
func (t *TestApp) SeedPlayer(ctx context.Context, id, name string) (*model.Player, error) {
	player := &model.Player{
		ID:          model.PlayerID(id),
		UID:         "test:" + id,
		DisplayName: name,
		CreatedAt:   t.MockClock.Now(),
	}
	if err := t.Storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}
