package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/ablakos-go/internal/dependencies/mocks"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage/memory"
)

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.service = New(s.storage, s.clock, DefaultConfig())
	s.ctx = context.Background()
}

// Register tests

func (s *ServiceSuite) TestRegisterSucceeds() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	s.NotEmpty(session.Token)
	s.NotEmpty(session.PlayerID)
	s.Equal("Alice", session.Player.DisplayName)
	s.Equal("local:alice", session.Player.UID)
}

func (s *ServiceSuite) TestRegisterPersistsPlayer() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	player, err := s.storage.GetPlayer(s.ctx, session.PlayerID)
	s.Require().NoError(err)
	s.Equal("Alice", player.DisplayName)
	s.Equal(0, player.Stats.MatchesPlayed)
}

func (s *ServiceSuite) TestRegisterDuplicateUsername() {
	_, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, "alice", "other456", "Other Alice")
	s.ErrorIs(err, ErrUsernameExists)
}

func (s *ServiceSuite) TestRegisterDoesNotStorePlaintextPassword() {
	_, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	creds, err := s.storage.GetCredentialsByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotContains(string(creds.PasswordHash), "password123")
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	registered, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	session, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)
	s.Equal(registered.PlayerID, session.PlayerID)
	s.NotEqual(registered.Token, session.Token)
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	_, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	_, err = s.service.Login(s.ctx, "alice", "wrong")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginUnknownUsername() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

// ExternalLogin tests

func (s *ServiceSuite) TestExternalLoginCreatesPlayer() {
	session, err := s.service.ExternalLogin(s.ctx, Identity{
		UID:         "google:abc",
		DisplayName: "Gabor",
		Email:       "gabor@example.com",
	})
	s.Require().NoError(err)

	s.Equal("google:abc", session.Player.UID)
	s.Equal("Gabor", session.Player.DisplayName)

	player, err := s.storage.GetPlayerByUID(s.ctx, "google:abc")
	s.Require().NoError(err)
	s.Equal(session.PlayerID, player.ID)
}

func (s *ServiceSuite) TestExternalLoginIsGetOrCreate() {
	first, err := s.service.ExternalLogin(s.ctx, Identity{UID: "google:abc", DisplayName: "Gabor"})
	s.Require().NoError(err)

	// Same uid resolves to the same player; no duplicate is created
	second, err := s.service.ExternalLogin(s.ctx, Identity{UID: "google:abc"})
	s.Require().NoError(err)
	s.Equal(first.PlayerID, second.PlayerID)

	players, err := s.storage.ListPlayers(s.ctx)
	s.Require().NoError(err)
	s.Len(players, 1)
}

func (s *ServiceSuite) TestExternalLoginEmptyUID() {
	_, err := s.service.ExternalLogin(s.ctx, Identity{})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestExternalLoginDefaultDisplayName() {
	session, err := s.service.ExternalLogin(s.ctx, Identity{UID: "google:anon"})
	s.Require().NoError(err)
	s.Equal("Anonymous Player", session.Player.DisplayName)
}

// Session tests

func (s *ServiceSuite) TestValidateSession() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	validated, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)
	s.Equal(session.PlayerID, validated.PlayerID)
}

func (s *ServiceSuite) TestValidateSessionUnknownToken() {
	_, err := s.service.ValidateSession("sess_bogus")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionExpired() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	s.clock.Advance(25 * time.Hour)

	_, err = s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestInvalidateSession() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	s.service.InvalidateSession(session.Token)

	_, err = s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestGetPlayerReflectsFreshStats() {
	session, err := s.service.Register(s.ctx, "alice", "password123", "Alice")
	s.Require().NoError(err)

	// Stats reconciled after login must be visible on the next read
	err = s.storage.ApplyStatDelta(s.ctx, session.PlayerID, model.StatDelta{
		Wins: 1, MatchesPlayed: 1, TotalPoints: 20, GameScore: 20,
	})
	s.Require().NoError(err)

	player, err := s.service.GetPlayer(s.ctx, session.Token)
	s.Require().NoError(err)
	s.Equal(1, player.Stats.Wins)
	s.Equal(20, player.Stats.TotalPoints)
}
