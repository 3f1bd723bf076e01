package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/ablakos-go/internal/dependencies/clock"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrUsernameExists     = errors.New("username already exists")
)

// Identity is what an identity provider asserts about a signed-in user:
// a stable opaque identifier plus profile fields. The profile keyed on UID
// is created on first login and reused ever after.
type Identity struct {
	UID         string
	DisplayName string
	Email       string
	AvatarURL   string
}

// Session represents an authenticated session
type Session struct {
	Token     string
	PlayerID  model.PlayerID
	Player    model.Player
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service handles sign-in and session management. Two providers are
// supported: local username/password accounts, and pre-verified external
// identities exchanged by a trusted caller. Both resolve to a player profile
// with get-or-create semantics keyed on the identity's UID.
type Service struct {
	storage storage.Storage
	clock   clock.Clock

	mu       sync.RWMutex
	sessions map[string]*Session

	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new AuthService
func New(storage storage.Storage, clock clock.Clock, cfg Config) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	return &Service{
		storage:         storage,
		clock:           clock,
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
	}
}

// Register creates a local account and signs it in
func (s *Service) Register(ctx context.Context, username, password, displayName string) (*Session, error) {
	// Check if username exists
	_, err := s.storage.GetCredentialsByUsername(ctx, username)
	if err == nil {
		return nil, ErrUsernameExists
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// Local accounts get a synthetic identity uid so get-or-create works the
	// same way for every provider
	player, err := s.getOrCreatePlayer(ctx, Identity{
		UID:         "local:" + username,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}

	creds := &model.Credentials{
		PlayerID:     player.ID,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.storage.SaveCredentials(ctx, creds); err != nil {
		return nil, err
	}

	return s.createSession(player), nil
}

// Login authenticates a local account and creates a session
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	creds, err := s.storage.GetCredentialsByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, model.ErrPlayerNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	player, err := s.storage.GetPlayer(ctx, creds.PlayerID)
	if err != nil {
		return nil, err
	}

	return s.createSession(player), nil
}

// ExternalLogin exchanges a pre-verified external identity for a session.
// The caller is responsible for having verified the identity; this is the
// trust boundary with the identity provider.
func (s *Service) ExternalLogin(ctx context.Context, identity Identity) (*Session, error) {
	if identity.UID == "" {
		return nil, ErrInvalidCredentials
	}

	player, err := s.getOrCreatePlayer(ctx, identity)
	if err != nil {
		return nil, err
	}

	return s.createSession(player), nil
}

// getOrCreatePlayer resolves an identity to its player profile, creating the
// profile on first login. Profiles are keyed on the identity UID and never
// duplicated.
func (s *Service) getOrCreatePlayer(ctx context.Context, identity Identity) (*model.Player, error) {
	player, err := s.storage.GetPlayerByUID(ctx, identity.UID)
	if err == nil {
		return player, nil
	}
	if !errors.Is(err, model.ErrPlayerNotFound) {
		return nil, err
	}

	displayName := identity.DisplayName
	if displayName == "" {
		displayName = "Anonymous Player"
	}

	player = &model.Player{
		ID:          model.PlayerID("p_" + uuid.NewString()),
		UID:         identity.UID,
		DisplayName: displayName,
		Email:       identity.Email,
		AvatarURL:   identity.AvatarURL,
		CreatedAt:   s.clock.Now(),
	}

	if err := s.storage.SavePlayer(ctx, player); err != nil {
		return nil, err
	}
	return player, nil
}

// ValidateSession checks if a session token is valid and returns the session
func (s *Service) ValidateSession(token string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// GetPlayer returns the current profile for a session token
func (s *Service) GetPlayer(ctx context.Context, token string) (*model.Player, error) {
	session, err := s.ValidateSession(token)
	if err != nil {
		return nil, err
	}
	// Re-read so stats reflect games completed since sign-in
	return s.storage.GetPlayer(ctx, session.PlayerID)
}

// createSession creates a new session for a player
func (s *Service) createSession(player *model.Player) *Session {
	token := "sess_" + uuid.NewString()
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		PlayerID:  player.ID,
		Player:    *player,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session
}
