package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ablakos-go/internal/api/middleware"
	"github.com/mcoot/ablakos-go/internal/api/request"
	"github.com/mcoot/ablakos-go/internal/api/response"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/auth"
	"github.com/mcoot/ablakos-go/internal/storage"
)

// PlayerHandler handles player-related endpoints
type PlayerHandler struct {
	authService *auth.Service
	storage     storage.Storage
	adminKey    string
}

// NewPlayerHandler creates a new player handler. adminKey guards the
// destructive admin endpoints; an empty key disables them.
func NewPlayerHandler(authService *auth.Service, store storage.Storage, adminKey string) *PlayerHandler {
	return &PlayerHandler{
		authService: authService,
		storage:     store,
		adminKey:    adminKey,
	}
}

// Register handles POST /api/v1/players/register
func (h *PlayerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.Register
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}
	if req.DisplayName == "" {
		WriteError(w, NewInvalidRequestError("display_name is required"))
		return
	}

	session, err := h.authService.Register(r.Context(), req.Username, req.Password, req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.AuthFromSession(session))
}

// Login handles POST /api/v1/players/login
func (h *PlayerHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.Login
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthFromSession(session))
}

// ExternalLogin handles POST /api/v1/players/external
// Get-or-create for players authenticated by an external identity provider.
func (h *PlayerHandler) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	var req request.ExternalLogin
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.UID == "" {
		WriteError(w, NewInvalidRequestError("uid is required"))
		return
	}

	session, err := h.authService.ExternalLogin(r.Context(), auth.Identity{
		UID:         req.UID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		AvatarURL:   req.AvatarURL,
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthFromSession(session))
}

// Logout handles POST /api/v1/players/logout
func (h *PlayerHandler) Logout(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session != nil {
		h.authService.InvalidateSession(session.Token)
	}
	response.NoContent(w)
}

// GetMe handles GET /api/v1/players/me
func (h *PlayerHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	// Re-read so stats reconciled since login are reflected
	player, err := h.authService.GetPlayer(r.Context(), session.Token)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FromPlayer(player))
}

// GetMyStats handles GET /api/v1/players/me/stats
func (h *PlayerHandler) GetMyStats(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())

	player, err := h.authService.GetPlayer(r.Context(), session.Token)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FromPlayer(player).Stats)
}

// Get handles GET /api/v1/players/{player_id}
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	playerID := model.PlayerID(mux.Vars(r)["player_id"])

	player, err := h.storage.GetPlayer(r.Context(), playerID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.FromPlayer(player))
}

// List handles GET /api/v1/players
func (h *PlayerHandler) List(w http.ResponseWriter, r *http.Request) {
	players, err := h.storage.ListPlayers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.Player, 0, len(players))
	for _, p := range players {
		out = append(out, response.FromPlayer(p))
	}
	response.JSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/v1/players/{player_id}
// Admin only, guarded by the X-Admin-Key header.
func (h *PlayerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		WriteError(w, NewForbiddenError("admin key required"))
		return
	}

	playerID := model.PlayerID(mux.Vars(r)["player_id"])
	if err := h.storage.DeletePlayer(r.Context(), playerID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

func (h *PlayerHandler) isAdmin(r *http.Request) bool {
	if h.adminKey == "" {
		return false
	}
	key := r.Header.Get("X-Admin-Key")
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) == 1
}
