package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ablakos-go/internal/api/middleware"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/sse"
)

// EventsHandler serves game change feeds over SSE
type EventsHandler struct {
	hubManager *sse.HubManager
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hubManager *sse.HubManager) *EventsHandler {
	return &EventsHandler{
		hubManager: hubManager,
	}
}

// Stream handles GET /api/v1/games/{game_id}/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	player := middleware.MustGetPlayer(r.Context())
	gameID := model.GameID(mux.Vars(r)["game_id"])

	hub, err := h.hubManager.GetOrCreateHub(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}

	sse.ServeSSE(w, r, hub, player.ID)
}
