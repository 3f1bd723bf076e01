package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/ablakos-go/internal/api/request"
	"github.com/mcoot/ablakos-go/internal/api/response"
	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/game"
)

// GameHandler handles game-related endpoints
type GameHandler struct {
	controller game.ControllerInterface
}

// NewGameHandler creates a new game handler
func NewGameHandler(controller game.ControllerInterface) *GameHandler {
	return &GameHandler{
		controller: controller,
	}
}

// Create handles POST /api/v1/games
func (h *GameHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateGame
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	g, err := h.controller.StartGame(r.Context(), req.PlayerIDs)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, h.gameResponse(g))
}

// Get handles GET /api/v1/games/{game_id}
func (h *GameHandler) Get(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])

	g, err := h.controller.GetGame(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, h.gameResponse(g))
}

// SubmitRound handles POST /api/v1/games/{game_id}/rounds
func (h *GameHandler) SubmitRound(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])

	var req request.SubmitRound
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if len(req.Scores) == 0 {
		WriteError(w, NewInvalidRequestError("scores are required"))
		return
	}

	g, err := h.controller.SubmitRound(r.Context(), gameID, req.Scores)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, h.gameResponse(g))
}

// End handles POST /api/v1/games/{game_id}/end
// Manual termination; does not touch player statistics.
func (h *GameHandler) End(w http.ResponseWriter, r *http.Request) {
	gameID := model.GameID(mux.Vars(r)["game_id"])

	g, err := h.controller.EndGameManually(r.Context(), gameID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, h.gameResponse(g))
}

// History handles GET /api/v1/games/history
func (h *GameHandler) History(w http.ResponseWriter, r *http.Request) {
	games, err := h.controller.ListCompletedGames(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	out := make([]response.Game, 0, len(games))
	for _, g := range games {
		out = append(out, h.gameResponse(g))
	}
	response.JSON(w, http.StatusOK, out)
}

func (h *GameHandler) gameResponse(g *model.Game) response.Game {
	totals := h.controller.TotalScores(g)
	winner, _ := h.controller.Winner(g)
	return response.FromGame(g, totals, winner)
}
