package response

import (
	"time"

	"github.com/mcoot/ablakos-go/internal/model"
	"github.com/mcoot/ablakos-go/internal/services/auth"
	"github.com/mcoot/ablakos-go/internal/services/stats"
)

// Stats is the player statistics portion of a player response
type Stats struct {
	Wins             int     `json:"wins"`
	MatchesPlayed    int     `json:"matches_played"`
	TotalPoints      int     `json:"total_points"`
	BestGameScore    *int    `json:"best_game_score"`
	WinRate          float64 `json:"win_rate"`
	AverageScore     float64 `json:"average_score"`
	PerformanceLevel string  `json:"performance_level"`
}

// Player is the API representation of a player
type Player struct {
	ID          model.PlayerID `json:"id"`
	UID         string         `json:"uid"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email,omitempty"`
	AvatarURL   string         `json:"avatar_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Stats       Stats          `json:"stats"`
}

// FromPlayer converts a model player to its API representation
func FromPlayer(p *model.Player) Player {
	d := stats.Derive(p.Stats)
	return Player{
		ID:          p.ID,
		UID:         p.UID,
		DisplayName: p.DisplayName,
		Email:       p.Email,
		AvatarURL:   p.AvatarURL,
		CreatedAt:   p.CreatedAt,
		Stats: Stats{
			Wins:             p.Stats.Wins,
			MatchesPlayed:    p.Stats.MatchesPlayed,
			TotalPoints:      p.Stats.TotalPoints,
			BestGameScore:    p.Stats.BestGameScore,
			WinRate:          d.WinRate,
			AverageScore:     d.AverageScore,
			PerformanceLevel: d.PerformanceLevel,
		},
	}
}

// Round is the API representation of a played round
type Round struct {
	Scores   map[model.PlayerID]int `json:"scores"`
	PlayedAt time.Time              `json:"played_at"`
}

// Game is the API representation of a game
type Game struct {
	ID        model.GameID           `json:"id"`
	PlayerIDs []model.PlayerID       `json:"player_ids"`
	Status    model.GameStatus       `json:"status"`
	EndReason model.EndReason        `json:"end_reason,omitempty"`
	Rounds    []Round                `json:"rounds"`
	Totals    map[model.PlayerID]int `json:"totals"`
	Winner    model.PlayerID         `json:"winner,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	EndedAt   *time.Time             `json:"ended_at,omitempty"`
}

// FromGame converts a model game to its API representation
func FromGame(g *model.Game, totals map[model.PlayerID]int, winner model.PlayerID) Game {
	rounds := make([]Round, 0, len(g.Rounds))
	for _, r := range g.Rounds {
		rounds = append(rounds, Round{Scores: r.Scores, PlayedAt: r.PlayedAt})
	}
	return Game{
		ID:        g.ID,
		PlayerIDs: g.PlayerIDs,
		Status:    g.Status,
		EndReason: g.EndReason,
		Rounds:    rounds,
		Totals:    totals,
		Winner:    winner,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
	}
}

// Auth is the response body for a successful authentication
type Auth struct {
	Token     string    `json:"token"`
	Player    Player    `json:"player"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthFromSession converts an auth session to its API representation
func AuthFromSession(session *auth.Session) Auth {
	return Auth{
		Token:     session.Token,
		Player:    FromPlayer(&session.Player),
		ExpiresAt: session.ExpiresAt,
	}
}

// Health is the response body for the health endpoint
type Health struct {
	Status string `json:"status"`
}
