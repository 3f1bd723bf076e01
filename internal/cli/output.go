package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Println(string(data))
	} else {
		fmt.Println(msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case []Player:
		o.printPlayers(v)
	case Stats:
		o.printStats(v)
	case AuthResult:
		o.printAuthResult(v)
	case Game:
		o.printGame(v)
	case []Game:
		o.printGames(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Stats response type (matches API)
type Stats struct {
	Wins             int     `json:"wins"`
	MatchesPlayed    int     `json:"matches_played"`
	TotalPoints      int     `json:"total_points"`
	BestGameScore    *int    `json:"best_game_score"`
	WinRate          float64 `json:"win_rate"`
	AverageScore     float64 `json:"average_score"`
	PerformanceLevel string  `json:"performance_level"`
}

// Player response type
type Player struct {
	ID          string `json:"id"`
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
	Stats       Stats  `json:"stats"`
}

// AuthResult combines player and token
type AuthResult struct {
	Token     string    `json:"token"`
	Player    Player    `json:"player"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Round response type
type Round struct {
	Scores   map[string]int `json:"scores"`
	PlayedAt time.Time      `json:"played_at"`
}

// Game response type
type Game struct {
	ID        string         `json:"id"`
	PlayerIDs []string       `json:"player_ids"`
	Status    string         `json:"status"`
	EndReason string         `json:"end_reason,omitempty"`
	Rounds    []Round        `json:"rounds"`
	Totals    map[string]int `json:"totals"`
	Winner    string         `json:"winner,omitempty"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at,omitempty"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printPlayer(p Player) {
	fmt.Printf("Player: %s (%s)\n", p.DisplayName, p.ID)
	if p.Email != "" {
		fmt.Printf("Email: %s\n", p.Email)
	}
	o.printStats(p.Stats)
}

func (o *Output) printPlayers(players []Player) {
	fmt.Printf("Players (%d):\n", len(players))
	for _, p := range players {
		fmt.Printf("  - %s (%s) - %d wins / %d played\n",
			p.DisplayName, p.ID, p.Stats.Wins, p.Stats.MatchesPlayed)
	}
}

func (o *Output) printStats(s Stats) {
	fmt.Printf("Wins: %d\n", s.Wins)
	fmt.Printf("Matches Played: %d\n", s.MatchesPlayed)
	fmt.Printf("Total Points: %d\n", s.TotalPoints)
	if s.BestGameScore != nil {
		fmt.Printf("Best Game Score: %d\n", *s.BestGameScore)
	} else {
		fmt.Println("Best Game Score: -")
	}
	fmt.Printf("Win Rate: %.1f%%\n", s.WinRate)
	fmt.Printf("Average Score: %.1f\n", s.AverageScore)
	fmt.Printf("Level: %s\n", s.PerformanceLevel)
}

func (o *Output) printAuthResult(a AuthResult) {
	o.printPlayer(a.Player)
	fmt.Printf("Token: %s\n", a.Token)
}

func (o *Output) printGame(g Game) {
	fmt.Printf("Game: %s\n", g.ID)
	fmt.Printf("Status: %s\n", g.Status)
	if g.EndReason != "" {
		fmt.Printf("End Reason: %s\n", g.EndReason)
	}
	fmt.Printf("Players: %s\n", strings.Join(g.PlayerIDs, ", "))
	fmt.Printf("Rounds: %d\n", len(g.Rounds))

	if len(g.Totals) > 0 {
		fmt.Println("Totals:")
		ids := make([]string, 0, len(g.Totals))
		for id := range g.Totals {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("  %s: %d\n", id, g.Totals[id])
		}
	}

	if g.Winner != "" {
		fmt.Printf("Winner: %s\n", g.Winner)
	}
}

func (o *Output) printGames(games []Game) {
	fmt.Printf("Games (%d):\n", len(games))
	for _, g := range games {
		winner := g.Winner
		if winner == "" {
			winner = "-"
		}
		fmt.Printf("  - %s [%s] %d rounds, winner: %s\n", g.ID, g.Status, len(g.Rounds), winner)
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Status: %s\n", h.Status)
}
