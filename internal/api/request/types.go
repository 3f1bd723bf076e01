package request

import "github.com/mcoot/ablakos-go/internal/model"

// Register is the request body for player registration
type Register struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// Login is the request body for username/password login
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ExternalLogin is the request body for federated identity login
type ExternalLogin struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// CreateGame is the request body for starting a game
type CreateGame struct {
	PlayerIDs []model.PlayerID `json:"player_ids"`
}

// SubmitRound is the request body for recording a round
type SubmitRound struct {
	Scores map[model.PlayerID]int `json:"scores"`
}
