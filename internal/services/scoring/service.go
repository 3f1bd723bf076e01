package scoring

import "github.com/mcoot/ablakos-go/internal/model"

// DefaultThreshold is the absolute total that ends a game for any player who
// reaches or passes it in either direction
const DefaultThreshold = 100

// Service provides the pure scoring computations: aggregation of the round
// log, the game-end decision, and winner resolution. It holds no state beyond
// the configured threshold and touches no storage.
type Service struct {
	threshold int
}

// New creates a new scoring service with the given end-of-game threshold.
// A non-positive threshold falls back to DefaultThreshold.
func New(threshold int) *Service {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Service{threshold: threshold}
}

// Threshold returns the configured end-of-game threshold
func (s *Service) Threshold() int {
	return s.threshold
}

// TotalScores folds the game's round log into per-player cumulative totals.
// Every participant is initialized to 0, whether or not they appear in any
// round; score entries for non-participants are ignored. Totals are always
// recomputed from scratch so they can never drift from the append-only log.
func (s *Service) TotalScores(game *model.Game) map[model.PlayerID]int {
	totals := make(map[model.PlayerID]int, len(game.PlayerIDs))
	for _, id := range game.PlayerIDs {
		totals[id] = 0
	}
	for _, round := range game.Rounds {
		for id, score := range round.Scores {
			if _, ok := totals[id]; ok {
				totals[id] += score
			}
		}
	}
	return totals
}

// ShouldEnd reports whether the totals demand the game's completion: true iff
// any player's total has reached the threshold in either direction.
func (s *Service) ShouldEnd(totals map[model.PlayerID]int) bool {
	for _, total := range totals {
		if total >= s.threshold || total <= -s.threshold {
			return true
		}
	}
	return false
}

// Winner resolves the winning player: the lowest total wins. Ties break to
// the first participant, in the game's stored participant order, holding the
// minimum, so resolution is deterministic across repeated invocations.
// ok is false only for a game with no participants.
func (s *Service) Winner(game *model.Game, totals map[model.PlayerID]int) (model.PlayerID, bool) {
	var winner model.PlayerID
	found := false
	lowest := 0
	for _, id := range game.PlayerIDs {
		total := totals[id]
		if !found || total < lowest {
			winner = id
			lowest = total
			found = true
		}
	}
	return winner, found
}

// Interface for dependency injection
type ServiceInterface interface {
	Threshold() int
	TotalScores(game *model.Game) map[model.PlayerID]int
	ShouldEnd(totals map[model.PlayerID]int) bool
	Winner(game *model.Game, totals map[model.PlayerID]int) (model.PlayerID, bool)
}

var _ ServiceInterface = (*Service)(nil)
