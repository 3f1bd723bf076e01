package stats

import (
	"math"

	"github.com/mcoot/ablakos-go/internal/model"
)

// Derived statistics computed on read from the durable counters.
// Never stored; they would only drift.

// WinRate returns the win percentage (0-100)
func WinRate(s model.PlayerStats) float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.MatchesPlayed) * 100
}

// AverageScore returns the mean final score per match, to one decimal place
func AverageScore(s model.PlayerStats) float64 {
	if s.MatchesPlayed == 0 {
		return 0
	}
	return math.Round(float64(s.TotalPoints)/float64(s.MatchesPlayed)*10) / 10
}

// PerformanceLevel buckets a win rate into a label
func PerformanceLevel(winRate float64) string {
	switch {
	case winRate >= 70:
		return "expert"
	case winRate >= 50:
		return "advanced"
	case winRate >= 30:
		return "intermediate"
	default:
		return "beginner"
	}
}

// Derived holds the computed view of a player's stats
type Derived struct {
	WinRate          float64
	AverageScore     float64
	PerformanceLevel string
}

// Derive computes the full derived view for a stats record
func Derive(s model.PlayerStats) Derived {
	rate := WinRate(s)
	return Derived{
		WinRate:          rate,
		AverageScore:     AverageScore(s),
		PerformanceLevel: PerformanceLevel(rate),
	}
}
