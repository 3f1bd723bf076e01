package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newGameCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "game",
		Short: "Game session commands",
	}

	cmd.AddCommand(newGameStartCmd())
	cmd.AddCommand(newGameGetCmd())
	cmd.AddCommand(newGameRoundCmd())
	cmd.AddCommand(newGameEndCmd())
	cmd.AddCommand(newGameHistoryCmd())

	return cmd
}

func newGameStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <player-id>...",
		Short: "Start a new game with the given players",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"player_ids": args}
			var result Game

			if err := client.Post("/api/v1/games", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <game-id>",
		Short: "Get game state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game

			if err := client.Get("/api/v1/games/"+args[0], &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameRoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "round <game-id> <player=score>...",
		Short: "Submit a round of scores",
		Long: `Submit a round of scores for a game.

Every participant must be given a score, e.g.:
  ablakos game round GAME01 alice=10 bob=-5 carol=20`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gameID := args[0]

			scores := make(map[string]int, len(args)-1)
			for _, pair := range args[1:] {
				player, scoreStr, found := strings.Cut(pair, "=")
				if !found {
					return fmt.Errorf("invalid score %q: expected player=score", pair)
				}
				score, err := strconv.Atoi(scoreStr)
				if err != nil {
					return fmt.Errorf("invalid score for %s: %w", player, err)
				}
				scores[player] = score
			}

			req := map[string]any{"scores": scores}
			var result Game

			if err := client.Post(fmt.Sprintf("/api/v1/games/%s/rounds", gameID), req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameEndCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "end <game-id>",
		Short: "End a game manually (no stats are recorded)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Game

			if err := client.Post(fmt.Sprintf("/api/v1/games/%s/end", args[0]), nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newGameHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List completed games",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result []Game

			if err := client.Get("/api/v1/games/history", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
