package command

import (
	"fmt"

	"battleships/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var statsLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the game server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := client.NewHTTPClient(apiURL).GetStatus()
		if err != nil {
			return fmt.Errorf("failed to fetch status: %w", err)
		}

		fmt.Println("⚓ Battleships server")
		fmt.Println("─────────────────────────────────────────")
		fmt.Printf("Players:     %d (%d connected, %d pairing)\n", status.Players, status.Connected, status.Pending)
		fmt.Printf("Matches:     %d (%d active)\n", status.Matches, status.ActiveMatches)
		fmt.Printf("Spectators:  %d\n", status.Spectators)
		fmt.Printf("Rematches:   %t\n", status.RematchEnabled)
		fmt.Printf("Uptime:      %ds\n", status.UptimeSeconds)
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the players with the most wins",
	RunE: func(cmd *cobra.Command, args []string) error {
		board, err := client.NewHTTPClient(apiURL).GetLeaderboard(statsLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch leaderboard: %w", err)
		}
		if len(board.Data) == 0 {
			fmt.Println("🏆 No finished matches yet")
			return nil
		}

		fmt.Printf("🏆 Leaderboard (top %d)\n", board.Limit)
		fmt.Println("─────────────────────────────────────────")
		for _, e := range board.Data {
			fmt.Printf("%3d. player %-6d %4d W %4d L  %5.1f%%\n", e.Rank, e.PlayerID, e.Wins, e.Losses, e.WinRate*100)
		}
		return nil
	},
}

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the latest finished rounds",
	RunE: func(cmd *cobra.Command, args []string) error {
		recent, err := client.NewHTTPClient(apiURL).GetRecentResults(statsLimit)
		if err != nil {
			return fmt.Errorf("failed to fetch results: %w", err)
		}
		if len(recent.Data) == 0 {
			fmt.Println("📜 No finished matches yet")
			return nil
		}

		fmt.Printf("📜 Latest results (%d)\n", len(recent.Data))
		fmt.Println("─────────────────────────────────────────")
		for _, r := range recent.Data {
			fmt.Printf("match %d round %d: player %d beat player %d (%d vs %d shots, %.0fs)  %s\n",
				r.MatchID, r.Round, r.WinnerID, r.LoserID, r.WinnerShots, r.LoserShots,
				r.DurationSeconds, r.FinishedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, leaderboardCmd, resultsCmd)
	leaderboardCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "number of entries")
	resultsCmd.Flags().IntVarP(&statsLimit, "limit", "n", 10, "number of entries")
}
