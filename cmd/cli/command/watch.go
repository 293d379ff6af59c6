package command

import (
	"fmt"
	"os"
	"os/signal"

	"battleships/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow live matches as a spectator",
	Long: `Connect to the spectator feed and print every match event as it happens.
Without --match all matches are shown. Press Ctrl+C to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		matchID, _ := cmd.Flags().GetInt("match")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		if matchID > 0 {
			fmt.Printf("🔭 Watching match %d...\n", matchID)
		} else {
			fmt.Println("🔭 Watching all matches...")
		}
		return client.WatchMatches(ctx, apiURL, matchID)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().IntP("match", "m", 0, "match ID to follow (default all)")
}
