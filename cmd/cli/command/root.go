package command

// root.go defines the root command for the battleships CLI.
// set up the global flags here.

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string // game server TCP address
	apiURL     string // status API base URL
	verbose    bool   // log protocol traffic to stderr
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "battleships",
	Short: "battleships - two player naval battle over TCP",
	Long: `battleships is the command line client of the battleships server. Use it to:
- Play a match against another player with an automatic fleet and targeting
- Watch live matches as a spectator
- Show the server status, the leaderboard and the latest results

Use "battleships command -h" to see all available commands.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err) // Print error to standard error
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags = available to all subcommands
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", envOr("SERVER_ADDR", "localhost:1250"), "game server address")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("API_URL", "http://localhost:8080"), "status API URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log requests and stage changes")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *slog.Logger {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
