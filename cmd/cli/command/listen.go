package command

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"battleships/cmd/cli/command/client"

	"github.com/spf13/cobra"
)

var udpServerAddr string

// listenCmd subscribes to UDP match notifications
var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive match notifications over UDP",
	Long: `Subscribe to the UDP match notifier and print match events as they arrive.
The subscription is kept alive with periodic pings and removed on exit.

Press Ctrl+C to stop listening.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		matchID, _ := cmd.Flags().GetInt("match")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println("🔌 Subscribing to match notifications...")
		fmt.Printf("   Server: %s\n\n", udpServerAddr)
		return client.ListenNotifications(ctx, udpServerAddr, matchID)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)
	listenCmd.Flags().StringVar(&udpServerAddr, "udp", envOr("UDP_ADDR", "localhost:1251"), "UDP notifier address")
	listenCmd.Flags().IntP("match", "m", 0, "match ID to follow (default all)")
}
