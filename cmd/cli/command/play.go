package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	bclient "battleships/internal/client"
	"battleships/internal/game"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	playRounds int
	playTick   time.Duration
	fleetFile  string
	fleetName  string
)

// playCmd runs one automatic player against whoever pairs with it
var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play matches with an automatic fleet and targeting",
	Long: `Connect to the game server, pair with the next waiting player and play.
The fleet is placed automatically (or taken from a preset of --fleet-file)
and shots sweep the board row by row. With --rounds above 1 a rematch is
requested after every round.

Press Ctrl+C to leave; the server is told about it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := game.DefaultRules()
		var layout []game.Ship
		if fleetFile != "" {
			ff, err := game.LoadFleetFile(fleetFile)
			if err != nil {
				return err
			}
			rules = *ff.Rules
			if fleetName != "" {
				preset, ok := ff.Layout(fleetName)
				if !ok {
					return fmt.Errorf("no layout %q in %s", fleetName, fleetFile)
				}
				layout = preset
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger()
		opts := bclient.DefaultOptions(serverAddr)
		opts.Logger = logger
		session := bclient.NewSession(opts)
		g := bclient.NewGame(session, rules, logger)
		bot := bclient.NewBot(g, playRounds)

		fmt.Printf("🔌 Connecting to %s...\n", serverAddr)
		runGame(ctx, g, bot, layout)

		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			color.Yellow("⚠ connection closed without goodbye: %v", err)
		}

		st := g.State()
		switch st.Stage {
		case bclient.StageWon:
			color.Green("🏆 %s", st.Banner)
		case bclient.StageLost:
			color.Red("💥 %s", st.Banner)
		default:
			if st.Banner != "" {
				color.Yellow("🔔 %s", st.Banner)
			}
		}
		return nil
	},
}

// runGame drives the game loop until the session is closed.
func runGame(ctx context.Context, g *bclient.Game, bot *bclient.Bot, layout []game.Ship) {
	ticker := time.NewTicker(playTick)
	defer ticker.Stop()

	last := g.Stage()
	quitting := false
	for g.HandleRequests() {
		if ctx.Err() != nil && !quitting {
			g.Quit()
			quitting = true
		}
		if !quitting {
			if layout != nil && g.Stage() == bclient.StagePlacing && !g.Grid().AllPlaced() {
				g.Grid().SetLayout(layout)
			}
			done, err := bot.Step()
			if err != nil {
				color.Red("✖ %v", err)
			}
			if done {
				g.Quit()
				quitting = true
			}
		}
		if stage := g.Stage(); stage != last {
			printStage(g.State())
			last = stage
		}
		<-ticker.C
	}
}

func printStage(st bclient.DrawableState) {
	switch st.Stage {
	case bclient.StagePairing:
		if st.Round == 0 {
			fmt.Printf("✅ Connected as player %d, waiting for an opponent...\n", st.PlayerID)
		} else {
			fmt.Println("🔁 Rematch agreed")
		}
	case bclient.StagePlacing:
		fmt.Printf("⚓ Round %d against player %d, placing the fleet\n", st.Round, st.OpponentID)
	case bclient.StageGameWait:
		fmt.Println("⏳ Fleet ready, waiting for the opponent")
	case bclient.StageShooting:
		fmt.Printf("🎯 Your turn (%d sunk)\n", len(st.Sunk))
	case bclient.StageWon:
		color.Green("🏆 Round %d won", st.Round)
	case bclient.StageLost:
		color.Red("💥 Round %d lost", st.Round)
	case bclient.StageRematch:
		fmt.Println("🔁 Rematch requested")
	}
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().IntVarP(&playRounds, "rounds", "r", 1, "rounds to play, rematching in between")
	playCmd.Flags().DurationVar(&playTick, "tick", 20*time.Millisecond, "game loop period")
	playCmd.Flags().StringVar(&fleetFile, "fleet-file", "", "YAML file with rules and preset layouts")
	playCmd.Flags().StringVar(&fleetName, "layout", "", "preset layout of --fleet-file to place")
}
