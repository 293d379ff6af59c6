package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"battleships/internal/microservices/websocket"
	"battleships/internal/shared"

	"github.com/fatih/color"
	gws "github.com/gorilla/websocket"
)

// ws_client.go = follows live match events as a spectator.
func WatchMatches(ctx context.Context, apiURL string, matchID int) error {
	u, err := url.Parse(apiURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws"
	if matchID > 0 {
		u.RawQuery = url.Values{"match_id": {strconv.Itoa(matchID)}}.Encode()
	}

	conn, _, err := gws.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer conn.Close()

	// Close the socket when the caller gives up so ReadJSON returns
	go func() {
		<-ctx.Done()
		conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || gws.IsCloseError(err, gws.CloseNormalClosure, gws.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}
		PrintMessage(msg)
	}
}

func PrintMessage(msg websocket.Message) {
	switch msg.Type {
	case websocket.TypeSystem:
		color.Yellow("🔔 %s", msg.Content)

	case websocket.TypeEvent:
		if msg.Event == nil {
			return
		}
		ev := msg.Event
		stamp := msg.Timestamp.Format("15:04:05")
		switch ev.Type {
		case shared.EventShot:
			if hit, _ := ev.Data["hit"].(bool); hit {
				color.Red("[%s] match %d: player %d hit %v", stamp, ev.MatchID, ev.PlayerID, ev.Data["pos"])
			} else {
				color.HiBlack("[%s] match %d: player %d missed %v", stamp, ev.MatchID, ev.PlayerID, ev.Data["pos"])
			}
		case shared.EventMatchWon:
			color.Green("[%s] match %d: player %d won round %v", stamp, ev.MatchID, ev.PlayerID, ev.Data["round"])
		default:
			color.Cyan("[%s] match %d: %s (player %d)", stamp, ev.MatchID, ev.Type, ev.PlayerID)
		}
	}
}
