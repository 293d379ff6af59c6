package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	udp "battleships/internal/microservices/udp-server"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// udp_client.go = receives match notifications pushed by the UDP notifier.

const pingInterval = 30 * time.Second

// ListenNotifications subscribes to matchID (0 = all matches) and prints every
// notification until ctx ends, then unsubscribes.
func ListenNotifications(ctx context.Context, serverAddr string, matchID int) error {
	udpAddr, err := net.ResolveUDPAddr("udp", serverAddr)
	if err != nil {
		return fmt.Errorf("failed to resolve udp addr: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("failed to dial udp: %w", err)
	}
	defer conn.Close()

	id := uuid.NewString()
	send := func(kind string) error {
		data, _ := json.Marshal(udp.SubscribeRequest{Type: kind, SubscriberID: id, MatchID: matchID})
		_, err := conn.Write(data)
		return err
	}
	if err := send(udp.RequestSubscribe); err != nil {
		return fmt.Errorf("failed to send subscribe: %w", err)
	}

	// send PING periodically to keep the subscription alive
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = send(udp.RequestPing)
			}
		}
	}()

	buf := make([]byte, udp.MaxDatagram)
	for ctx.Err() == nil {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("udp read error: %w", err)
		}

		var notification udp.Notification
		if err := json.Unmarshal(buf[:n], &notification); err != nil {
			fmt.Printf("received: %s\n", string(buf[:n]))
			continue
		}
		displayNotification(notification)
	}

	// Send unsubscribe before exit
	_ = send(udp.RequestUnsubscribe)
	return nil
}

// displayNotification prints one notification line
func displayNotification(n udp.Notification) {
	stamp := n.Timestamp.Local().Format("15:04:05")
	switch n.Type {
	case udp.NotificationSubscribe, udp.NotificationUnsubscribe:
		color.Yellow("🔔 %s", n.Message)
	case udp.NotificationError:
		color.Red("✖ %s", n.Message)
	case udp.NotificationEvent:
		color.Cyan("📢 [%s] %s", stamp, n.Message)
	}
}
