package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/superres/internal/core/ports"
	"github.com/samirrijal/superres/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to job events.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Job    string `json:"job"`    // job ID, "" = all jobs
}

// WebSocketHandler relays job progress and completion events to connected
// clients. Connect with ?job=<id> to follow one job from its first event, or
// send {"action":"subscribe","job":"<id>"} later. Without either the client
// receives new events of every job.
func WebSocketHandler(events ports.EventSubscriber) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		logger := slog.Default().With("remote", remoteAddr)
		logger.Info("ws client connected")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var mu sync.Mutex
		subs := make(map[string]func()) // job ID -> cancel

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(job string) error {
			stop, err := events.SubscribeJob(ctx, job, func(data []byte) {
				_ = writeJSON(json.RawMessage(data))
			})
			if err != nil {
				return err
			}
			subs[job] = stop
			return nil
		}

		if err := subscribe(c.Query("job")); err != nil {
			logger.Error("ws subscribe failed", "error", err)
			_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
			return
		}

		// Keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[m.Job]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "job": m.Job})
					continue
				}
				if err := subscribe(m.Job); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "job": m.Job})

			case "unsubscribe":
				stop, exists := subs[m.Job]
				if !exists {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.Job})
					continue
				}
				stop()
				delete(subs, m.Job)
				_ = writeJSON(map[string]string{"status": "unsubscribed", "job": m.Job})

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		for _, stop := range subs {
			stop()
		}
		logger.Info("ws client disconnected")
	}
}
