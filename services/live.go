package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LiveEvent is a single server-sent event addressed to one user.
type LiveEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

const liveBufferSize = 8

// LiveHub tracks per-user live connections and pushes events to them.
// Delivery is a hint, not a queue: offline users and full buffers are
// skipped silently, the durable copy goes through the Notifier.
type LiveHub struct {
	mu   sync.Mutex
	subs map[string]map[chan LiveEvent]struct{}
}

func NewLiveHub() *LiveHub {
	return &LiveHub{subs: make(map[string]map[chan LiveEvent]struct{})}
}

func (h *LiveHub) Subscribe(userID string) chan LiveEvent {
	ch := make(chan LiveEvent, liveBufferSize)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan LiveEvent]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	return ch
}

func (h *LiveHub) Unsubscribe(userID string, ch chan LiveEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[userID]; ok {
		delete(set, ch)
		if len(set) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Push delivers an event to every live connection of the user without
// blocking the caller.
func (h *LiveHub) Push(userID, event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- LiveEvent{Event: event, Payload: payload}:
		default:
		}
	}
}

// StreamEvents streams the authenticated user's live events over SSE.
func (h *LiveHub) StreamEvents(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	// SSE headers
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	ctx := c.Context()
	ch := h.Subscribe(userID)

	// Use fasthttp stream writer (THIS replaces Flush)
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		defer h.Unsubscribe(userID, ch)

		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		// Initial keepalive (comment event)
		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case ev := <-ch:
				payload, err := json.Marshal(ev.Payload)
				if err != nil {
					log.Printf("SSE marshal error for user %s: %v", userID, err)
					continue
				}

				fmt.Fprintf(w,
					"event: %s\ndata: %s\n\n",
					ev.Event, payload,
				)

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-ticker.C:
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ctx.Done():
				// Client closed connection
				return
			}
		}
	})

	return nil
}
