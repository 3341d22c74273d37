package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hearthchat/backend/internal/store"
)

// Envelope frames every outbound websocket message. Type is "snapshot"
// while the subscription is healthy and "error" exactly once if it fails.
type Envelope struct {
	Type      string         `json:"type"`
	Records   []store.Record `json:"records,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp int64          `json:"timestamp"`
}

// Handler pushes live feed snapshots over a websocket. It is the transport
// behind the remote store driver.
type Handler struct {
	store    store.Store
	upgrader websocket.Upgrader
}

func New(st store.Store) *Handler {
	return &Handler{
		store: st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Serve upgrades the connection and streams snapshots until the client
// disconnects or the subscription ends.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	sub, err := h.store.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	if err != nil {
		http.Error(w, "subscription failed", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer sub.Close()

	log.Printf("[ws] feed stream opened for %s", r.RemoteAddr)

	// Read pump: we expect nothing from the client, but reading is how the
	// peer's close frame is noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			log.Printf("[ws] feed stream closed by %s", r.RemoteAddr)
			return
		case snapshot, open := <-sub.Snapshots():
			if !open {
				if err := sub.Err(); err != nil {
					_ = conn.WriteJSON(Envelope{
						Type:      "error",
						Error:     err.Error(),
						Timestamp: time.Now().UnixMilli(),
					})
				}
				return
			}
			env := Envelope{
				Type:      "snapshot",
				Records:   snapshot,
				Timestamp: time.Now().UnixMilli(),
			}
			if env.Records == nil {
				env.Records = []store.Record{}
			}
			if err := conn.WriteJSON(env); err != nil {
				log.Printf("[ws] write failed for %s: %v", r.RemoteAddr, err)
				return
			}
		}
	}
}
