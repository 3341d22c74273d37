package stream

import (
	"log"
	"net/http"

	"github.com/hearthchat/backend/internal/store"
	"github.com/hearthchat/backend/pkg/utils"
)

// Handler pushes live feed snapshots over Server-Sent Events. Each event
// carries the full ordered collection, never a diff, so a consumer can
// rebuild its view from any single event.
type Handler struct {
	store store.Store
}

func New(st store.Store) *Handler {
	return &Handler{store: st}
}

// Stream opens a subscription for the lifetime of the request.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sub, err := h.store.SubscribeOrdered(store.MessagesCollection, store.OrderByTimestamp)
	if err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "subscription failed")
		return
	}
	defer sub.Close()

	utils.SetupSSEHeaders(w)
	log.Printf("[sse] snapshot stream opened for %s", r.RemoteAddr)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sse] snapshot stream closed for %s", r.RemoteAddr)
			return
		case snapshot, open := <-sub.Snapshots():
			if !open {
				if err := sub.Err(); err != nil {
					utils.SendSSEEvent(w, flusher, "error", map[string]string{"error": err.Error()})
				}
				return
			}
			utils.SendSSEEvent(w, flusher, "snapshot", snapshot)
		}
	}
}
