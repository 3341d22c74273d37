package messages

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hearthchat/backend/internal/middleware"
	"github.com/hearthchat/backend/internal/store"
	"github.com/hearthchat/backend/pkg/utils"
)

// Handler serves the message collection: snapshot reads and the two
// durable commands. Author identity always comes from the authenticated
// principal, never from the request payload.
type Handler struct {
	store store.Store
}

func New(st store.Store) *Handler {
	return &Handler{store: st}
}

// List returns the current ordered snapshot.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context(), store.MessagesCollection)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "store unavailable")
		return
	}
	if records == nil {
		records = []store.Record{}
	}
	utils.RespondJSON(w, http.StatusOK, records)
}

// Create persists a new message. The store assigns id and timestamp; the
// payload carries only body and the optional reply target.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "principal required")
		return
	}

	var payload struct {
		Body        string `json:"body"`
		ReplyTarget string `json:"replyTarget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body := strings.TrimSpace(payload.Body)
	if body == "" {
		utils.RespondError(w, http.StatusBadRequest, "body is required")
		return
	}

	fields := store.Fields{
		AuthorID:     principal.ID,
		AuthorName:   principal.DisplayName,
		AuthorAvatar: principal.AvatarRef,
		Body:         body,
		ReplyTarget:  payload.ReplyTarget,
	}
	id, err := h.store.Create(r.Context(), store.MessagesCollection, fields)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "create failed")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// Delete removes a message the principal authored. The authorship check
// lives in the store so it cannot be bypassed by calling the API directly.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "principal required")
		return
	}

	id := chi.URLParam(r, "id")
	err := h.store.DeleteByID(r.Context(), store.MessagesCollection, id, principal.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.RespondError(w, http.StatusNotFound, "message not found")
	case errors.Is(err, store.ErrNotAuthor):
		utils.RespondError(w, http.StatusForbidden, "not the author")
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "delete failed")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
