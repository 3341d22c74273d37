package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hearthchat/backend/internal/auth"
	"github.com/hearthchat/backend/internal/handler/messages"
	"github.com/hearthchat/backend/internal/handler/stream"
	"github.com/hearthchat/backend/internal/handler/ws"
	"github.com/hearthchat/backend/internal/middleware"
	"github.com/hearthchat/backend/internal/store"
)

// NewRouter wires the HTTP surface over the store: snapshot reads and live
// streams are open, the two durable commands require a resolved principal.
func NewRouter(st store.Store, tokens auth.TokenTable, allowOrigin string) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowOrigin))

	messagesHandler := messages.New(st)
	streamHandler := stream.New(st)
	wsHandler := ws.New(st)

	r.Route("/api", func(api chi.Router) {
		api.Get("/messages", messagesHandler.List)
		api.Get("/messages/stream", streamHandler.Stream)
		api.Get("/ws", wsHandler.Serve)

		api.Group(func(cmd chi.Router) {
			cmd.Use(middleware.RequirePrincipal(tokens))
			cmd.Post("/messages", messagesHandler.Create)
			cmd.Delete("/messages/{id}", messagesHandler.Delete)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
