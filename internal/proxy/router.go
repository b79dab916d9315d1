// Package proxy assembles the HTTP router for the OpenAI-compatible
// Codex proxy.
package proxy

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"

	"github.com/pysugar/codex-nexus/internal/client"
	"github.com/pysugar/codex-nexus/internal/proxy/handlers"
	"github.com/pysugar/codex-nexus/internal/proxy/middleware"
)

// NewRouter wires the auth flow endpoints and the OpenAI-compatible API
// onto a chi router. database may be nil, which disables request logging
// and the API key gate.
func NewRouter(c *client.Client, database *gorm.DB) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)

	authHandler := handlers.NewAuthHandler(c)
	openaiHandler := handlers.NewOpenAIHandler(c, database)

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Local diagnostics
	r.Get("/stats", handlers.Stats(database))

	// OAuth flow
	r.Get("/auth/callback", authHandler.Callback)
	r.Route("/auth/codex", func(r chi.Router) {
		r.Get("/status", authHandler.Status)
		r.Post("/start", authHandler.Start)
		r.Get("/callback", authHandler.Callback)
		r.Post("/exchange", authHandler.Exchange)
		r.Post("/refresh", authHandler.Refresh)
	})

	// OpenAI-compatible API
	r.Route("/v1", func(r chi.Router) {
		if database != nil && c.Config().APIKeyRequired {
			r.Use(middleware.APIKeyAuth(database))
		}
		r.Post("/chat/completions", openaiHandler.ChatCompletions)
		r.Get("/models", handlers.Models)
	})

	return r
}
