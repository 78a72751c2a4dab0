package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ignite/newsletter/internal/auth"
)

// SetupRoutes configures the full route tree. Health and the auth flow
// are open; everything under /admin and /api requires a session when
// auth is enabled.
func SetupRoutes(h *Handlers, authManager *auth.Manager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// Credentials must be allowed for the session cookie.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HandleHealth)

	if authManager != nil {
		r.Get("/auth/login", authManager.HandleLogin)
		r.Get("/auth/callback", authManager.HandleCallback)
		r.Get("/auth/logout", authManager.HandleLogout)
		r.Get("/auth/user", authManager.HandleUserInfo)
	}

	r.Route("/admin", func(r chi.Router) {
		if authManager != nil {
			r.Use(authManager.RequireAuth)
		}
		r.Get("/dashboard", h.HandleDashboard)
		r.Get("/newsletters", h.HandleNewsletterForm)
		r.Post("/newsletters", h.HandlePublishNewsletter)
	})

	r.Route("/api", func(r chi.Router) {
		if authManager != nil {
			r.Use(authManager.RequireAuth)
		}
		r.Get("/delivery/stats", h.HandleDeliveryStats)
		r.Get("/issues/{id}", h.HandleGetIssue)
		r.Post("/newsletters/draft-from-feed", h.HandleDraftFromFeed)
	})

	return r
}
