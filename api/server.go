/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/members/*       Roster and per-member dues summary
  /api/activities/*    Activity catalog
  /api/enrollments/*   Enrollment edits, ledgers, payments
  /api/sync            Sync trigger and status

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.CreateMember)
			r.Get("/{id}", h.GetMember)
			r.Put("/{id}", h.UpdateMember)
			r.Get("/{id}/summary", h.GetMemberSummary)
			r.Post("/{id}/deactivate", h.DeactivateMember)
			r.Post("/{id}/reactivate", h.ReactivateMember)
			r.Put("/{id}/notes", h.SaveNotes)
			r.Post("/{id}/enrollments", h.CreateEnrollment)
		})

		// Activity routes
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", h.ListActivities)
			r.Post("/", h.CreateActivity)
		})

		// Enrollment routes
		r.Route("/enrollments", func(r chi.Router) {
			r.Put("/{id}", h.UpdateEnrollment)
			r.Delete("/{id}", h.DeleteEnrollment)
			r.Get("/{id}/ledger", h.GetLedger)

			// Payment routes
			r.Route("/{id}/payments", func(r chi.Router) {
				r.Post("/", h.AddPayment)
				r.Post("/advance", h.CreateAdvanceBatch)
				r.Put("/{paymentID}", h.EditPayment)
				r.Delete("/{paymentID}", h.DeletePayment)
			})
		})

		// Club-wide dues summary
		r.Get("/summary", h.GetClubSummary)

		// Sync routes
		r.Route("/sync", func(r chi.Router) {
			r.Post("/", h.RunSync)
			r.Get("/status", h.GetSyncStatus)
		})
	})

	return r
}
