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
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/learners/*   Learner management + enrollment
  /api/courses/*    Course catalog
  /api/invoices/*   Invoice generation and lifecycle
  /api/revenue/*    Revenue reporting and reconciliation

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Learner routes
		r.Route("/learners", func(r chi.Router) {
			r.Get("/", h.ListLearners)
			r.Post("/", h.CreateLearner)
			r.Get("/{id}", h.GetLearner)
			r.Put("/{id}", h.UpdateLearner)
			r.Delete("/{id}", h.DeleteLearner)
			r.Post("/{id}/enroll", h.EnrollLearner)
			r.Post("/{id}/withdraw", h.WithdrawLearner)
		})

		// Course routes
		r.Route("/courses", func(r chi.Router) {
			r.Get("/", h.ListCourses)
			r.Post("/", h.CreateCourse)
			r.Get("/{id}", h.GetCourse)
			r.Put("/{id}", h.UpdateCourse)
			r.Delete("/{id}", h.DeleteCourse)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/", h.CreateInvoice)
			r.Get("/{id}", h.GetInvoice)
			r.Put("/{id}", h.UpdateInvoiceStatus)
			r.Patch("/{id}/void", h.VoidInvoice)
			r.Delete("/{id}", h.DeleteInvoice)
		})

		// Revenue routes
		r.Route("/revenue", func(r chi.Router) {
			r.Get("/total", h.GetRevenueTotal)
			r.Get("/by-date", h.GetRevenueByDate)
			r.Get("/audit", h.GetRevenueAudit)
		})
	})

	return r
}
