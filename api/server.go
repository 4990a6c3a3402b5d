/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (method, path, status, duration, request id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /health               Store health
  /api/semesters/*      Week generation and special weeks
  /api/calendars/*      Calendar build, manual days, verification
  /api/teaching-hours/* Recurring teaching-hour records
  /api/declarations/*   Preview and finalize
  /api/holidays/*       Holiday administration
  /api/scenarios/*      Demo scenarios

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/semesters", func(r chi.Router) {
			r.Post("/", h.GenerateSemester)
			r.Get("/{faculty}/{year}/{semester}", h.GetSemester)
			r.Post("/{faculty}/{year}/{semester}/special-weeks", h.AddSpecialWeek)
		})

		r.Route("/calendars", func(r chi.Router) {
			r.Post("/build", h.BuildCalendar)
			r.Get("/verify", h.VerifyCalendar)
			r.Get("/{user}/{year}/{semester}", h.GetCalendar)
			r.Post("/{user}/{year}/{semester}/days", h.AddSpecialDay)
		})

		r.Route("/teaching-hours", func(r chi.Router) {
			r.Get("/", h.ListRecords)
			r.Post("/", h.SaveRecord)
			r.Delete("/{id}", h.DeleteRecord)
		})

		r.Route("/declarations", func(r chi.Router) {
			r.Get("/", h.ListDeclarations)
			r.Post("/", h.FinalizeDeclaration)
			r.Post("/preview", h.PreviewDeclaration)
			r.Get("/{id}", h.GetDeclaration)
		})

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Post("/defaults", h.AddDefaultHolidays)
			r.Post("/refresh", h.RefreshHolidays)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info("http request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
