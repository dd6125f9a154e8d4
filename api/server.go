/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request log (method, path, status, duration, id)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests, origins from config

ROUTE GROUPS:
  /api/leave-days/*          Day counting
  /api/employees/*           Directory and per-employee balances
  /api/financial-years/*     Year registry, award runs, exports
  /api/applications/*        Approval workflow
  /api/approvers/*           Approver inboxes
  /api/holidays/*            Holiday calendar
  /api/admin/*               Ledger adjustments
  /api/scenarios/*           Demo data

SECURITY NOTE:
  No authentication middleware. The X-Actor-ID header is trusted as set
  by an upstream proxy.

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

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(opts.Logger.Named("http")))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", ActorHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Post("/leave-days/calculate", h.CalculateDays)
		r.Get("/leave-types", h.ListLeaveTypes)

		// Directory and balances
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Get("/{id}", h.GetEmployee)
			r.Get("/{id}/balances", h.ListEmployeeBalances)
			r.Get("/{id}/balances/{leaveTypeID}", h.GetBalance)
		})

		// Financial year registry and award runs
		r.Route("/financial-years", func(r chi.Router) {
			r.Get("/", h.ListFinancialYears)
			r.Post("/{year}/start", h.StartFinancialYear)
			r.Get("/{year}/stats", h.GetYearStats)
			r.Get("/{year}/balances", h.ListYearBalances)
			r.Get("/{year}/awards", h.ListAwardHistory)
			r.Get("/{year}/export.xlsx", h.ExportWorkbook)
			r.Get("/{year}/report.pdf", h.ExportReport)
		})

		// Approval workflow
		r.Route("/applications", func(r chi.Router) {
			r.Post("/", h.SubmitApplication)
			r.Get("/", h.ListApplications)
			r.Get("/{id}", h.GetApplication)
			r.Post("/{id}/steps/{step}/approve", h.ApproveStep)
			r.Post("/{id}/reject", h.RejectApplication)
			r.Post("/{id}/cancel", h.CancelApplication)
		})
		r.Get("/approvers/{id}/pending", h.ListPendingForApprover)

		// Holiday routes
		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.CreateHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/balances/credit", h.CreditBalance)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if actor := actorID(r); actor != "" {
					fields = append(fields, zap.String("actor", actor))
				}
				if status >= http.StatusInternalServerError {
					logger.Warn("request", fields...)
					return
				}
				logger.Info("request", fields...)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
