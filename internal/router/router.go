package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
	"github.com/FACorreiaa/go-travel-planner/internal/api/auth"
	"github.com/FACorreiaa/go-travel-planner/internal/api/expenses"
	"github.com/FACorreiaa/go-travel-planner/internal/api/geo"
	"github.com/FACorreiaa/go-travel-planner/internal/api/mapview"
	"github.com/FACorreiaa/go-travel-planner/internal/api/planner"
	"github.com/FACorreiaa/go-travel-planner/internal/api/plans"
)

// Config contains dependencies needed for the router setup
type Config struct {
	AuthHandler     *auth.HandlerImpl
	PlannerHandler  *planner.HandlerImpl
	GeoHandler      *geo.HandlerImpl
	PlansHandler    *plans.HandlerImpl
	ExpensesHandler *expenses.HandlerImpl
	MapViewHandler  *mapview.HandlerImpl

	AuthenticateMiddleware func(http.Handler) http.Handler
	AllowedOrigins         []string
	PlanRequestsPerMinute  int
}

// SetupRouter initializes and configures the application routes. Server-wide
// middleware (request id, logging, recovery) is applied by the caller.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		api.WriteRawJSON(w, r, http.StatusOK, []byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		// Public generation and routing
		r.Group(func(r chi.Router) {
			if cfg.PlanRequestsPerMinute > 0 {
				r.Use(httprate.Limit(
					cfg.PlanRequestsPerMinute,
					time.Minute,
					httprate.WithKeyFuncs(httprate.KeyByRealIP, httprate.KeyByEndpoint),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						api.ErrorResponse(w, r, http.StatusTooManyRequests, "too many requests")
					}),
				))
			}
			r.Post("/plan", cfg.PlannerHandler.GeneratePlan)
			r.Post("/route", cfg.GeoHandler.ResolveRoute)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Get("/auth/session", cfg.AuthHandler.Session)

			r.Get("/plans", cfg.PlansHandler.ListPlans)
			r.Post("/plans", cfg.PlansHandler.CreatePlan)
			r.Delete("/plans", cfg.PlansHandler.DeletePlan)
			r.Get("/plans/map", cfg.MapViewHandler.PlanMap)

			r.Get("/expenses", cfg.ExpensesHandler.ListExpenses)
			r.Post("/expenses", cfg.ExpensesHandler.CreateExpense)
			r.Put("/expenses", cfg.ExpensesHandler.UpdateExpense)
			r.Delete("/expenses", cfg.ExpensesHandler.DeleteExpense)
			r.Post("/expenses/sync", cfg.ExpensesHandler.SyncExpenses)
			r.Put("/expenses/draft", cfg.ExpensesHandler.SaveDraft)
		})
	})

	return r
}
