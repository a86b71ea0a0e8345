package container

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/FACorreiaa/go-travel-planner/app/db"
	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/api/auth"
	"github.com/FACorreiaa/go-travel-planner/internal/api/expenses"
	"github.com/FACorreiaa/go-travel-planner/internal/api/geo"
	"github.com/FACorreiaa/go-travel-planner/internal/api/llm"
	"github.com/FACorreiaa/go-travel-planner/internal/api/mapview"
	"github.com/FACorreiaa/go-travel-planner/internal/api/planner"
	"github.com/FACorreiaa/go-travel-planner/internal/api/plans"
	"github.com/FACorreiaa/go-travel-planner/internal/api/reconcile"
	"github.com/FACorreiaa/go-travel-planner/internal/router"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *slog.Logger
	Pool      *pgxpool.Pool
	Debouncer *reconcile.Debouncer

	AuthHandler     *auth.HandlerImpl
	PlannerHandler  *planner.HandlerImpl
	GeoHandler      *geo.HandlerImpl
	PlansHandler    *plans.HandlerImpl
	ExpensesHandler *expenses.HandlerImpl
	MapViewHandler  *mapview.HandlerImpl
}

// NewContainer wires repositories, services and handlers on top of an open pool.
func NewContainer(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*Container, error) {
	completer, err := llm.NewCompleter(ctx, cfg.LLM)
	if err != nil {
		logger.Error("Failed to initialize LLM client", slog.Any("error", err))
		return nil, err
	}
	logger.Info("LLM client ready", slog.String("provider", completer.Name()))

	// Generation and maps
	geoClient := geo.NewBaiduClient(cfg.Maps, http.DefaultClient, logger)
	generationService := llm.NewGenerationService(completer, logger)
	plannerService := planner.NewPlannerService(generationService, geoClient, logger)

	// Persistence
	plansRepo := plans.NewPostgresPlansRepo(pool, logger)
	plansService := plans.NewPlansService(plansRepo, logger)

	expensesRepo := expenses.NewPostgresExpensesRepo(pool, logger)
	debouncer := reconcile.NewDebouncer(cfg.Expenses.SyncDebounce, logger)
	reconciler := reconcile.NewReconciler(expensesRepo, logger)
	expensesService := expenses.NewExpensesService(expensesRepo, reconciler, debouncer, logger)

	return &Container{
		Config:    cfg,
		Logger:    logger,
		Pool:      pool,
		Debouncer: debouncer,

		AuthHandler:     auth.NewHandlerImpl(logger),
		PlannerHandler:  planner.NewHandlerImpl(plannerService, logger),
		GeoHandler:      geo.NewHandlerImpl(geoClient, logger),
		PlansHandler:    plans.NewHandlerImpl(plansService, logger),
		ExpensesHandler: expenses.NewHandlerImpl(expensesService, logger),
		MapViewHandler:  mapview.NewHandlerImpl(plansService, logger),
	}, nil
}

// RouterConfig exposes the handlers to the router.
func (c *Container) RouterConfig() *router.Config {
	return &router.Config{
		AuthHandler:            c.AuthHandler,
		PlannerHandler:         c.PlannerHandler,
		GeoHandler:             c.GeoHandler,
		PlansHandler:           c.PlansHandler,
		ExpensesHandler:        c.ExpensesHandler,
		MapViewHandler:         c.MapViewHandler,
		AuthenticateMiddleware: auth.Authenticate(c.Logger, c.Config.JWT),
		AllowedOrigins:         c.Config.CORS.AllowedOrigins,
		PlanRequestsPerMinute:  c.Config.RateLimit.PlanRequestsPerMinute,
	}
}

// Close stops pending expense syncs before releasing the pool.
func (c *Container) Close() {
	if c.Debouncer != nil {
		c.Debouncer.Stop()
	}
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}
