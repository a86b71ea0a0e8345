package expenses

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
	"github.com/FACorreiaa/go-travel-planner/internal/api/auth"
	"github.com/FACorreiaa/go-travel-planner/internal/types"
)

type HandlerImpl struct {
	expensesService ExpensesService
	logger          *slog.Logger
}

func NewHandlerImpl(expensesService ExpensesService, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		expensesService: expensesService,
		logger:          logger,
	}
}

// queryUUID reads a required uuid query parameter, writing a 400 when it is
// missing or malformed.
func queryUUID(w http.ResponseWriter, r *http.Request, name, missingMsg string) (uuid.UUID, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, missingMsg)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *HandlerImpl) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ExpensesHandler").Start(r.Context(), "ListExpenses", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/expenses"),
	))
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	planID, ok := queryUUID(w, r, "plan_id", "plan_id required")
	if !ok {
		return
	}

	expenses, err := h.expensesService.ListExpenses(ctx, userID, planID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list expenses", slog.String("handler", "ListExpenses"), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.ExpensesResponse{Expenses: expenses})
}

func (h *HandlerImpl) CreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ExpensesHandler").Start(r.Context(), "CreateExpense", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/expenses"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreateExpense"))

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}

	var params types.ExpenseParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if params.PlanID == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "planId required")
		return
	}

	expense, err := h.expensesService.CreateExpense(ctx, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create expense", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.ExpenseResponse{Expense: expense})
}

func (h *HandlerImpl) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ExpensesHandler").Start(r.Context(), "UpdateExpense", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/expenses"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "UpdateExpense"))

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	expenseID, ok := queryUUID(w, r, "id", "Expense ID required")
	if !ok {
		return
	}

	var params types.ExpenseParams
	if err := api.DecodeJSONBody(w, r, &params); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	expense, err := h.expensesService.UpdateExpense(ctx, userID, expenseID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to update expense", slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.ExpenseResponse{Expense: expense})
}

func (h *HandlerImpl) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ExpensesHandler").Start(r.Context(), "DeleteExpense", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/expenses"),
	))
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}
	expenseID, ok := queryUUID(w, r, "id", "Expense ID required")
	if !ok {
		return
	}

	if err := h.expensesService.DeleteExpense(ctx, userID, expenseID); err != nil {
		h.logger.ErrorContext(ctx, "Failed to delete expense", slog.String("handler", "DeleteExpense"), slog.Any("error", err))
		api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, types.SuccessResponse{Success: true})
}

// SyncExpenses reconciles the posted list against the store right away. Item
// level failures still answer 200 with the failed count set.
func (h *HandlerImpl) SyncExpenses(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ExpensesHandler").Start(r.Context(), "SyncExpenses", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/expenses/sync"),
	))
	defer span.End()

	l := h.logger.With(slog.String("handler", "SyncExpenses"))

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}

	var req types.SyncExpensesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		l.WarnContext(ctx, "Failed to decode request body", slog.Any("error", err))
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.expensesService.SyncExpenses(ctx, userID, req)
	if err != nil {
		if resp == nil {
			l.ErrorContext(ctx, "Expense sync failed", slog.Any("error", err))
			api.ErrorResponse(w, r, api.StatusForError(err), err.Error())
			return
		}
		l.WarnContext(ctx, "Expense sync partially failed", slog.Int("failed", resp.Failed), slog.Any("error", err))
	}
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}

// SaveDraft queues a debounced sync and answers 202 immediately.
func (h *HandlerImpl) SaveDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ExpensesHandler").Start(r.Context(), "SaveDraft", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/expenses/draft"),
	))
	defer span.End()

	userID, ok := auth.RequireUserID(w, r)
	if !ok {
		return
	}

	var req types.SyncExpensesRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.expensesService.ScheduleSync(userID, req); err != nil {
		status := api.StatusForError(err)
		if errors.Is(err, ErrSyncStopped) {
			status = http.StatusServiceUnavailable
		}
		h.logger.WarnContext(ctx, "Failed to schedule expense sync", slog.String("handler", "SaveDraft"), slog.Any("error", err))
		api.ErrorResponse(w, r, status, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusAccepted, types.SuccessResponse{Success: true})
}
