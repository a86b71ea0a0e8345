package auth

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-travel-planner/internal/api"
)

type HandlerImpl struct {
	logger *slog.Logger
}

func NewHandlerImpl(logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{logger: logger}
}

// Session reports who the bearer token belongs to.
func (h *HandlerImpl) Session(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("AuthHandler").Start(r.Context(), "Session", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.HTTPRouteKey.String("/api/auth/session"),
	))
	defer span.End()

	claims, ok := GetClaimsFromContext(ctx)
	if !ok {
		h.logger.WarnContext(ctx, "Session requested without claims", slog.String("handler", "Session"))
		api.ErrorResponse(w, r, http.StatusUnauthorized, unauthorizedMessage)
		return
	}

	resp := SessionResponse{
		UserID: claims.ResolvedUserID(),
		Email:  claims.Email,
		Role:   claims.Role,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	span.SetAttributes(semconv.EnduserIDKey.String(resp.UserID))
	api.WriteJSONResponse(w, r, http.StatusOK, resp)
}
