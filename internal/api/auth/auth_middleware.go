package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/go-travel-planner/config"
	"github.com/FACorreiaa/go-travel-planner/internal/api"
)

type contextKey string

const (
	UserIDKey contextKey = "userID"
	ClaimsKey contextKey = "claims"
)

const unauthorizedMessage = "Unauthorized"

// Authenticate validates HMAC-signed bearer tokens and stores the caller's
// user ID in the request context.
func Authenticate(logger *slog.Logger, jwtCfg config.JWTConfig) func(next http.Handler) http.Handler {
	secretKey := []byte(jwtCfg.SecretKey)
	if len(secretKey) == 0 {
		logger.Error("FATAL: JWT Secret Key is not configured!")
		panic("JWT Secret Key cannot be empty")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodHS384.Alg(), jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.With(slog.String("middleware", "Authenticate"))

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				l.DebugContext(ctx, "Missing Authorization header")
				api.ErrorResponse(w, r, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			scheme, tokenString, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || tokenString == "" {
				l.WarnContext(ctx, "Invalid Authorization header format")
				api.ErrorResponse(w, r, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			claims := &Claims{}
			_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return secretKey, nil
			})
			if err != nil {
				l.WarnContext(ctx, "Token parsing/validation failed", slog.Any("error", err))
				errMsg := "Invalid or expired token"
				switch {
				case errors.Is(err, jwt.ErrTokenExpired):
					errMsg = "Token has expired"
				case errors.Is(err, jwt.ErrTokenMalformed):
					errMsg = "Malformed token"
				case errors.Is(err, jwt.ErrTokenSignatureInvalid):
					errMsg = "Invalid token signature"
				}
				api.ErrorResponse(w, r, http.StatusUnauthorized, errMsg)
				return
			}

			if jwtCfg.Issuer != "" && claims.Issuer != jwtCfg.Issuer {
				l.WarnContext(ctx, "Token issuer mismatch", slog.String("expected", jwtCfg.Issuer), slog.String("actual", claims.Issuer))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token issuer")
				return
			}
			if !api.VerifyAudience(claims.Audience, jwtCfg.Audience) {
				l.WarnContext(ctx, "Token audience mismatch", slog.String("expected", jwtCfg.Audience), slog.Any("actual", claims.Audience))
				api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid token audience")
				return
			}

			userID := claims.ResolvedUserID()
			if _, err := uuid.Parse(userID); err != nil {
				l.WarnContext(ctx, "Token subject is not a user ID", slog.String("sub", userID))
				api.ErrorResponse(w, r, http.StatusUnauthorized, unauthorizedMessage)
				return
			}

			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func GetClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// RequireUserID writes a 401 and reports false when the request carries no
// authenticated user.
func RequireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetUserIDFromContext(r.Context())
	if !ok || userIDStr == "" {
		api.ErrorResponse(w, r, http.StatusUnauthorized, unauthorizedMessage)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusUnauthorized, unauthorizedMessage)
		return uuid.Nil, false
	}
	return userID, true
}

// WithUserID is used by tests and internal callers to impersonate a user.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID.String())
}
