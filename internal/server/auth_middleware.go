package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"planora-backend/internal/domain"
	"planora-backend/internal/server/authctx"
	"planora-backend/internal/service"
)

// BusinessHeader selects the tenant for one request.
const BusinessHeader = "X-Business-ID"

// IdentityResolver turns a bearer token and an optional business selector into an Identity.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string, businessID *int64) (*domain.Identity, error)
}

// AuthMiddleware resolves the caller and stores the identity in the request context.
func AuthMiddleware(resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var token string
			if auth := r.Header.Get("Authorization"); auth != "" {
				if !strings.HasPrefix(auth, "Bearer ") {
					writeAuthError(w, http.StatusUnauthorized, "missing bearer token")
					return
				}
				token = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			}

			var businessID *int64
			if raw := r.Header.Get(BusinessHeader); raw != "" {
				id, err := strconv.ParseInt(raw, 10, 64)
				if err != nil || id <= 0 {
					writeAuthError(w, http.StatusBadRequest, "invalid "+BusinessHeader+" header")
					return
				}
				businessID = &id
			}

			id, err := resolver.Resolve(r.Context(), token, businessID)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrUnauthenticated):
					writeAuthError(w, http.StatusUnauthorized, err.Error())
				case errors.Is(err, domain.ErrForbidden):
					writeAuthError(w, http.StatusForbidden, err.Error())
				default:
					logger.Error("identity resolution failed", "err", err)
					writeAuthError(w, http.StatusInternalServerError, "internal error")
				}
				return
			}
			ctx := authctx.WithIdentity(r.Context(), *id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole ensures the caller has one of the allowed roles. With no roles
// any authenticated caller passes.
func RequireRole(roles ...domain.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := authctx.FromContext(r.Context())
			if err := service.Authorize(id, roles...); err != nil {
				status := http.StatusForbidden
				if errors.Is(err, domain.ErrUnauthenticated) {
					status = http.StatusUnauthorized
				}
				writeAuthError(w, status, err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
