package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecclesia-hub/admin-client/pkg/logger"
)

// Identity reports who the request acts for. Either value may be empty.
type Identity func(ctx context.Context) (userID, churchID string)

// RequestLogger returns middleware that builds a request-scoped logger enriched
// with correlation_id, user_id, church_id, trace_id, and span_id, then stores
// it in context via logger.NewContext.
//
// Mount it after RequestLogging and Tracing so both ids are already in context.
func RequestLogger(base *slog.Logger, identity Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if identity != nil {
				userID, churchID := identity(ctx)
				if userID != "" {
					ctx = logger.WithUserID(ctx, userID)
				}
				if churchID != "" {
					ctx = logger.WithChurchID(ctx, churchID)
				}
			}

			enriched := logger.WithContext(ctx, base)
			ctx = logger.NewContext(ctx, enriched)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
