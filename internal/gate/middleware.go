package gate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/session"
	"github.com/ecclesia-hub/admin-client/pkg/httputil"
)

// StateSource provides the session snapshot to gate on. LiveState runs the
// lazy expiry check first, so an idle credential is never rendered.
type StateSource interface {
	LiveState(ctx context.Context) session.State
}

type contextKey struct{}

// StateFromContext returns the snapshot the gate decided on, so a screen
// renders exactly what was checked.
func StateFromContext(ctx context.Context) (session.State, bool) {
	st, ok := ctx.Value(contextKey{}).(session.State)
	return st, ok
}

// Gate wraps screen handlers with the access decision.
type Gate struct {
	source StateSource
	logger *slog.Logger
}

// New creates a Gate reading from source.
func New(source StateSource, logger *slog.Logger) *Gate {
	return &Gate{source: source, logger: logger}
}

// Require returns middleware admitting requests only when tier allows the
// current session. Loading answers 202 with Retry-After; redirects answer 302.
func (g *Gate) Require(tier domain.AccessTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			st := g.source.LiveState(r.Context())
			d := Decide(tier, st, r.URL.RequestURI())
			Decisions.WithLabelValues(tier.String(), d.Outcome.String()).Inc()

			switch d.Outcome {
			case Loading:
				w.Header().Set("Retry-After", "1")
				httputil.WriteData(w, http.StatusAccepted, map[string]string{"screen": "loading"})
			case Redirect:
				g.logger.DebugContext(r.Context(), "gate redirect",
					slog.String("tier", tier.String()),
					slog.String("path", r.URL.Path),
					slog.String("target", d.Target),
				)
				http.Redirect(w, r, d.Target, http.StatusFound)
			default:
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, st)))
			}
		})
	}
}
