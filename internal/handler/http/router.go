package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ecclesia-hub/admin-client/internal/activity"
	"github.com/ecclesia-hub/admin-client/internal/capability"
	"github.com/ecclesia-hub/admin-client/internal/gate"
	"github.com/ecclesia-hub/admin-client/pkg/health"
	"github.com/ecclesia-hub/admin-client/pkg/middleware"
)

// ServiceName labels HTTP metrics and spans.
const ServiceName = "admin-client"

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Session     Session
	Diagnostics Diagnostics
	Resolver    *capability.Resolver
	Gate        *gate.Gate
	Bus         *activity.Bus
	Health      *health.Handler
	Identity    middleware.Identity
	CORS        middleware.CORSConfig
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all admin client routes registered.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(d.CORS))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(d.Logger, d.Identity))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	sessionHandler := NewSessionHandler(d.Session, d.Diagnostics, d.Resolver, d.Logger)
	activityHandler := NewActivityHandler(d.Bus, d.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(ContentTypeJSON)

		r.Post("/auth/login", sessionHandler.Login)
		r.Post("/auth/register", sessionHandler.Register)
		r.Post("/auth/logout", sessionHandler.Logout)

		r.Get("/session", sessionHandler.Get)
		r.Delete("/session/error", sessionHandler.ClearError)
		r.Get("/session/diagnostics", sessionHandler.Diagnostics)

		r.Post("/profile/complete", sessionHandler.CompleteProfile)
		r.Patch("/profile", sessionHandler.UpdateProfile)
		r.Patch("/church", sessionHandler.UpdateChurch)
		r.Post("/church/refresh", sessionHandler.RefreshChurch)

		r.Post("/activity", activityHandler.Post)
	})

	// Screens
	screenHandler := NewScreenHandler(d.Resolver)
	for _, s := range Screens {
		r.With(middleware.NoStore, d.Gate.Require(s.Tier)).Get(s.Path, screenHandler.Render(s.Name))
	}

	return r
}
