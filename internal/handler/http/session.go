package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ecclesia-hub/admin-client/internal/capability"
	"github.com/ecclesia-hub/admin-client/internal/credential"
	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/gate"
	"github.com/ecclesia-hub/admin-client/internal/session"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/httputil"
)

// Session is the session container as the HTTP layer uses it.
type Session interface {
	State() session.State
	LiveState(ctx context.Context) session.State
	Login(ctx context.Context, in domain.LoginInput) error
	Register(ctx context.Context, in domain.RegisterInput) error
	CompleteProfile(ctx context.Context, in domain.CompleteProfileInput) error
	RefreshTenantAssociation(ctx context.Context) error
	UpdatePersonalData(ctx context.Context, patch domain.UserPatch) error
	UpdateTenantData(ctx context.Context, patch domain.ChurchPatch) error
	Logout(ctx context.Context) error
	ClearError()
}

// Diagnostics reads the stored credential without side effects.
type Diagnostics interface {
	Peek(ctx context.Context) domain.Liveness
	ReadToken(ctx context.Context) (string, bool)
}

// SessionHandler handles the session JSON API.
type SessionHandler struct {
	session     Session
	diagnostics Diagnostics
	resolver    *capability.Resolver
	logger      *slog.Logger
	now         func() time.Time
}

// NewSessionHandler creates a new session HTTP handler.
func NewSessionHandler(sess Session, diag Diagnostics, resolver *capability.Resolver, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		session:     sess,
		diagnostics: diag,
		resolver:    resolver,
		logger:      logger,
		now:         time.Now,
	}
}

// Login handles POST /api/auth/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in domain.LoginInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.session.Login(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAuth(w, r, http.StatusOK)
}

// Register handles POST /api/auth/register
func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in domain.RegisterInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.session.Register(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAuth(w, r, http.StatusCreated)
}

// Logout handles POST /api/auth/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	_ = h.session.Logout(r.Context())
	httputil.WriteData(w, http.StatusOK, AuthResponse{
		Session:    newSessionView(h.session.State(), h.resolver),
		RedirectTo: gate.LoginPath,
	})
}

// Get handles GET /api/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, newSessionView(h.session.LiveState(r.Context()), h.resolver))
}

// ClearError handles DELETE /api/session/error
func (h *SessionHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	h.session.ClearError()
	httputil.WriteData(w, http.StatusOK, newSessionView(h.session.State(), h.resolver))
}

// DiagnosticsResponse describes the stored credential.
type DiagnosticsResponse struct {
	Credential  domain.Liveness         `json:"credential"`
	TokenFormat string                  `json:"token_format,omitempty"`
	Claims      *credential.TokenClaims `json:"claims,omitempty"`
	Overridden  bool                    `json:"capability_override"`
}

// Diagnostics handles GET /api/session/diagnostics. It never modifies storage.
func (h *SessionHandler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := DiagnosticsResponse{
		Credential: h.diagnostics.Peek(ctx),
		Overridden: h.resolver.Overridden(),
	}

	if token, ok := h.diagnostics.ReadToken(ctx); ok {
		claims, err := credential.InspectToken(token, h.now())
		switch {
		case err == nil:
			resp.TokenFormat = "jwt"
			resp.Claims = claims
		case errors.Is(err, credential.ErrOpaqueToken):
			resp.TokenFormat = "opaque"
		default:
			resp.TokenFormat = "invalid"
			h.logger.DebugContext(ctx, "stored token could not be inspected", slog.String("error", err.Error()))
		}
	}

	httputil.WriteData(w, http.StatusOK, resp)
}

// CompleteProfile handles POST /api/profile/complete
func (h *SessionHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	var in domain.CompleteProfileInput
	if !h.decode(w, r, &in) {
		return
	}
	if err := h.session.CompleteProfile(r.Context(), in); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeAuth(w, r, http.StatusOK)
}

// UpdateProfile handles PATCH /api/profile
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch domain.UserPatch
	if !h.decode(w, r, &patch) {
		return
	}
	if patch.Empty() {
		httputil.WriteError(w, r, apperrors.InvalidInput("nothing to update"), h.logger)
		return
	}
	if err := h.session.UpdatePersonalData(r.Context(), patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Get(w, r)
}

// UpdateChurch handles PATCH /api/church
func (h *SessionHandler) UpdateChurch(w http.ResponseWriter, r *http.Request) {
	var patch domain.ChurchPatch
	if !h.decode(w, r, &patch) {
		return
	}
	if patch.Empty() {
		httputil.WriteError(w, r, apperrors.InvalidInput("nothing to update"), h.logger)
		return
	}
	if err := h.session.UpdateTenantData(r.Context(), patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Get(w, r)
}

// RefreshChurch handles POST /api/church/refresh
func (h *SessionHandler) RefreshChurch(w http.ResponseWriter, r *http.Request) {
	if err := h.session.RefreshTenantAssociation(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.Get(w, r)
}

func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeJSON(w, r, dst, h.logger)
}

// writeAuth answers with the new session and where the browser goes next.
// A requested destination is honoured only once the profile is complete.
func (h *SessionHandler) writeAuth(w http.ResponseWriter, r *http.Request, status int) {
	st := h.session.State()
	target := gate.Landing(st)
	if st.ProfileComplete() {
		target = gate.SafeRedirect(r.URL.Query().Get(gate.RedirectParam), gate.HomePath)
	}
	httputil.WriteData(w, status, AuthResponse{
		Session:    newSessionView(st, h.resolver),
		RedirectTo: target,
	})
}

func (h *SessionHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, upstreamError(err), h.logger)
}
