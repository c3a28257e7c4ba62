package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ecclesia-hub/admin-client/internal/capability"
	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/remote"
	"github.com/ecclesia-hub/admin-client/internal/session"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/httpclient"
	"github.com/ecclesia-hub/admin-client/pkg/httputil"
	"github.com/ecclesia-hub/admin-client/pkg/validator"
)

const maxBodyBytes = 1 << 20

// SessionView is the session as the browser sees it.
type SessionView struct {
	User            *domain.User              `json:"user"`
	Tenant          *domain.TenantAssociation `json:"tenant"`
	Initializing    bool                      `json:"initializing"`
	Busy            bool                      `json:"busy"`
	LastError       string                    `json:"last_error,omitempty"`
	IsAuthenticated bool                      `json:"is_authenticated"`
	Phase           domain.Phase              `json:"phase"`
	TenantLoading   bool                      `json:"tenant_loading"`
	Capabilities    domain.CapabilitySet      `json:"capabilities"`
}

func newSessionView(st session.State, resolver *capability.Resolver) SessionView {
	return SessionView{
		User:            st.User,
		Tenant:          st.Tenant,
		Initializing:    st.Initializing,
		Busy:            st.Busy,
		LastError:       st.LastError,
		IsAuthenticated: st.IsAuthenticated(),
		Phase:           st.Phase(),
		TenantLoading:   st.TenantLoading(),
		Capabilities:    resolver.ResolveWithTenant(st.User, st.Tenant),
	}
}

// AuthResponse is returned by operations that move the session between phases.
type AuthResponse struct {
	Session    SessionView `json:"session"`
	RedirectTo string      `json:"redirect_to"`
}

// upstreamError maps failures of the remote API that carry no usable
// status of their own.
func upstreamError(err error) error {
	var statusErr *httpclient.StatusError
	switch {
	case remote.Classify(err) == remote.KindNetwork:
		return &apperrors.AppError{
			Code:    "UPSTREAM_UNAVAILABLE",
			Message: remote.MsgNoResponse,
			Status:  http.StatusServiceUnavailable,
			Err:     err,
		}
	case errors.As(err, &statusErr):
		return &apperrors.AppError{
			Code:    "UPSTREAM_ERROR",
			Message: remote.MsgUnexpected,
			Status:  http.StatusBadGateway,
			Err:     err,
		}
	}
	return err
}

// decodeJSON decodes and validates the body into dst. On failure it writes
// the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) && !errors.Is(err, validator.ErrEmptyBody) {
			err = apperrors.InvalidInput("invalid request body")
		}
		httputil.WriteError(w, r, err, logger)
		return false
	}
	return true
}
