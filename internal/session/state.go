package session

import "github.com/ecclesia-hub/admin-client/internal/domain"

// State is an immutable snapshot of the session. Derived values are
// computed from it, never stored alongside it.
type State struct {
	User         *domain.User              `json:"user"`
	Tenant       *domain.TenantAssociation `json:"tenant"`
	Initializing bool                      `json:"initializing"`
	Busy         bool                      `json:"busy"`
	LastError    string                    `json:"last_error,omitempty"`
}

// IsAuthenticated reports whether a user is signed in.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// ProfileComplete reports whether the signed-in user finished onboarding.
func (s State) ProfileComplete() bool {
	return s.User != nil && s.User.ProfileComplete
}

// TenantLoading reports whether the church association of a complete user
// has not arrived yet. Screens treat it as loading, not as an error.
func (s State) TenantLoading() bool {
	return s.ProfileComplete() && s.Tenant == nil
}

// Phase projects the snapshot onto the lifecycle states.
func (s State) Phase() domain.Phase {
	switch {
	case s.Initializing:
		return domain.PhaseInitializing
	case s.User == nil:
		return domain.PhaseUnauthenticated
	case !s.User.ProfileComplete:
		return domain.PhaseAuthenticatedIncomplete
	default:
		return domain.PhaseAuthenticatedComplete
	}
}
