// Package capability derives the named permissions screens consult from the
// signed-in user's role.
package capability

import (
	"github.com/ecclesia-hub/admin-client/internal/domain"
)

// Resolver maps users to capability sets. It performs no I/O and never
// mutates its inputs, so it is safe to call on every request.
type Resolver struct {
	override *domain.CapabilitySet
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOverride makes every active signed-in user resolve to set instead of
// their role's set. Anonymous and inactive users are not affected.
func WithOverride(set domain.CapabilitySet) Option {
	return func(r *Resolver) {
		r.override = &set
	}
}

// WithOverrideRole is WithOverride with the set of a known role. An empty
// role leaves the resolver unchanged.
func WithOverrideRole(role string) Option {
	return func(r *Resolver) {
		if role == "" {
			return
		}
		set := ForRole(role)
		r.override = &set
	}
}

// NewResolver creates a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Overridden reports whether an override is in effect.
func (r *Resolver) Overridden() bool {
	return r.override != nil
}

// Resolve returns the capabilities of user.
func (r *Resolver) Resolve(user *domain.User) domain.CapabilitySet {
	if user == nil {
		return None()
	}
	return r.resolve(user, user.Role)
}

// ResolveWithTenant prefers the role the tenant association assigns over
// the role on the user record.
func (r *Resolver) ResolveWithTenant(user *domain.User, tenant *domain.TenantAssociation) domain.CapabilitySet {
	if user == nil {
		return None()
	}
	role := user.Role
	if tenant != nil && tenant.Role != "" {
		role = tenant.Role
	}
	return r.resolve(user, role)
}

func (r *Resolver) resolve(user *domain.User, role string) domain.CapabilitySet {
	if !user.Active() {
		return None()
	}
	if r.override != nil {
		return *r.override
	}
	return ForRole(role)
}
