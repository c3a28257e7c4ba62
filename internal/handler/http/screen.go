package http

import (
	"net/http"

	"github.com/ecclesia-hub/admin-client/internal/capability"
	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/gate"
	"github.com/ecclesia-hub/admin-client/pkg/httputil"
)

// Screen is a page of the admin client and the session state it requires.
type Screen struct {
	Path string
	Name string
	Tier domain.AccessTier
}

// Screens lists every page served by the router.
var Screens = []Screen{
	{Path: "/login", Name: "login", Tier: domain.TierPublic},
	{Path: "/register", Name: "register", Tier: domain.TierPublic},
	{Path: "/complete-profile", Name: "complete_profile", Tier: domain.TierAuthIncomplete},
	{Path: "/dashboard", Name: "dashboard", Tier: domain.TierAuthComplete},
	{Path: "/members", Name: "members", Tier: domain.TierAuthComplete},
	{Path: "/visitors", Name: "visitors", Tier: domain.TierAuthComplete},
	{Path: "/activities", Name: "activities", Tier: domain.TierAuthComplete},
	{Path: "/church", Name: "church", Tier: domain.TierAuthComplete},
	{Path: "/settings", Name: "settings", Tier: domain.TierAuthComplete},
	{Path: "/profile", Name: "profile", Tier: domain.TierAuthComplete},
}

// ScreenView is what a rendered screen receives.
type ScreenView struct {
	Screen  string      `json:"screen"`
	Session SessionView `json:"session"`
}

// ScreenHandler renders screens that passed the gate.
type ScreenHandler struct {
	resolver *capability.Resolver
}

// NewScreenHandler creates a new screen HTTP handler.
func NewScreenHandler(resolver *capability.Resolver) *ScreenHandler {
	return &ScreenHandler{resolver: resolver}
}

// Render returns the handler for the named screen. It renders the snapshot
// the gate admitted.
func (h *ScreenHandler) Render(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, _ := gate.StateFromContext(r.Context())
		httputil.WriteData(w, http.StatusOK, ScreenView{
			Screen:  name,
			Session: newSessionView(st, h.resolver),
		})
	}
}
