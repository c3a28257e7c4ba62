package gate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/session"
	"github.com/ecclesia-hub/admin-client/pkg/logger"
)

var (
	anonymous  = session.State{}
	incomplete = session.State{User: &domain.User{ID: 1}}
	complete   = session.State{User: &domain.User{ID: 1, ProfileComplete: true}}
)

func TestDecide_Matrix(t *testing.T) {
	const requested = "/members?page=2"
	loginWithReturn := "/login?redirect=%2Fmembers%3Fpage%3D2"

	tests := []struct {
		name string
		tier domain.AccessTier
		st   session.State
		want Decision
	}{
		{"complete tier, anonymous", domain.TierAuthComplete, anonymous, Decision{Redirect, loginWithReturn}},
		{"complete tier, incomplete", domain.TierAuthComplete, incomplete, Decision{Redirect, CompleteProfilePath}},
		{"complete tier, complete", domain.TierAuthComplete, complete, Decision{Outcome: Render}},
		{"incomplete tier, anonymous", domain.TierAuthIncomplete, anonymous, Decision{Redirect, loginWithReturn}},
		{"incomplete tier, complete", domain.TierAuthIncomplete, complete, Decision{Redirect, HomePath}},
		{"incomplete tier, incomplete", domain.TierAuthIncomplete, incomplete, Decision{Outcome: Render}},
		{"public tier, complete", domain.TierPublic, complete, Decision{Redirect, HomePath}},
		{"public tier, incomplete", domain.TierPublic, incomplete, Decision{Outcome: Render}},
		{"public tier, anonymous", domain.TierPublic, anonymous, Decision{Outcome: Render}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.tier, tt.st, requested))
		})
	}
}

func TestDecide_InitializingAlwaysLoads(t *testing.T) {
	tiers := []domain.AccessTier{domain.TierPublic, domain.TierAuthIncomplete, domain.TierAuthComplete}
	states := []session.State{anonymous, incomplete, complete}

	for _, tier := range tiers {
		for _, st := range states {
			st.Initializing = true
			assert.Equal(t, Decision{Outcome: Loading}, Decide(tier, st, "/dashboard"), tier.String())
		}
	}
}

func TestDecide_DoesNotMutateState(t *testing.T) {
	st := session.State{User: &domain.User{ID: 1, FullName: "Ana"}}
	Decide(domain.TierAuthComplete, st, "/dashboard")

	assert.Equal(t, "Ana", st.User.FullName)
	assert.False(t, st.User.ProfileComplete)
}

func TestLoginTarget(t *testing.T) {
	assert.Equal(t, "/login", LoginTarget(""))
	assert.Equal(t, "/login", LoginTarget("/login"))
	assert.Equal(t, "/login", LoginTarget("https://evil.example/"))
	assert.Equal(t, "/login?redirect=%2Fchurch", LoginTarget("/church"))
}

func TestSafeRedirect(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/members", "/members"},
		{"/members?page=2#top", "/members?page=2#top"},
		{"", "/fallback"},
		{"members", "/fallback"},
		{"//evil.example/x", "/fallback"},
		{"/\\evil.example", "/fallback"},
		{"https://evil.example/", "/fallback"},
		{"javascript:alert(1)", "/fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, SafeRedirect(tt.target, "/fallback"))
		})
	}
}

func TestLanding(t *testing.T) {
	assert.Equal(t, LoginPath, Landing(anonymous))
	assert.Equal(t, CompleteProfilePath, Landing(incomplete))
	assert.Equal(t, HomePath, Landing(complete))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "render", Render.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "redirect", Redirect.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

// --- middleware ---

type fixedState session.State

func (f fixedState) LiveState(context.Context) session.State { return session.State(f) }

func serve(t *testing.T, st session.State, tier domain.AccessTier, target string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	called := false
	g := New(fixedState(st), logger.Discard())
	h := g.Require(tier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		got, ok := StateFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, st.User, got.User)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec, called
}

func TestRequire_Render(t *testing.T) {
	rec, called := serve(t, complete, domain.TierAuthComplete, "/dashboard")

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequire_Loading(t *testing.T) {
	st := complete
	st.Initializing = true
	before := testutil.ToFloat64(Decisions.WithLabelValues("authComplete", "loading"))

	rec, called := serve(t, st, domain.TierAuthComplete, "/dashboard")

	assert.False(t, called)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"data":{"screen":"loading"}}`, rec.Body.String())
	assert.Equal(t, before+1, testutil.ToFloat64(Decisions.WithLabelValues("authComplete", "loading")))
}

func TestRequire_RedirectsToLoginWithDestination(t *testing.T) {
	rec, called := serve(t, anonymous, domain.TierAuthComplete, "/members?page=2")

	assert.False(t, called)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?redirect=%2Fmembers%3Fpage%3D2", rec.Header().Get("Location"))
}

func TestRequire_IncompleteUserSentToProfileCompletion(t *testing.T) {
	rec, _ := serve(t, incomplete, domain.TierAuthComplete, "/dashboard")
	assert.Equal(t, CompleteProfilePath, rec.Header().Get("Location"))

	rec, called := serve(t, incomplete, domain.TierAuthIncomplete, "/complete-profile")
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}
