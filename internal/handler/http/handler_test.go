package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ecclesia-hub/admin-client/internal/activity"
	"github.com/ecclesia-hub/admin-client/internal/capability"
	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/internal/gate"
	"github.com/ecclesia-hub/admin-client/internal/session"
	apperrors "github.com/ecclesia-hub/admin-client/pkg/errors"
	"github.com/ecclesia-hub/admin-client/pkg/health"
	"github.com/ecclesia-hub/admin-client/pkg/logger"
	"github.com/ecclesia-hub/admin-client/pkg/middleware"
)

// ============================================================================
// Mocks
// ============================================================================

type mockSession struct {
	mock.Mock
	mu    sync.Mutex
	state session.State
}

func (m *mockSession) State() session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockSession) LiveState(context.Context) session.State {
	return m.State()
}

func (m *mockSession) setState(st session.State) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

// after makes a successful operation move the session to st.
func (m *mockSession) after(st session.State) func(mock.Arguments) {
	return func(mock.Arguments) { m.setState(st) }
}

func (m *mockSession) Login(ctx context.Context, in domain.LoginInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockSession) Register(ctx context.Context, in domain.RegisterInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockSession) CompleteProfile(ctx context.Context, in domain.CompleteProfileInput) error {
	return m.Called(ctx, in).Error(0)
}

func (m *mockSession) RefreshTenantAssociation(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) UpdatePersonalData(ctx context.Context, patch domain.UserPatch) error {
	return m.Called(ctx, patch).Error(0)
}

func (m *mockSession) UpdateTenantData(ctx context.Context, patch domain.ChurchPatch) error {
	return m.Called(ctx, patch).Error(0)
}

func (m *mockSession) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockSession) ClearError() {
	m.Called()
}

type fakeDiagnostics struct {
	token    string
	liveness domain.Liveness
}

func (f fakeDiagnostics) Peek(context.Context) domain.Liveness { return f.liveness }

func (f fakeDiagnostics) ReadToken(context.Context) (string, bool) {
	return f.token, f.token != ""
}

// ============================================================================
// Helpers
// ============================================================================

var (
	anonymous  = session.State{}
	incomplete = session.State{User: &domain.User{ID: 7, Email: "ana@example.com", Role: domain.RoleChurchAdmin}}
	complete   = session.State{
		User:   &domain.User{ID: 7, Email: "ana@example.com", Role: domain.RoleChurchAdmin, ProfileComplete: true},
		Tenant: &domain.TenantAssociation{Church: domain.Church{ID: 3, Name: "Grace Chapel"}, Role: domain.RoleChurchAdmin},
	}
)

type testServer struct {
	handler http.Handler
	session *mockSession
	bus     *activity.Bus
}

func newTestServer(t *testing.T, st session.State, diag Diagnostics) *testServer {
	t.Helper()
	sess := &mockSession{state: st}
	bus := activity.NewBus()
	log := logger.Discard()
	if diag == nil {
		diag = fakeDiagnostics{}
	}
	h := NewRouter(Deps{
		Session:     sess,
		Diagnostics: diag,
		Resolver:    capability.NewResolver(),
		Gate:        gate.New(sess, log),
		Bus:         bus,
		Health:      health.NewHandler(),
		CORS:        middleware.DefaultCORSConfig(),
		Logger:      log,
	})
	return &testServer{handler: h, session: sess, bus: bus}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func decodeAuth(t *testing.T, rec *httptest.ResponseRecorder) AuthResponse {
	t.Helper()
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	return resp
}

const loginBody = `{"email":"a@b.com","password":"secret"}`

var loginInput = domain.LoginInput{Email: "a@b.com", Password: "secret"}

// ============================================================================
// Auth
// ============================================================================

func TestLogin_IncompleteProfileGoesToCompletion(t *testing.T) {
	s := newTestServer(t, anonymous, nil)
	s.session.On("Login", mock.Anything, loginInput).Run(s.session.after(incomplete)).Return(nil).Once()

	rec := s.do(http.MethodPost, "/api/auth/login?redirect=%2Fmembers", loginBody)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAuth(t, rec)
	assert.Equal(t, gate.CompleteProfilePath, resp.RedirectTo)
	assert.Equal(t, domain.PhaseAuthenticatedIncomplete, resp.Session.Phase)
	assert.True(t, resp.Session.IsAuthenticated)
	s.session.AssertExpectations(t)
}

func TestLogin_CompleteProfileHonoursRedirect(t *testing.T) {
	tests := []struct {
		name   string
		target string
		want   string
	}{
		{"no redirect", "/api/auth/login", gate.HomePath},
		{"relative redirect", "/api/auth/login?redirect=" + url.QueryEscape("/members?page=2"), "/members?page=2"},
		{"foreign redirect", "/api/auth/login?redirect=" + url.QueryEscape("//evil.example"), gate.HomePath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, anonymous, nil)
			s.session.On("Login", mock.Anything, loginInput).Run(s.session.after(complete)).Return(nil).Once()

			rec := s.do(http.MethodPost, tt.target, loginBody)

			require.Equal(t, http.StatusOK, rec.Code)
			resp := decodeAuth(t, rec)
			assert.Equal(t, tt.want, resp.RedirectTo)
			assert.True(t, resp.Session.Capabilities.IsAdmin)
			assert.False(t, resp.Session.TenantLoading)
		})
	}
}

func TestLogin_ValidationError(t *testing.T) {
	s := newTestServer(t, anonymous, nil)

	rec := s.do(http.MethodPost, "/api/auth/login", `{"email":"not-an-email"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Contains(t, env.Error.Fields, "email")
	assert.Contains(t, env.Error.Fields, "password")
	s.session.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
}

func TestLogin_MalformedBody(t *testing.T) {
	s := newTestServer(t, anonymous, nil)

	rec := s.do(http.MethodPost, "/api/auth/login", `{"email":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rec).Error.Code)
}

func TestLogin_WrongContentType(t *testing.T) {
	s := newTestServer(t, anonymous, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(loginBody))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()

	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "rejected",
			err:        apperrors.Unauthorized("Invalid email or password"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
			wantMsg:    "Invalid email or password",
		},
		{
			name:       "network",
			err:        &url.Error{Op: "Post", URL: "http://api/auth/login", Err: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "UPSTREAM_UNAVAILABLE",
			wantMsg:    "No response from the server. Check your connection and try again.",
		},
		{
			name:       "closed",
			err:        apperrors.ErrSessionClosed,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "SESSION_CLOSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, anonymous, nil)
			s.session.On("Login", mock.Anything, loginInput).Return(tt.err).Once()

			rec := s.do(http.MethodPost, "/api/auth/login", loginBody)

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, env.Error.Message)
			}
		})
	}
}

func TestRegister_Created(t *testing.T) {
	s := newTestServer(t, anonymous, nil)
	in := domain.RegisterInput{
		FullName:        "Ana Souza",
		Email:           "ana@example.com",
		Password:        "secret123",
		PasswordConfirm: "secret123",
	}
	s.session.On("Register", mock.Anything, in).Run(s.session.after(incomplete)).Return(nil).Once()

	rec := s.do(http.MethodPost, "/api/auth/register",
		`{"full_name":"Ana Souza","email":"ana@example.com","password":"secret123","password_confirm":"secret123"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, gate.CompleteProfilePath, decodeAuth(t, rec).RedirectTo)
}

func TestRegister_PasswordMismatch(t *testing.T) {
	s := newTestServer(t, anonymous, nil)

	rec := s.do(http.MethodPost, "/api/auth/register",
		`{"full_name":"Ana Souza","email":"ana@example.com","password":"secret123","password_confirm":"other"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Error.Fields, "password_confirm")
}

func TestLogout(t *testing.T) {
	s := newTestServer(t, complete, nil)
	s.session.On("Logout", mock.Anything).Run(s.session.after(anonymous)).Return(nil).Once()

	rec := s.do(http.MethodPost, "/api/auth/logout", "")

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAuth(t, rec)
	assert.Equal(t, gate.LoginPath, resp.RedirectTo)
	assert.False(t, resp.Session.IsAuthenticated)
	assert.Equal(t, domain.CapabilitySet{}, resp.Session.Capabilities)
}

// ============================================================================
// Session
// ============================================================================

func TestGetSession(t *testing.T) {
	st := complete
	st.Tenant = nil
	st.LastError = "Church name already taken"
	s := newTestServer(t, st, nil)

	rec := s.do(http.MethodGet, "/api/session", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	var view SessionView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	assert.Equal(t, domain.PhaseAuthenticatedComplete, view.Phase)
	assert.True(t, view.TenantLoading)
	assert.Equal(t, "Church name already taken", view.LastError)
	assert.True(t, view.Capabilities.ManageSettings)
}

func TestClearError(t *testing.T) {
	s := newTestServer(t, incomplete, nil)
	s.session.On("ClearError").Return().Once()

	rec := s.do(http.MethodDelete, "/api/session/error", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	s.session.AssertExpectations(t)
}

func TestDiagnostics(t *testing.T) {
	now := time.Now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "7",
		"iss": "church-api",
		"exp": now.Add(time.Hour).Unix(),
	}).SignedString([]byte("unknown-to-the-client"))
	require.NoError(t, err)

	tests := []struct {
		name       string
		token      string
		wantFormat string
		wantSub    string
	}{
		{"jwt", signed, "jwt", "7"},
		{"opaque", "4f1c2a9e", "opaque", ""},
		{"none", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diag := fakeDiagnostics{token: tt.token, liveness: domain.Liveness{HasToken: tt.token != "", Live: tt.token != ""}}
			s := newTestServer(t, complete, diag)

			rec := s.do(http.MethodGet, "/api/session/diagnostics", "")

			require.Equal(t, http.StatusOK, rec.Code)
			var resp DiagnosticsResponse
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
			assert.Equal(t, tt.wantFormat, resp.TokenFormat)
			assert.Equal(t, tt.token != "", resp.Credential.HasToken)
			if tt.wantSub != "" {
				require.NotNil(t, resp.Claims)
				assert.Equal(t, tt.wantSub, resp.Claims.Subject)
				assert.False(t, resp.Claims.Expired)
			} else {
				assert.Nil(t, resp.Claims)
			}
			assert.NotContains(t, rec.Body.String(), signed)
		})
	}
}

// ============================================================================
// Profile and church
// ============================================================================

func TestCompleteProfile(t *testing.T) {
	s := newTestServer(t, incomplete, nil)
	in := domain.CompleteProfileInput{ChurchName: "Grace Chapel", Role: domain.RolePastor}
	s.session.On("CompleteProfile", mock.Anything, in).Run(s.session.after(complete)).Return(nil).Once()

	rec := s.do(http.MethodPost, "/api/profile/complete", `{"church_name":"Grace Chapel","role":"pastor"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeAuth(t, rec)
	assert.Equal(t, gate.HomePath, resp.RedirectTo)
	assert.Equal(t, domain.PhaseAuthenticatedComplete, resp.Session.Phase)
}

func TestCompleteProfile_UnknownRole(t *testing.T) {
	s := newTestServer(t, incomplete, nil)

	rec := s.do(http.MethodPost, "/api/profile/complete", `{"church_name":"Grace Chapel","role":"bishop"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeEnvelope(t, rec).Error.Fields, "role")
}

func TestUpdateProfile(t *testing.T) {
	s := newTestServer(t, complete, nil)
	name := "New Name"
	updated := complete
	updated.User = complete.User.Clone()
	updated.User.FullName = name
	s.session.On("UpdatePersonalData", mock.Anything, domain.UserPatch{FullName: &name}).
		Run(s.session.after(updated)).Return(nil).Once()

	rec := s.do(http.MethodPatch, "/api/profile", `{"full_name":"New Name"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var view SessionView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	assert.Equal(t, "New Name", view.User.FullName)
}

func TestUpdateProfile_EmptyPatch(t *testing.T) {
	s := newTestServer(t, complete, nil)

	rec := s.do(http.MethodPatch, "/api/profile", `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	s.session.AssertNotCalled(t, "UpdatePersonalData", mock.Anything, mock.Anything)
}

func TestUpdateProfile_Precondition(t *testing.T) {
	s := newTestServer(t, incomplete, nil)
	phone := "+55 11 99999-0000"
	s.session.On("UpdatePersonalData", mock.Anything, domain.UserPatch{Phone: &phone}).
		Return(apperrors.ProfileIncomplete()).Once()

	rec := s.do(http.MethodPatch, "/api/profile", `{"phone":"+55 11 99999-0000"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PROFILE_INCOMPLETE", decodeEnvelope(t, rec).Error.Code)
}

func TestUpdateChurch(t *testing.T) {
	s := newTestServer(t, complete, nil)
	church := "Grace Chapel North"
	s.session.On("UpdateTenantData", mock.Anything, domain.ChurchPatch{Name: &church}).Return(nil).Once()

	rec := s.do(http.MethodPatch, "/api/church", `{"name":"Grace Chapel North"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	s.session.AssertExpectations(t)
}

func TestRefreshChurch_UpstreamError(t *testing.T) {
	s := newTestServer(t, complete, nil)
	s.session.On("RefreshTenantAssociation", mock.Anything).
		Return(&url.Error{Op: "Get", URL: "http://api/churches/current", Err: context.DeadlineExceeded}).Once()

	rec := s.do(http.MethodPost, "/api/church/refresh", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "UPSTREAM_UNAVAILABLE", decodeEnvelope(t, rec).Error.Code)
}

// ============================================================================
// Activity
// ============================================================================

func TestActivity_DispatchesSignals(t *testing.T) {
	s := newTestServer(t, complete, nil)
	var got []activity.Signal
	s.bus.Listen(func(_ context.Context, sig activity.Signal) { got = append(got, sig) })

	rec := s.do(http.MethodPost, "/api/activity", `{"signals":["click","key_press"]}`)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []activity.Signal{activity.Click, activity.KeyPress}, got)
}

func TestActivity_RejectsUnknownSignal(t *testing.T) {
	s := newTestServer(t, complete, nil)
	var got []activity.Signal
	s.bus.Listen(func(_ context.Context, sig activity.Signal) { got = append(got, sig) })

	rec := s.do(http.MethodPost, "/api/activity", `{"signals":["click","hover"]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, got)
}

func TestActivity_EmptyBatch(t *testing.T) {
	s := newTestServer(t, complete, nil)

	rec := s.do(http.MethodPost, "/api/activity", `{"signals":[]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// ============================================================================
// Screens
// ============================================================================

func TestScreens_Gated(t *testing.T) {
	initializing := complete
	initializing.Initializing = true

	tests := []struct {
		name         string
		st           session.State
		path         string
		wantStatus   int
		wantLocation string
	}{
		{"dashboard while initializing", initializing, "/dashboard", http.StatusAccepted, ""},
		{"dashboard anonymous", anonymous, "/dashboard", http.StatusFound, "/login?redirect=%2Fdashboard"},
		{"dashboard incomplete", incomplete, "/dashboard", http.StatusFound, "/complete-profile"},
		{"dashboard complete", complete, "/dashboard", http.StatusOK, ""},
		{"completion incomplete", incomplete, "/complete-profile", http.StatusOK, ""},
		{"completion complete", complete, "/complete-profile", http.StatusFound, "/dashboard"},
		{"login anonymous", anonymous, "/login", http.StatusOK, ""},
		{"login complete", complete, "/login", http.StatusFound, "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.st, nil)

			rec := s.do(http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
		})
	}
}

func TestScreens_RenderView(t *testing.T) {
	s := newTestServer(t, complete, nil)

	rec := s.do(http.MethodGet, "/members", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var view ScreenView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &view))
	assert.Equal(t, "members", view.Screen)
	assert.True(t, view.Session.Capabilities.ViewMembers)
	assert.Equal(t, "Grace Chapel", view.Session.Tenant.Church.Name)
}

// ============================================================================
// Health
// ============================================================================

func TestHealthLive(t *testing.T) {
	s := newTestServer(t, anonymous, nil)

	rec := s.do(http.MethodGet, "/health/live", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}
