package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ecclesia-hub/admin-client/internal/domain"
	"github.com/ecclesia-hub/admin-client/pkg/httpclient"
	"github.com/ecclesia-hub/admin-client/pkg/logger"
)

// ServiceName identifies the remote API in errors, logs and breaker metrics.
const ServiceName = "church-api"

// HTTPDoer executes HTTP requests. Both httpclient.Client and
// httpclient.CircuitBreakerClient satisfy it.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// AuthResult is the response of login and registration.
type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// Client talks to the remote church-management API.
type Client struct {
	http    HTTPDoer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates an API client rooted at baseURL (for example
// http://localhost:8000/api).
func NewClient(doer HTTPDoer, baseURL string, logger *slog.Logger) *Client {
	return &Client{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Login exchanges email and password for a token and user.
func (c *Client) Login(ctx context.Context, in domain.LoginInput) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", in, &out); err != nil {
		return nil, err
	}
	return validAuth(&out, "login")
}

// Register creates an account. The returned user has not completed onboarding.
func (c *Client) Register(ctx context.Context, in domain.RegisterInput) (*AuthResult, error) {
	var out AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", in, &out); err != nil {
		return nil, err
	}
	return validAuth(&out, "register")
}

// CompleteProfile submits onboarding data and returns the updated user.
func (c *Client) CompleteProfile(ctx context.Context, token string, in domain.CompleteProfileInput) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodPost, "/auth/complete-profile", token, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CurrentTenant fetches the church the user is attached to.
func (c *Client) CurrentTenant(ctx context.Context, token string) (*domain.TenantAssociation, error) {
	var out domain.TenantAssociation
	if err := c.do(ctx, http.MethodGet, "/churches/current", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePersonalData patches the user and returns the server's full record.
func (c *Client) UpdatePersonalData(ctx context.Context, token string, patch domain.UserPatch) (*domain.User, error) {
	var out domain.User
	if err := c.do(ctx, http.MethodPatch, "/users/me", token, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTenantData patches the church and returns the server's full association.
func (c *Client) UpdateTenantData(ctx context.Context, token string, patch domain.ChurchPatch) (*domain.TenantAssociation, error) {
	var out domain.TenantAssociation
	if err := c.do(ctx, http.MethodPatch, "/churches/current", token, patch, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates token on the server.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call %s %s %s: %w", ServiceName, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := httpclient.ParseResponseError(resp, ServiceName)
		c.logger.DebugContext(ctx, "remote api rejected request",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func validAuth(out *AuthResult, op string) (*AuthResult, error) {
	if out.Token == "" || out.User == nil {
		return nil, fmt.Errorf("%s response without token or user", op)
	}
	return out, nil
}
