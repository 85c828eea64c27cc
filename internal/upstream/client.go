package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/printops/mps-console/internal/domain"
)

// Client talks to the external MPS backend. It is the only place raw
// transport errors exist; everything it returns is either a decoded
// payload or a *domain.APIError built at this boundary.
//
// The client is constructed once and injected; no package-level state.
type Client struct {
	client  *http.Client
	baseURL string
}

type Config struct {
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream base URL is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
	}, nil
}

// LoginRequest is the credential payload sent to /auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginUser is the identity block the backend returns on login.
type LoginUser struct {
	ID                string `json:"id"`
	CustomerID        string `json:"customer_id"`
	Role              string `json:"role"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	IsDefaultPassword bool   `json:"is_default_password"`
	IsDefaultCustomer bool   `json:"is_default_customer"`
}

// LoginResponse bundles the token pair and identity from /auth/login.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	User         LoginUser `json:"user"`
}

// RefreshResponse is the payload of /auth/refresh. RefreshToken is
// empty when the backend chose not to rotate.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Profile is the caller's profile as served by /auth/profile.
type Profile struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	Role       string `json:"role"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ChangePasswordRequest is the backend's password-change shape. The
// console API takes oldPassword/newPassword and remaps here.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login exchanges credentials for a token pair and identity.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, &domain.APIError{
			Status:  http.StatusBadGateway,
			Code:    domain.CodeUpstreamFailed,
			Message: "login response missing tokens",
		}
	}
	return &resp, nil
}

// Refresh exchanges a refresh token for a new pair. The access token is
// required in the response; a missing one is an upstream failure and
// the caller must fail closed.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var resp RefreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, &domain.APIError{
			Status:  http.StatusUnauthorized,
			Code:    domain.CodeUnauthenticated,
			Message: "refresh response missing access token",
		}
	}
	return &resp, nil
}

// Logout revokes the session upstream. Best effort; callers clear
// cookies regardless.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", accessToken, nil, nil)
}

// GetProfile fetches the caller's profile with their bearer token.
func (c *Client) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	var profile Profile
	if err := c.do(ctx, http.MethodGet, "/auth/profile", accessToken, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ChangePassword updates the caller's password upstream.
func (c *Client) ChangePassword(ctx context.Context, accessToken string, req ChangePasswordRequest) error {
	return c.do(ctx, http.MethodPatch, "/auth/change-password", accessToken, req, nil)
}

// CustomerManagers lists the manager accounts for a customer.
func (c *Client) CustomerManagers(ctx context.Context, accessToken string) ([]Profile, error) {
	var managers []Profile
	if err := c.do(ctx, http.MethodGet, "/auth/customer-managers", accessToken, nil, &managers); err != nil {
		return nil, err
	}
	return managers, nil
}

// upstreamError mirrors the backend's error envelope.
type upstreamError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// do issues one request and decodes the response into out (when non-nil).
// Non-2xx responses become *domain.APIError with the upstream message
// forwarded where the payload is structured.
func (c *Client) do(ctx context.Context, method, path, accessToken string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewBuffer(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &domain.APIError{
			Status:  http.StatusBadGateway,
			Code:    domain.CodeUpstreamUnreached,
			Message: err.Error(),
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.APIError{
			Status:  http.StatusBadGateway,
			Code:    domain.CodeUpstreamFailed,
			Message: "failed to read upstream response",
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.apiError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &domain.APIError{
				Status:  http.StatusBadGateway,
				Code:    domain.CodeUpstreamFailed,
				Message: "failed to decode upstream response",
			}
		}
	}

	return nil
}

func (c *Client) apiError(status int, data []byte) *domain.APIError {
	code := domain.CodeUpstreamFailed
	switch status {
	case http.StatusUnauthorized:
		code = domain.CodeUnauthenticated
	case http.StatusForbidden:
		code = domain.CodeForbidden
	}

	// Forward the upstream message when the payload is structured.
	var envelope upstreamError
	message := http.StatusText(status)
	if err := json.Unmarshal(data, &envelope); err == nil {
		if envelope.Error.Message != "" {
			message = envelope.Error.Message
			if envelope.Error.Code != "" {
				code = envelope.Error.Code
			}
		} else if envelope.Message != "" {
			message = envelope.Message
		}
	}

	return &domain.APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}
