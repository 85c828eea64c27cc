package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/upstream"
	"github.com/printops/mps-console/pkg/blacklist"
	"github.com/printops/mps-console/pkg/jwt"
)

// Custom errors
var (
	ErrInvalidRole = errors.New("upstream returned an unknown role")
	ErrNoRefresh   = errors.New("no refresh token")
)

// AuthService orchestrates the auth flows against the upstream MPS
// backend: login, refresh with rotation, logout and password change.
// It never stores credentials; the backend verifies them.
type AuthService struct {
	upstream       *upstream.Client
	tokenBlacklist *blacklist.TokenBlacklist
	refreshLockTTL time.Duration
}

func NewAuthService(upstreamClient *upstream.Client, tokenBlacklist *blacklist.TokenBlacklist) *AuthService {
	return &AuthService{
		upstream:       upstreamClient,
		tokenBlacklist: tokenBlacklist,
		refreshLockTTL: 10 * time.Second,
	}
}

// Login exchanges credentials upstream and builds the console session.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Session, *domain.TokenPair, error) {
	resp, err := s.upstream.Login(ctx, upstream.LoginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, nil, err
	}

	role := domain.Role(resp.User.Role)
	if !role.Valid() {
		log.Printf("[AUTH_SERVICE] login for %s returned unknown role %q", username, resp.User.Role)
		return nil, nil, ErrInvalidRole
	}

	session := &domain.Session{
		UserID:            resp.User.ID,
		CustomerID:        resp.User.CustomerID,
		Role:              role,
		Username:          resp.User.Username,
		Email:             resp.User.Email,
		IsDefaultPassword: resp.User.IsDefaultPassword,
		IsDefaultCustomer: resp.User.IsDefaultCustomer,
	}

	tokens := &domain.TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}

	return session, tokens, nil
}

// Refresh exchanges the refresh token for a new pair. A per-session
// Redis lock bounds concurrent rotations: contenders wait briefly for
// the winner, then proceed anyway (two successful rotations are a
// benign race; the last rotated refresh token is the one that stays
// valid).
func (s *AuthService) Refresh(ctx context.Context, sessionKey, refreshToken string) (*upstream.RefreshResponse, error) {
	if refreshToken == "" {
		return nil, ErrNoRefresh
	}

	locked := false
	if sessionKey != "" {
		for attempt := 0; attempt < 3; attempt++ {
			ok, err := s.tokenBlacklist.AcquireRefreshLock(ctx, sessionKey, s.refreshLockTTL)
			if err != nil {
				// Redis trouble must not block refresh.
				log.Printf("[AUTH_SERVICE] refresh lock unavailable: %v", err)
				break
			}
			if ok {
				locked = true
				break
			}
			time.Sleep(200 * time.Millisecond)
		}
	}
	if locked {
		defer func() {
			if err := s.tokenBlacklist.ReleaseRefreshLock(context.WithoutCancel(ctx), sessionKey); err != nil {
				log.Printf("[AUTH_SERVICE] failed to release refresh lock: %v", err)
			}
		}()
	}

	return s.upstream.Refresh(ctx, refreshToken)
}

// Logout blacklists the access token for its remaining lifetime and
// revokes the session upstream. Both are best effort; the caller
// destroys the cookies unconditionally.
func (s *AuthService) Logout(ctx context.Context, accessToken string) {
	if accessToken == "" {
		return
	}

	if exp, err := jwt.ParseExpiry(accessToken); err == nil {
		if err := s.tokenBlacklist.AddAccessToken(ctx, accessToken, exp); err != nil {
			log.Printf("[AUTH_SERVICE] failed to blacklist access token: %v", err)
		}
	}

	if err := s.upstream.Logout(ctx, accessToken); err != nil {
		log.Printf("[AUTH_SERVICE] upstream logout failed: %v", err)
	}
}

// ChangePassword remaps the console's oldPassword/newPassword shape to
// the backend's currentPassword/newPassword and invalidates the user's
// outstanding access tokens on success. Current tokens in the caller's
// cookies stay valid; only the session cookie needs re-issuing.
func (s *AuthService) ChangePassword(ctx context.Context, accessToken, userID, oldPassword, newPassword string) error {
	err := s.upstream.ChangePassword(ctx, accessToken, upstream.ChangePasswordRequest{
		CurrentPassword: oldPassword,
		NewPassword:     newPassword,
	})
	if err != nil {
		return err
	}

	// Tokens issued before now die early on other devices.
	if err := s.tokenBlacklist.BlacklistUser(ctx, userID, 24*time.Hour); err != nil {
		log.Printf("[AUTH_SERVICE] failed to blacklist user tokens: %v", err)
	}

	return nil
}

// Profile proxies the profile fetch.
func (s *AuthService) Profile(ctx context.Context, accessToken string) (*upstream.Profile, error) {
	return s.upstream.GetProfile(ctx, accessToken)
}

// CustomerManagers proxies the customer-manager listing.
func (s *AuthService) CustomerManagers(ctx context.Context, accessToken string) ([]upstream.Profile, error) {
	return s.upstream.CustomerManagers(ctx, accessToken)
}

// WithRefresh runs fn with the access token and, on a 401, performs one
// transparent refresh and retries once. The rotated pair (when any) is
// returned so the caller can update cookies.
func (s *AuthService) WithRefresh(ctx context.Context, sessionKey, accessToken, refreshToken string, fn func(token string) error) (*upstream.RefreshResponse, error) {
	err := fn(accessToken)
	if err == nil {
		return nil, nil
	}

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 || refreshToken == "" {
		return nil, err
	}

	rotated, refreshErr := s.Refresh(ctx, sessionKey, refreshToken)
	if refreshErr != nil {
		// Escalate the original auth failure; the caller fails closed.
		return nil, err
	}

	if retryErr := fn(rotated.AccessToken); retryErr != nil {
		return rotated, retryErr
	}
	return rotated, nil
}
