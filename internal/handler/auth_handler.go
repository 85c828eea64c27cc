package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/handler/middleware"
	"github.com/printops/mps-console/internal/service"
	"github.com/printops/mps-console/internal/session"
	"github.com/printops/mps-console/pkg/validator"
)

// loginFailedMessage is what the console shows for any credential
// failure; it deliberately does not distinguish unknown user from
// wrong password.
const loginFailedMessage = "Đăng nhập thất bại. Vui lòng kiểm tra tên đăng nhập hoặc mật khẩu."

type AuthHandler struct {
	authService *service.AuthService
	store       *session.CookieStore
	validator   *validator.Validator
}

func NewAuthHandler(authService *service.AuthService, store *session.CookieStore, validator *validator.Validator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		store:       store,
		validator:   validator,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	sess, tokens, err := h.authService.Login(c.Context(), req.Username, req.Password)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && !apiErr.IsAuth() {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": fiber.Map{"message": apiErr.Message},
			})
		}
		// No cookies on a failed login, ever.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": fiber.Map{"message": loginFailedMessage},
		})
	}

	if err := h.store.CreateSessionWithTokens(c, sess, tokens.AccessToken, tokens.RefreshToken); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fiber.Map{"message": "failed to establish session"},
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"user":    sess,
	})
}

// RefreshToken exchanges the refresh cookie for a new token pair.
// POST /api/auth/refresh
//
// Any failure clears the whole cookie triple: a client that cannot
// refresh is logged out, not left with stale credentials.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	refreshToken := h.store.GetRefreshToken(c)
	if refreshToken == "" {
		h.store.DestroySession(c)
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "no refresh token",
		})
	}

	sessionKey := ""
	if sess := h.store.GetSession(c); sess != nil {
		sessionKey = sess.UserID
	}

	resp, err := h.authService.Refresh(c.Context(), sessionKey, refreshToken)
	if err != nil {
		h.store.DestroySession(c)
		middleware.ObserveRefresh("failure")

		status := fiber.StatusUnauthorized
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Code == domain.CodeUpstreamUnreached {
			status = fiber.StatusBadGateway
		}
		return c.Status(status).JSON(fiber.Map{
			"error": "refresh failed",
		})
	}

	h.store.UpdateTokens(c, resp.AccessToken, resp.RefreshToken)
	middleware.ObserveRefresh("success")

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"accessToken": resp.AccessToken,
		"success":     true,
	})
}

// Logout revokes the session and clears all auth cookies.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	accessToken := h.store.GetAccessToken(c)
	h.authService.Logout(c.Context(), accessToken)
	h.store.DestroySession(c)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Logged out successfully",
	})
}

// Profile proxies the caller's profile from the backend, refreshing
// transparently once on 401.
// GET /api/auth/profile
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	return h.proxyWithRefresh(c, func(token string) (interface{}, error) {
		return h.authService.Profile(c.Context(), token)
	})
}

// CustomerManagers proxies the customer-manager listing.
// GET /api/auth/customer-managers
func (h *AuthHandler) CustomerManagers(c *fiber.Ctx) error {
	return h.proxyWithRefresh(c, func(token string) (interface{}, error) {
		return h.authService.CustomerManagers(c.Context(), token)
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ChangePassword updates the password upstream and re-issues the
// session cookie with the default-password flag cleared. The token
// cookies are preserved.
// PATCH /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	sess, ok := c.Locals("session").(*domain.Session)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Unauthorized",
		})
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.validator.Validate(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	accessToken, _ := c.Locals("access_token").(string)
	if err := h.authService.ChangePassword(c.Context(), accessToken, sess.UserID, req.OldPassword, req.NewPassword); err != nil {
		return upstreamError(c, err)
	}

	sess.IsDefaultPassword = false
	if err := h.store.UpdateSession(c, sess); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update session",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Password changed successfully",
	})
}

// Home redirects to the role's landing page.
// GET /
func (h *AuthHandler) Home(c *fiber.Ctx) error {
	sess := h.store.GetSession(c)
	if sess == nil {
		return c.Redirect("/login", fiber.StatusFound)
	}

	switch sess.Role {
	case domain.RoleSystemAdmin:
		return c.Redirect("/dashboard/system", fiber.StatusFound)
	case domain.RoleCustomerAdmin:
		return c.Redirect("/dashboard/customer", fiber.StatusFound)
	default:
		return c.Redirect("/dashboard/me", fiber.StatusFound)
	}
}

// proxyWithRefresh runs the fetch with the caller's access token,
// retrying once behind a transparent refresh. Rotated tokens are
// written back to the cookies; a failed refresh fails closed.
func (h *AuthHandler) proxyWithRefresh(c *fiber.Ctx, fetch func(token string) (interface{}, error)) error {
	accessToken, _ := c.Locals("access_token").(string)
	refreshToken := h.store.GetRefreshToken(c)

	sessionKey := ""
	if sess, ok := c.Locals("session").(*domain.Session); ok && sess != nil {
		sessionKey = sess.UserID
	}

	var result interface{}
	rotated, err := h.authService.WithRefresh(c.Context(), sessionKey, accessToken, refreshToken, func(token string) error {
		out, ferr := fetch(token)
		if ferr != nil {
			return ferr
		}
		result = out
		return nil
	})

	if rotated != nil {
		h.store.UpdateTokens(c, rotated.AccessToken, rotated.RefreshToken)
	}

	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && apiErr.Status == fiber.StatusUnauthorized {
			h.store.DestroySession(c)
		}
		return upstreamError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(result)
}
