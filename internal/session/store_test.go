package session_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/internal/session"
	"github.com/printops/mps-console/pkg/jwt"
)

func newTestStore(t *testing.T) *session.CookieStore {
	t.Helper()
	codec, err := jwt.NewSessionCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "mps-console")
	require.NoError(t, err)
	return session.NewCookieStore(codec, false, 15*time.Minute, 7*24*time.Hour)
}

func testSession() *domain.Session {
	return &domain.Session{
		UserID:     "u-1",
		CustomerID: "c-1",
		Role:       domain.RoleCustomerAdmin,
		Username:   "alice",
		Email:      "alice@example.com",
	}
}

func cookieByName(resp *http.Response, name string) *http.Cookie {
	for _, ck := range resp.Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	return nil
}

func TestCreateSessionWithTokens_SetsCookieTriple(t *testing.T) {
	store := newTestStore(t)

	app := fiber.New()
	app.Post("/login", func(c *fiber.Ctx) error {
		err := store.CreateSessionWithTokens(c, testSession(), "access-raw", "refresh-raw")
		require.NoError(t, err)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	access := cookieByName(resp, session.CookieAccessToken)
	require.NotNil(t, access)
	assert.Equal(t, "access-raw", access.Value)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)

	refresh := cookieByName(resp, session.CookieRefreshToken)
	require.NotNil(t, refresh)
	assert.Equal(t, "refresh-raw", refresh.Value)
	assert.True(t, refresh.HttpOnly)

	sess := cookieByName(resp, session.CookieSession)
	require.NotNil(t, sess)
	assert.True(t, sess.HttpOnly)
	assert.NotEqual(t, "access-raw", sess.Value)
}

func TestGetSession_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	app := fiber.New()
	var sessionCookie string
	app.Post("/login", func(c *fiber.Ctx) error {
		require.NoError(t, store.CreateSessionWithTokens(c, testSession(), "a", "r"))
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/me", func(c *fiber.Ctx) error {
		sess := store.GetSession(c)
		if sess == nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.JSON(sess)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	require.NoError(t, err)
	resp.Body.Close()
	ck := cookieByName(resp, session.CookieSession)
	require.NotNil(t, ck)
	sessionCookie = ck.Value

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieSession, Value: sessionCookie})
	resp, err = app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetSession_FailsClosed(t *testing.T) {
	store := newTestStore(t)

	app := fiber.New()
	app.Get("/me", func(c *fiber.Ctx) error {
		if store.GetSession(c) == nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	tests := []struct {
		name   string
		cookie string
	}{
		{"missing_cookie", ""},
		{"garbage_cookie", "not-a-jwt"},
		{"unsigned_payload", "eyJhbGciOiJub25lIn0.eyJzdWIiOiJ1LTEifQ."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: session.CookieSession, Value: tt.cookie})
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestUpdateTokens_KeepsRefreshWhenNotRotated(t *testing.T) {
	store := newTestStore(t)

	app := fiber.New()
	app.Post("/refresh", func(c *fiber.Ctx) error {
		store.UpdateTokens(c, "new-access", "")
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/refresh", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	access := cookieByName(resp, session.CookieAccessToken)
	require.NotNil(t, access)
	assert.Equal(t, "new-access", access.Value)

	// Refresh cookie untouched when the backend did not rotate it
	assert.Nil(t, cookieByName(resp, session.CookieRefreshToken))
}

func TestDestroySession_ExpiresAllCookies(t *testing.T) {
	store := newTestStore(t)

	app := fiber.New()
	app.Post("/logout", func(c *fiber.Ctx) error {
		store.DestroySession(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/logout", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	for _, name := range []string{session.CookieAccessToken, session.CookieRefreshToken, session.CookieSession} {
		ck := cookieByName(resp, name)
		require.NotNil(t, ck, "cookie %s", name)
		assert.Empty(t, ck.Value)
		assert.True(t, ck.MaxAge < 0 || ck.Expires.Before(time.Now()), "cookie %s not expired", name)
	}
}
