package session

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/printops/mps-console/internal/domain"
	"github.com/printops/mps-console/pkg/jwt"
)

// Cookie names. The raw tokens stay httpOnly; the session cookie is a
// signed claim set, also httpOnly, decoded only by this gateway.
const (
	CookieAccessToken  = "access_token"
	CookieRefreshToken = "refresh_token"
	CookieSession      = "mps_session"
)

// CookieStore owns the three auth cookies. All mutating operations
// write a complete, consistent triple or clear all three; cookie state
// is never left half-updated.
type CookieStore struct {
	codec         *jwt.SessionCodec
	secure        bool
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
}

func NewCookieStore(codec *jwt.SessionCodec, secure bool, accessMaxAge, refreshMaxAge time.Duration) *CookieStore {
	return &CookieStore{
		codec:         codec,
		secure:        secure,
		accessMaxAge:  accessMaxAge,
		refreshMaxAge: refreshMaxAge,
	}
}

// CreateSessionWithTokens writes the full cookie triple, replacing any
// prior session. The session payload is encoded first; if that fails,
// all three cookies are cleared so no stale mismatched state survives.
func (s *CookieStore) CreateSessionWithTokens(c *fiber.Ctx, session *domain.Session, accessToken, refreshToken string) error {
	encoded, err := s.codec.Encode(session)
	if err != nil {
		s.DestroySession(c)
		return err
	}

	s.setCookie(c, CookieAccessToken, accessToken, s.accessMaxAge)
	s.setCookie(c, CookieRefreshToken, refreshToken, s.refreshMaxAge)
	s.setCookie(c, CookieSession, encoded, s.refreshMaxAge)
	return nil
}

// UpdateTokens rotates the token cookies after a successful refresh.
// The new access token is written unconditionally; the refresh token
// only when the backend rotated it.
func (s *CookieStore) UpdateTokens(c *fiber.Ctx, accessToken, refreshToken string) {
	s.setCookie(c, CookieAccessToken, accessToken, s.accessMaxAge)
	if refreshToken != "" {
		s.setCookie(c, CookieRefreshToken, refreshToken, s.refreshMaxAge)
	}
}

// UpdateSession re-issues only the session cookie (e.g. clearing the
// default-password flag after a password change). Tokens are untouched.
func (s *CookieStore) UpdateSession(c *fiber.Ctx, session *domain.Session) error {
	encoded, err := s.codec.Encode(session)
	if err != nil {
		return err
	}
	s.setCookie(c, CookieSession, encoded, s.refreshMaxAge)
	return nil
}

// GetSession decodes the session cookie. Missing, unparsable or
// tampered cookies all yield nil: fail closed to logged-out, never
// partial data.
func (s *CookieStore) GetSession(c *fiber.Ctx) *domain.Session {
	value := c.Cookies(CookieSession)
	if value == "" {
		return nil
	}

	session, err := s.codec.Decode(value)
	if err != nil {
		return nil
	}
	return session
}

// GetAccessToken returns the raw access token cookie, "" when absent.
func (s *CookieStore) GetAccessToken(c *fiber.Ctx) string {
	return c.Cookies(CookieAccessToken)
}

// GetRefreshToken returns the raw refresh token cookie, "" when absent.
func (s *CookieStore) GetRefreshToken(c *fiber.Ctx) string {
	return c.Cookies(CookieRefreshToken)
}

// DestroySession expires all three auth cookies.
func (s *CookieStore) DestroySession(c *fiber.Ctx) {
	s.expireCookie(c, CookieAccessToken)
	s.expireCookie(c, CookieRefreshToken)
	s.expireCookie(c, CookieSession)
}

func (s *CookieStore) setCookie(c *fiber.Ctx, name, value string, maxAge time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Expires:  time.Now().Add(maxAge),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *CookieStore) expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
