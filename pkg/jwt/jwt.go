package jwt

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/printops/mps-console/internal/domain"
)

var (
	ErrInvalidSigningMethod = errors.New("unexpected signing method")
	ErrInvalidToken         = errors.New("invalid token")
	ErrNoExpiry             = errors.New("token has no expiry claim")
)

// SessionCodec signs and verifies the mps_session cookie payload.
// The upstream access/refresh tokens are opaque to it; it only signs
// this gateway's own session claims with a shared HMAC secret.
type SessionCodec struct {
	secret []byte
	expiry time.Duration
	issuer string
}

func NewSessionCodec(secret []byte, expiry time.Duration, issuer string) (*SessionCodec, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	return &SessionCodec{
		secret: secret,
		expiry: expiry,
		issuer: issuer,
	}, nil
}

// Encode signs the session into a compact JWS string.
func (c *SessionCodec) Encode(session *domain.Session) (string, error) {
	now := time.Now()

	claims := domain.SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   session.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		CustomerID:        session.CustomerID,
		Role:              session.Role,
		Username:          session.Username,
		Email:             session.Email,
		IsDefaultPassword: session.IsDefaultPassword,
		IsDefaultCustomer: session.IsDefaultCustomer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the signature and returns the session. Any parse or
// signature failure yields an error; callers treat that as "no session".
func (c *SessionCodec) Decode(value string) (*domain.Session, error) {
	token, err := jwt.ParseWithClaims(value, &domain.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSigningMethod
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*domain.SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return &domain.Session{
		UserID:            claims.Subject,
		CustomerID:        claims.CustomerID,
		Role:              claims.Role,
		Username:          claims.Username,
		Email:             claims.Email,
		IsDefaultPassword: claims.IsDefaultPassword,
		IsDefaultCustomer: claims.IsDefaultCustomer,
	}, nil
}

// ParseExpiry extracts the exp claim from a JWT without verifying the
// signature. The refresh scheduler only needs the timestamp; the
// upstream backend is the party that verifies the token. Malformed
// tokens or a missing exp claim return ErrNoExpiry.
func ParseExpiry(token string) (time.Time, error) {
	exp, _, err := parseUnverifiedTimes(token)
	return exp, err
}

// ParseIssuedAt extracts the iat claim without verifying the signature.
// Used by the auth middleware for the user-level blacklist check.
func ParseIssuedAt(token string) (time.Time, error) {
	_, iat, err := parseUnverifiedTimes(token)
	if err != nil {
		return time.Time{}, err
	}
	if iat.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return iat, nil
}

func parseUnverifiedTimes(token string) (exp, iat time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return time.Time{}, time.Time{}, ErrNoExpiry
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, ErrNoExpiry
	}

	var claims struct {
		Exp int64 `json:"exp"`
		Iat int64 `json:"iat"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == 0 {
		return time.Time{}, time.Time{}, ErrNoExpiry
	}

	if claims.Iat != 0 {
		iat = time.Unix(claims.Iat, 0)
	}
	return time.Unix(claims.Exp, 0), iat, nil
}
