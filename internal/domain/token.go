package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the credential pair issued by the upstream MPS backend.
// The access token is short-lived (~15 min); the refresh token's only
// job is to mint a new pair and is rotated on each successful refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// SessionClaims is the claim set signed into the mps_session cookie.
// The raw upstream tokens never appear here.
type SessionClaims struct {
	jwt.RegisteredClaims
	CustomerID        string `json:"customer_id"`
	Role              Role   `json:"role"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	IsDefaultPassword bool   `json:"is_default_password"`
	IsDefaultCustomer bool   `json:"is_default_customer"`
}
