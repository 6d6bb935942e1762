package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims are the claims carried by provider-issued access tokens.
// The subject is the user id.
type AccessTokenClaims struct {
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}
