package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Session is the authenticated-user context issued by the auth provider
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Token returns the session as an oauth2 token
func (s *Session) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}
}

// Valid reports whether the access token is present and not about to expire
func (s *Session) Valid() bool {
	return s != nil && s.Token().Valid()
}
