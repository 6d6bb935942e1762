// Package authprovider talks to a GoTrue compatible auth-as-a-service
// endpoint (Supabase Auth) for password sign-in, token refresh and sign-out.
package authprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/otcheredev/equipment-console/internal/models"
)

var (
	// ErrInvalidCredentials is returned when the provider rejects an email/password pair
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrSessionExpired is returned when a refresh token is no longer accepted
	ErrSessionExpired = errors.New("session expired")
)

// Error is a provider failure that is not a credential rejection
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth provider returned status %d: %s", e.StatusCode, e.Message)
}

// Client is a GoTrue REST client
type Client struct {
	client  *http.Client
	baseURL string
	anonKey string
}

// NewClient creates a new auth provider client. baseURL is the project URL,
// for example https://xyz.supabase.co.
func NewClient(baseURL, anonKey string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL + "/auth/v1",
		anonKey: anonKey,
	}
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshGrant struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignInWithPassword exchanges an email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	sess, err := c.token(ctx, "password", passwordGrant{Email: email, Password: password})
	var perr *Error
	if errors.As(err, &perr) && (perr.StatusCode == http.StatusBadRequest || perr.StatusCode == http.StatusUnauthorized) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, perr.Message)
	}
	return sess, err
}

// Refresh exchanges a refresh token for a new session
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionExpired
	}
	sess, err := c.token(ctx, "refresh_token", refreshGrant{RefreshToken: refreshToken})
	var perr *Error
	if errors.As(err, &perr) && (perr.StatusCode == http.StatusBadRequest || perr.StatusCode == http.StatusUnauthorized) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExpired, perr.Message)
	}
	return sess, err
}

// SignOut revokes the session's refresh tokens at the provider
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	// an already revoked token is not an error for sign-out
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusUnauthorized {
		return readError(resp)
	}
	return nil
}

func (c *Client) token(ctx context.Context, grantType string, body any) (*models.Session, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	tokenURL := c.baseURL + "/token?" + url.Values{"grant_type": {grantType}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readError(resp)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return sessionFromToken(tr, time.Now())
}

// sessionFromToken builds a session, falling back to the access token claims
// for the user id, email and expiry when the response omits them.
func sessionFromToken(tr tokenResponse, now time.Time) (*models.Session, error) {
	if tr.AccessToken == "" {
		return nil, errors.New("auth provider returned no access token")
	}

	sess := &models.Session{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		TokenType:    tr.TokenType,
		UserID:       tr.User.ID,
		Email:        tr.User.Email,
	}
	if sess.TokenType == "" {
		sess.TokenType = "bearer"
	}

	switch {
	case tr.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tr.ExpiresAt, 0)
	case tr.ExpiresIn > 0:
		sess.ExpiresAt = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	if sess.UserID == "" || sess.ExpiresAt.IsZero() {
		claims, err := ParseClaims(tr.AccessToken)
		if err != nil {
			return nil, err
		}
		if sess.UserID == "" {
			sess.UserID = claims.Subject
		}
		if sess.Email == "" {
			sess.Email = claims.Email
		}
		if sess.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
			sess.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	if sess.UserID == "" {
		return nil, errors.New("auth provider returned no user id")
	}
	return sess, nil
}

// ParseClaims reads the claims of a provider access token without verifying
// its signature. The console only forwards the token; the API verifies it.
func ParseClaims(accessToken string) (*models.AccessTokenClaims, error) {
	claims := &models.AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}
	return claims, nil
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := http.StatusText(resp.StatusCode)
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		for _, m := range []string{eb.ErrorDescription, eb.Msg, eb.Message, eb.Error} {
			if m != "" {
				msg = m
				break
			}
		}
	}
	return &Error{StatusCode: resp.StatusCode, Message: msg}
}
