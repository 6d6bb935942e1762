// Package session keeps provider sessions on the server side, keyed by an
// opaque id that the browser holds in a cookie.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/equipment-console/internal/cache"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrNoSession is returned when no usable session exists for an id
var ErrNoSession = errors.New("no session")

// Provider is the auth-as-a-service client the store wraps
type Provider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*models.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Store signs users in through the provider and persists their sessions
type Store struct {
	provider  Provider
	cache     cache.Cache
	ttl       time.Duration
	onRefresh []func(ctx context.Context, sid string) error
}

// Option configures a Store
type Option func(*Store)

// OnRefresh registers fn to run after a session is refreshed and stored again,
// so state kept alongside the session can extend its lifetime with it.
func OnRefresh(fn func(ctx context.Context, sid string) error) Option {
	return func(s *Store) { s.onRefresh = append(s.onRefresh, fn) }
}

// NewStore creates a session store. ttl bounds how long an idle session id is kept.
func NewStore(provider Provider, c cache.Cache, ttl time.Duration, opts ...Option) *Store {
	s := &Store{provider: provider, cache: c, ttl: ttl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func key(sid string) string {
	return cache.Key("session", sid)
}

// SignIn authenticates with the provider. The session is not persisted.
func (s *Store) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	return s.provider.SignInWithPassword(ctx, email, password)
}

// Save persists a session under a new id and returns the id
func (s *Store) Save(ctx context.Context, sess *models.Session) (string, error) {
	sid := uuid.NewString()
	if err := s.put(ctx, sid, sess); err != nil {
		return "", err
	}
	return sid, nil
}

func (s *Store) put(ctx context.Context, sid string, sess *models.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.cache.Set(ctx, key(sid), data, s.ttl); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Current returns the session stored under sid. An expired access token is
// refreshed through the provider; if that fails the session is dropped.
func (s *Store) Current(ctx context.Context, sid string) (*models.Session, error) {
	if sid == "" {
		return nil, ErrNoSession
	}

	data, err := s.cache.Get(ctx, key(sid))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Valid() {
		return &sess, nil
	}

	refreshed, err := s.provider.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		log.Info().Err(err).Str("user_id", sess.UserID).Msg("Session refresh failed")
		if derr := s.cache.Delete(ctx, key(sid)); derr != nil {
			log.Warn().Err(derr).Msg("Failed to drop expired session")
		}
		return nil, ErrNoSession
	}
	if err := s.put(ctx, sid, refreshed); err != nil {
		return nil, err
	}
	for _, fn := range s.onRefresh {
		if err := fn(ctx, sid); err != nil {
			log.Warn().Err(err).Str("user_id", refreshed.UserID).Msg("Refresh hook failed")
		}
	}
	return refreshed, nil
}

// SignOut revokes the session at the provider and forgets it locally.
// Provider failures are logged; the local session is removed regardless.
func (s *Store) SignOut(ctx context.Context, sid string) error {
	data, err := s.cache.Get(ctx, key(sid))
	if err == nil {
		var sess models.Session
		if json.Unmarshal(data, &sess) == nil && sess.AccessToken != "" {
			if err := s.provider.SignOut(ctx, sess.AccessToken); err != nil {
				log.Warn().Err(err).Str("user_id", sess.UserID).Msg("Provider sign-out failed")
			}
		}
	}
	if err := s.cache.Delete(ctx, key(sid)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
