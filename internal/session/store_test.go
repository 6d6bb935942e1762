package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otcheredev/equipment-console/internal/cache"
	"github.com/otcheredev/equipment-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	refreshed  *models.Session
	refreshErr error
	refreshes  int
	signOuts   []string
}

func (f *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*models.Session, error) {
	return &models.Session{AccessToken: "a", UserID: "u", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeProvider) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	f.refreshes++
	return f.refreshed, f.refreshErr
}

func (f *fakeProvider) SignOut(ctx context.Context, accessToken string) error {
	f.signOuts = append(f.signOuts, accessToken)
	return nil
}

func newStore(t *testing.T, p Provider) *Store {
	t.Helper()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })
	return NewStore(p, c, time.Hour)
}

func TestSaveAndCurrent(t *testing.T) {
	p := &fakeProvider{}
	s := newStore(t, p)
	ctx := context.Background()

	sess := &models.Session{AccessToken: "access", RefreshToken: "r", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	sid, err := s.Save(ctx, sess)
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	got, err := s.Current(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "access", got.AccessToken)
	assert.Equal(t, "user-1", got.UserID)
	assert.Zero(t, p.refreshes)

	_, err = s.Current(ctx, "unknown")
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = s.Current(ctx, "")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestCurrentRefreshesExpiredSession(t *testing.T) {
	p := &fakeProvider{refreshed: &models.Session{AccessToken: "fresh", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}}
	s := newStore(t, p)
	ctx := context.Background()

	sid, err := s.Save(ctx, &models.Session{AccessToken: "old", RefreshToken: "r", UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	got, err := s.Current(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)

	got, err = s.Current(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.AccessToken)
	assert.Equal(t, 1, p.refreshes)
}

func TestCurrentDropsSessionWhenRefreshFails(t *testing.T) {
	p := &fakeProvider{refreshErr: errors.New("invalid refresh token")}
	s := newStore(t, p)
	ctx := context.Background()

	sid, err := s.Save(ctx, &models.Session{AccessToken: "old", RefreshToken: "r", UserID: "user-1", ExpiresAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)

	_, err = s.Current(ctx, sid)
	require.ErrorIs(t, err, ErrNoSession)

	_, err = s.Current(ctx, sid)
	require.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, 1, p.refreshes)
}

func TestSignOut(t *testing.T) {
	p := &fakeProvider{}
	s := newStore(t, p)
	ctx := context.Background()

	sid, err := s.Save(ctx, &models.Session{AccessToken: "access", UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, s.SignOut(ctx, sid))
	assert.Equal(t, []string{"access"}, p.signOuts)

	_, err = s.Current(ctx, sid)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestContextProvider(t *testing.T) {
	sess, err := ContextProvider{}.Session(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sess)

	ctx := WithSession(context.Background(), "sid-1", &models.Session{AccessToken: "a"})
	sess, err = ContextProvider{}.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", sess.AccessToken)

	sid, ok := IDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "sid-1", sid)
}
