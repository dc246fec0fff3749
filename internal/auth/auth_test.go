package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lumina-lms/lumina/internal/accounts"
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

type fakeAccounts struct {
	byEmail map[string]*accounts.Account
	byID    map[int64]*accounts.Account
}

func (f *fakeAccounts) GetByEmail(ctx context.Context, email string) (*accounts.Account, error) {
	a, ok := f.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

func (f *fakeAccounts) GetByID(ctx context.Context, id int64) (*accounts.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return a, nil
}

type fakePlatform struct {
	access map[int64]bool
}

func (f *fakePlatform) HasPlatformAccess(ctx context.Context, adminID int64) (bool, error) {
	return f.access[adminID], nil
}

func newTestAuth(t *testing.T) (*Service, *TokenManager, *fakeAccounts, *fakePlatform) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tokens := NewTokenManager(client, time.Hour)
	accountSource := &fakeAccounts{
		byEmail: make(map[string]*accounts.Account),
		byID:    make(map[int64]*accounts.Account),
	}
	platform := &fakePlatform{access: make(map[int64]bool)}
	return NewService(accountSource, platform, tokens), tokens, accountSource, platform
}

func addAccount(t *testing.T, src *fakeAccounts, id int64, role roles.Role, email, password string) *accounts.Account {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	a := &accounts.Account{ID: id, Email: email, Role: role, PasswordHash: string(hash), IsActive: true}
	src.byEmail[email] = a
	src.byID[id] = a
	return a
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	svc, tokens, src, platform := newTestAuth(t)
	ctx := context.Background()
	addAccount(t, src, 2, roles.Administrator, "admin@lumina.io", "s3cret-pass")
	platform.access[2] = true

	token, account, err := svc.Login(ctx, "admin@lumina.io", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, int64(2), account.ID)

	actor, err := tokens.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(2), actor.ID)
	assert.Equal(t, roles.Administrator, actor.Role)
	assert.True(t, actor.PlatformAccess)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, src, _ := newTestAuth(t)
	ctx := context.Background()
	addAccount(t, src, 4, roles.Learner, "learner@lumina.io", "s3cret-pass")

	_, _, err := svc.Login(ctx, "learner@lumina.io", "wrong-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "ghost@lumina.io", "s3cret-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestLoginRejectsInactiveAndPending(t *testing.T) {
	svc, _, src, _ := newTestAuth(t)
	ctx := context.Background()

	a := addAccount(t, src, 4, roles.Learner, "off@lumina.io", "s3cret-pass")
	a.IsActive = false
	_, _, err := svc.Login(ctx, "off@lumina.io", "s3cret-pass")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// Invited account before accepting the invitation has no password yet.
	src.byEmail["pending@lumina.io"] = &accounts.Account{ID: 5, Email: "pending@lumina.io", Role: roles.Curator, IsActive: true}
	_, _, err = svc.Login(ctx, "pending@lumina.io", "anything-at-all")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestPlatformClaimOnlyComputedForAdministrators(t *testing.T) {
	svc, tokens, src, platform := newTestAuth(t)
	ctx := context.Background()
	addAccount(t, src, 4, roles.Learner, "learner@lumina.io", "s3cret-pass")
	platform.access[4] = true

	token, _, err := svc.Login(ctx, "learner@lumina.io", "s3cret-pass")
	require.NoError(t, err)
	actor, err := tokens.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, actor.PlatformAccess)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, tokens, src, _ := newTestAuth(t)
	ctx := context.Background()
	addAccount(t, src, 4, roles.Learner, "learner@lumina.io", "s3cret-pass")

	token, _, err := svc.Login(ctx, "learner@lumina.io", "s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, token))

	_, err = tokens.Resolve(ctx, token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestMiddleware(t *testing.T) {
	svc, tokens, src, _ := newTestAuth(t)
	ctx := context.Background()
	addAccount(t, src, 4, roles.Learner, "learner@lumina.io", "s3cret-pass")
	token, _, err := svc.Login(ctx, "learner@lumina.io", "s3cret-pass")
	require.NoError(t, err)

	var seen shared.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(tokens)(next)

	// Valid token.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), seen.ID)

	// Missing header.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Garbage token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTokenExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	tokens := NewTokenManager(client, time.Minute)
	ctx := context.Background()

	token, err := tokens.Issue(ctx, Claims{UserID: 4, Role: roles.Learner})
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = tokens.Resolve(ctx, token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}
