package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina/internal/shared"
)

func newTestTokenStore(t *testing.T) (*TokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTokenStore(client), mr
}

func TestInvitationTokenRoundTrip(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.IssueInvitation(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	id, err := store.ConsumeInvitation(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	// Consumed tokens are gone.
	_, err = store.ConsumeInvitation(ctx, token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestInvitationTokenExpires(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	token, err := store.IssueInvitation(ctx, 42)
	require.NoError(t, err)

	mr.FastForward(invitationTTL + time.Minute)
	_, err = store.ConsumeInvitation(ctx, token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestSecurityCodeExchange(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	code, err := store.IssueSecurityCode(ctx, "learner@lumina.io")
	require.NoError(t, err)
	require.Len(t, code, 6)

	_, err = store.ExchangeSecurityCode(ctx, "learner@lumina.io", "wrong!", 7)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	token, err := store.ExchangeSecurityCode(ctx, "learner@lumina.io", code, 7)
	require.NoError(t, err)

	// The code is single use.
	_, err = store.ExchangeSecurityCode(ctx, "learner@lumina.io", code, 7)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	id, err := store.ConsumeRecovery(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestSecurityCodeReissueOverwrites(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	first, err := store.IssueSecurityCode(ctx, "learner@lumina.io")
	require.NoError(t, err)
	second, err := store.IssueSecurityCode(ctx, "learner@lumina.io")
	require.NoError(t, err)

	if first != second {
		_, err = store.ExchangeSecurityCode(ctx, "learner@lumina.io", first, 7)
		assert.ErrorIs(t, err, shared.ErrUnauthenticated)
	}
	_, err = store.ExchangeSecurityCode(ctx, "learner@lumina.io", second, 7)
	assert.NoError(t, err)
}

func TestRecoveryTokenExpires(t *testing.T) {
	store, mr := newTestTokenStore(t)
	ctx := context.Background()

	code, err := store.IssueSecurityCode(ctx, "learner@lumina.io")
	require.NoError(t, err)
	token, err := store.ExchangeSecurityCode(ctx, "learner@lumina.io", code, 7)
	require.NoError(t, err)

	mr.FastForward(recoveryTTL + time.Minute)
	_, err = store.ConsumeRecovery(ctx, token)
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)
}
