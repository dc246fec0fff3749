package auth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Claims is the payload bound to a bearer token. PlatformAccess is computed
// at login time; store-backed decisions re-query it where staleness matters.
type Claims struct {
	UserID         int64      `json:"user_id"`
	Role           roles.Role `json:"role"`
	PlatformAccess bool       `json:"profile_access"`
}

// TokenManager keeps opaque bearer tokens in Redis. Resolving a token slides
// its expiry so active clients stay logged in.
type TokenManager struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(client *redis.Client, ttl time.Duration) *TokenManager {
	return &TokenManager{client: client, ttl: ttl}
}

func (m *TokenManager) key(token string) string { return "token:" + token }

// Issue mints a bearer token for the claims.
func (m *TokenManager) Issue(ctx context.Context, claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := m.client.Set(ctx, m.key(token), payload, m.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a bearer token back to its actor.
func (m *TokenManager) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	payload, err := m.client.Get(ctx, m.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Actor{}, shared.ErrUnauthenticated
		}
		return shared.Actor{}, err
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return shared.Actor{}, shared.ErrUnauthenticated
	}
	_ = m.client.Expire(ctx, m.key(token), m.ttl).Err()
	return shared.Actor{ID: claims.UserID, Role: claims.Role, PlatformAccess: claims.PlatformAccess}, nil
}

// Revoke deletes a token.
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	err := m.client.Del(ctx, m.key(token)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
