package accounts

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lumina-lms/lumina/internal/shared"
)

const (
	invitationTTL = 7 * 24 * time.Hour
	codeTTL       = 15 * time.Minute
	recoveryTTL   = 10 * time.Minute
)

// TokenStore keeps single-use invitation and recovery tokens in Redis. Every
// token is consumed atomically with GETDEL so it cannot be replayed.
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func (s *TokenStore) inviteKey(token string) string  { return "invite:" + token }
func (s *TokenStore) codeKey(email string) string    { return "seccode:" + email }
func (s *TokenStore) recoverKey(token string) string { return "recover:" + token }

// IssueInvitation mints an invitation token for a freshly created account.
func (s *TokenStore) IssueInvitation(ctx context.Context, accountID int64) (string, error) {
	token := uuid.NewString()
	err := s.client.Set(ctx, s.inviteKey(token), accountID, invitationTTL).Err()
	if err != nil {
		return "", fmt.Errorf("store invitation token: %w", err)
	}
	return token, nil
}

// ConsumeInvitation resolves and deletes an invitation token.
func (s *TokenStore) ConsumeInvitation(ctx context.Context, token string) (int64, error) {
	return s.consume(ctx, s.inviteKey(token))
}

// IssueSecurityCode mints and stores a 6 digit recovery code for the email.
// Reissuing overwrites the previous code.
func (s *TokenStore) IssueSecurityCode(ctx context.Context, email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	code := fmt.Sprintf("%06d", n.Int64())
	if err := s.client.Set(ctx, s.codeKey(email), code, codeTTL).Err(); err != nil {
		return "", fmt.Errorf("store security code: %w", err)
	}
	return code, nil
}

// ExchangeSecurityCode verifies a code and, on match, consumes it and mints a
// recovery token bound to the account.
func (s *TokenStore) ExchangeSecurityCode(ctx context.Context, email, code string, accountID int64) (string, error) {
	stored, err := s.client.Get(ctx, s.codeKey(email)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", shared.ErrUnauthenticated
		}
		return "", err
	}
	if stored != code {
		return "", shared.ErrUnauthenticated
	}
	if err := s.client.Del(ctx, s.codeKey(email)).Err(); err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.recoverKey(token), accountID, recoveryTTL).Err(); err != nil {
		return "", fmt.Errorf("store recovery token: %w", err)
	}
	return token, nil
}

// ConsumeRecovery resolves and deletes a recovery token.
func (s *TokenStore) ConsumeRecovery(ctx context.Context, token string) (int64, error) {
	return s.consume(ctx, s.recoverKey(token))
}

func (s *TokenStore) consume(ctx context.Context, key string) (int64, error) {
	val, err := s.client.GetDel(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, shared.ErrUnauthenticated
		}
		return 0, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt token payload: %w", err)
	}
	return id, nil
}
