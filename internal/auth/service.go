package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/lumina-lms/lumina/internal/accounts"
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// AccountSource is the slice of the account module auth consumes.
type AccountSource interface {
	GetByEmail(ctx context.Context, email string) (*accounts.Account, error)
	GetByID(ctx context.Context, id int64) (*accounts.Account, error)
}

// PlatformSource answers the administrator platform-access question at login.
type PlatformSource interface {
	HasPlatformAccess(ctx context.Context, adminID int64) (bool, error)
}

// Service wraps authentication business rules.
type Service struct {
	accounts     AccountSource
	entitlements PlatformSource
	tokens       *TokenManager
}

// NewService constructs a new Service.
func NewService(accounts AccountSource, entitlements PlatformSource, tokens *TokenManager) *Service {
	return &Service{accounts: accounts, entitlements: entitlements, tokens: tokens}
}

// Login validates credentials and issues a bearer token. The platform-access
// claim is computed here, once, from the entitlement store.
func (s *Service) Login(ctx context.Context, email, password string) (string, *accounts.Account, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}
	if !account.IsActive || account.PasswordHash == "" {
		return "", nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, shared.ErrInvalidCredentials
	}

	platformAccess := false
	if account.Role == roles.Administrator {
		platformAccess, err = s.entitlements.HasPlatformAccess(ctx, account.ID)
		if err != nil {
			return "", nil, err
		}
	}

	token, err := s.tokens.Issue(ctx, Claims{
		UserID:         account.ID,
		Role:           account.Role,
		PlatformAccess: platformAccess,
	})
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Whoami resolves the acting account.
func (s *Service) Whoami(ctx context.Context, actor shared.Actor) (*accounts.Account, error) {
	if !actor.Authenticated() {
		return nil, shared.ErrUnauthenticated
	}
	return s.accounts.GetByID(ctx, actor.ID)
}
