package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/lumina-lms/lumina/internal/authz"
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Insert(ctx context.Context, a Account) (int64, error)
	Update(ctx context.Context, id int64, req UpdateAccountRequest) error
	SetPassword(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
	ListBelowSuperuser(ctx context.Context) ([]Member, error)
	ListMembersForAdmins(ctx context.Context, adminIDs []int64, learnersOnly bool, limit int) ([]Member, error)
}

// EntitlementStore is the slice of the entitlement service the account module
// consumes.
type EntitlementStore interface {
	HasPlatformAccess(ctx context.Context, adminID int64) (bool, error)
	ListDelegates(ctx context.Context, curatorID int64) ([]int64, error)
	CreateDelegation(ctx context.Context, userID, leadID int64) error
	TogglePlatformAccess(ctx context.Context, adminID int64) (bool, error)
}

// TokenIssuer mints and consumes invitation and recovery tokens.
type TokenIssuer interface {
	IssueInvitation(ctx context.Context, accountID int64) (string, error)
	ConsumeInvitation(ctx context.Context, token string) (int64, error)
	IssueSecurityCode(ctx context.Context, email string) (string, error)
	ExchangeSecurityCode(ctx context.Context, email, code string, accountID int64) (string, error)
	ConsumeRecovery(ctx context.Context, token string) (int64, error)
}

// Notifier delivers account emails, typically by enqueueing a background
// task.
type Notifier interface {
	SendInvitation(ctx context.Context, email, token string) error
	SendSecurityCode(ctx context.Context, email, code string) error
}

// Service handles account business logic.
type Service struct {
	repo         RepositoryPort
	engine       *authz.Engine
	entitlements EntitlementStore
	tokens       TokenIssuer
	notifier     Notifier
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, entitlements EntitlementStore, tokens TokenIssuer, notifier Notifier) *Service {
	return &Service{repo: repo, engine: engine, entitlements: entitlements, tokens: tokens, notifier: notifier}
}

// List returns the member set visible to the actor.
func (s *Service) List(ctx context.Context, actor shared.Actor) ([]Member, error) {
	d, err := s.engine.AuthorizeAccount(ctx, actor, authz.AccountRef{}, authz.ActionList)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	switch actor.Role {
	case roles.Superuser:
		return s.repo.ListBelowSuperuser(ctx)
	case roles.Administrator:
		unrestricted, err := s.entitlements.HasPlatformAccess(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if unrestricted {
			return s.repo.ListMembersForAdmins(ctx, []int64{actor.ID}, false, 0)
		}
		// Restricted administrators see learners only, capped.
		return s.repo.ListMembersForAdmins(ctx, []int64{actor.ID}, true, authz.LearnerListLimit)
	case roles.Curator:
		admins, err := s.unrestrictedDelegators(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		if len(admins) == 0 {
			return []Member{}, nil
		}
		return s.repo.ListMembersForAdmins(ctx, admins, false, 0)
	}
	return nil, shared.ErrForbidden
}

// unrestrictedDelegators resolves the curator's delegating administrators and
// keeps only those holding platform access. A restricted administrator's
// member list is invisible to their curators.
func (s *Service) unrestrictedDelegators(ctx context.Context, curatorID int64) ([]int64, error) {
	admins, err := s.entitlements.ListDelegates(ctx, curatorID)
	if err != nil {
		return nil, err
	}
	var (
		mu   sync.Mutex
		kept []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, adminID := range admins {
		g.Go(func() error {
			ok, err := s.entitlements.HasPlatformAccess(gctx, adminID)
			if err != nil {
				return err
			}
			if ok {
				mu.Lock()
				kept = append(kept, adminID)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return kept, nil
}

// Create invites a new account. The invitee receives an emailed token and
// sets their password through AcceptInvitation. When the creator is an
// administrator a delegation edge binds the new account to them.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateAccountRequest) (*Account, error) {
	if !req.Role.Valid() || req.Role == roles.Superuser {
		return nil, shared.ErrForbidden
	}
	d, err := s.engine.AuthorizeAccount(ctx, actor, authz.AccountRef{Role: req.Role}, authz.ActionCreate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}

	creator := actor.ID
	account := Account{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		CreatedBy: &creator,
	}
	id, err := s.repo.Insert(ctx, account)
	if err != nil {
		return nil, err
	}
	account.ID = id

	if actor.Role == roles.Administrator {
		if err := s.entitlements.CreateDelegation(ctx, id, actor.ID); err != nil {
			return nil, err
		}
	}

	token, err := s.tokens.IssueInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendInvitation(ctx, account.Email, token); err != nil {
		return nil, err
	}
	return &account, nil
}

// SignUp registers a learner account directly, no invitation involved.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	account := Account{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         roles.Learner,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	id, err := s.repo.Insert(ctx, account)
	if err != nil {
		return nil, err
	}
	account.ID = id
	return &account, nil
}

// AcceptInvitation consumes an invitation token and sets the password,
// activating the account.
func (s *Service) AcceptInvitation(ctx context.Context, req AcceptInvitationRequest) error {
	accountID, err := s.tokens.ConsumeInvitation(ctx, req.Token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, accountID, string(hash))
}

// RequestSecurityCode emails a recovery code. Unknown emails succeed
// silently so the endpoint cannot be used to probe registrations.
func (s *Service) RequestSecurityCode(ctx context.Context, req RecoverRequest) error {
	if _, err := s.repo.GetByEmail(ctx, req.Email); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	code, err := s.tokens.IssueSecurityCode(ctx, req.Email)
	if err != nil {
		return err
	}
	return s.notifier.SendSecurityCode(ctx, req.Email, code)
}

// VerifySecurityCode exchanges a valid code for a single-use recovery token.
func (s *Service) VerifySecurityCode(ctx context.Context, req VerifyCodeRequest) (string, error) {
	account, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return "", shared.ErrUnauthenticated
		}
		return "", err
	}
	return s.tokens.ExchangeSecurityCode(ctx, req.Email, req.Code, account.ID)
}

// ResetPassword consumes a recovery token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	accountID, err := s.tokens.ConsumeRecovery(ctx, req.Token)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.SetPassword(ctx, accountID, string(hash))
}

// Get fetches a single account per policy.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeAccount(ctx, actor, accountRef(account), authz.ActionRead)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	return account, nil
}

// Update applies a partial update per policy.
func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateAccountRequest) (*Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeAccount(ctx, actor, accountRef(account), authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	if err := s.repo.Update(ctx, id, req); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Delete removes an account per policy.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d, err := s.engine.AuthorizeAccount(ctx, actor, accountRef(account), authz.ActionDelete)
	if err != nil {
		return err
	}
	if !d.Allow {
		return d.Err()
	}
	return s.repo.Delete(ctx, id)
}

// TogglePlatformAccess flips the self-entitlement of an administrator.
// Superuser only. Revoking access cascades to the administrator's courses,
// leaving only the earliest-created one active.
func (s *Service) TogglePlatformAccess(ctx context.Context, actor shared.Actor, id int64) (bool, error) {
	if !actor.Authenticated() {
		return false, shared.ErrUnauthenticated
	}
	if actor.Role != roles.Superuser {
		return false, shared.ErrForbidden
	}
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if account.Role != roles.Administrator {
		return false, fmt.Errorf("%w: platform access applies to administrators", shared.ErrInvalidState)
	}
	return s.entitlements.TogglePlatformAccess(ctx, id)
}

func accountRef(a *Account) authz.AccountRef {
	ref := authz.AccountRef{ID: a.ID, Role: a.Role}
	if a.CreatedBy != nil {
		ref.CreatedBy = *a.CreatedBy
	}
	return ref
}
