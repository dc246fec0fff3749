package entitlements

import (
	"context"
	"fmt"
	"time"
)

// RepositoryPort defines data access methods for the entitlement store.
type RepositoryPort interface {
	HasPlatformAccess(ctx context.Context, adminID int64) (bool, error)
	HasCourseAccess(ctx context.Context, userID, courseID int64, asOf time.Time) (bool, error)
	GetCourseEntitlement(ctx context.Context, userID, courseID int64) (*Entitlement, error)
	InsertCourseEntitlement(ctx context.Context, userID, courseID int64, access bool) (bool, error)
	UpdateCourseAccess(ctx context.Context, userID, courseID int64, access bool, dateEnd *time.Time) (int64, error)
	ListDelegates(ctx context.Context, curatorID int64) ([]int64, error)
	InsertDelegation(ctx context.Context, curatorID, adminID int64) (bool, error)
	ExpireOverdue(ctx context.Context, asOf time.Time) (int64, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Service implements the entitlement store operations.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// HasPlatformAccess reports whether the administrator holds the platform-wide
// access flag. Default-deny: no row means false.
func (s *Service) HasPlatformAccess(ctx context.Context, adminID int64) (bool, error) {
	return s.repo.HasPlatformAccess(ctx, adminID)
}

// HasCourseAccess reports whether the user may read the course's content.
// Expired entitlements (date_end before today) do not grant access even when
// their access flag is still set.
func (s *Service) HasCourseAccess(ctx context.Context, userID, courseID int64) (bool, error) {
	return s.repo.HasCourseAccess(ctx, userID, courseID, today(s.now()))
}

// GrantCourseAccess subscribes the user to the course with get-or-create
// semantics: calling twice leaves exactly one row for the pair.
func (s *Service) GrantCourseAccess(ctx context.Context, userID, courseID int64) error {
	_, err := s.repo.InsertCourseEntitlement(ctx, userID, courseID, true)
	return err
}

// SetCourseAccess updates access and expiry on an existing subscription.
// Pairs without a row are rejected; this operation never creates rows.
func (s *Service) SetCourseAccess(ctx context.Context, userID, courseID int64, access bool, dateEnd *time.Time) error {
	affected, err := s.repo.UpdateCourseAccess(ctx, userID, courseID, access, dateEnd)
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("entitlements: no subscription for user %d on course %d: %w", userID, courseID, ErrNoSubscription)
	}
	return nil
}

// TogglePlatformAccess flips the administrator between the restricted and
// unrestricted tiers and returns the new state. The unrestricted → restricted
// transition cascades: every course owned by the administrator except the
// earliest-created one is deactivated. The whole toggle runs in one
// transaction with the self-entitlement row locked.
func (s *Service) TogglePlatformAccess(ctx context.Context, adminID int64) (bool, error) {
	var enabled bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.GetSelfEntitlementForUpdate(ctx, adminID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if existing != nil {
			if err := tx.DeleteSelfEntitlement(ctx, adminID); err != nil {
				return err
			}
			if _, err := tx.DeactivateCoursesExceptEarliest(ctx, adminID); err != nil {
				return err
			}
			enabled = false
			return nil
		}
		if err := tx.InsertSelfEntitlement(ctx, adminID); err != nil {
			return err
		}
		enabled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return enabled, nil
}

// ListDelegates returns the administrators the curator may read.
func (s *Service) ListDelegates(ctx context.Context, curatorID int64) ([]int64, error) {
	return s.repo.ListDelegates(ctx, curatorID)
}

// CreateDelegation records a curator → administrator edge. Duplicate edges
// collapse into one.
func (s *Service) CreateDelegation(ctx context.Context, curatorID, adminID int64) error {
	_, err := s.repo.InsertDelegation(ctx, curatorID, adminID)
	return err
}

// ExpireOverdue deactivates subscriptions whose end date has passed and
// returns how many were touched. Invoked by the nightly scheduler.
func (s *Service) ExpireOverdue(ctx context.Context) (int64, error) {
	return s.repo.ExpireOverdue(ctx, today(s.now()))
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
