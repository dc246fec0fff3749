package courses

import (
	"context"
	"fmt"
	"time"

	"github.com/lumina-lms/lumina/internal/authz"
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// RepositoryPort defines data access methods for courses.
type RepositoryPort interface {
	GetBySlug(ctx context.Context, slug string) (*Course, error)
	CountOwned(ctx context.Context, adminID int64) (int, error)
	HasOtherActive(ctx context.Context, adminID, exceptCourseID int64) (bool, error)
	ListAll(ctx context.Context) ([]VisibleCourse, error)
	ListByAdmin(ctx context.Context, adminID int64) ([]VisibleCourse, error)
	ListActiveByAdmins(ctx context.Context, adminIDs []int64) ([]VisibleCourse, error)
	ListActiveForLearner(ctx context.Context, learnerID int64) ([]VisibleCourse, error)
	UpdateCourse(ctx context.Context, id int64, req UpdateCourseRequest) error
	DeleteCourse(ctx context.Context, id int64) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// EntitlementStore is the slice of the entitlement service the course module
// consumes.
type EntitlementStore interface {
	HasPlatformAccess(ctx context.Context, adminID int64) (bool, error)
	ListDelegates(ctx context.Context, curatorID int64) ([]int64, error)
	GrantCourseAccess(ctx context.Context, userID, courseID int64) error
	SetCourseAccess(ctx context.Context, userID, courseID int64, access bool, dateEnd *time.Time) error
}

// FileRemover cleans up stored cover images. External collaborator.
type FileRemover interface {
	Remove(path string) error
}

// Service handles course business logic.
type Service struct {
	repo         RepositoryPort
	engine       *authz.Engine
	entitlements EntitlementStore
	files        FileRemover
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, engine *authz.Engine, entitlements EntitlementStore, files FileRemover) *Service {
	return &Service{repo: repo, engine: engine, entitlements: entitlements, files: files}
}

// List resolves the filtered course set visible to the actor, ordered by
// name. Learners see every active course with their own access flags;
// curators see only the active courses of their delegated administrators.
func (s *Service) List(ctx context.Context, actor shared.Actor) ([]VisibleCourse, error) {
	d, err := s.engine.AuthorizeCourse(ctx, actor, authz.CourseRef{}, authz.ActionList)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	switch actor.Role {
	case roles.Superuser:
		return s.repo.ListAll(ctx)
	case roles.Administrator:
		return s.repo.ListByAdmin(ctx, actor.ID)
	case roles.Curator:
		admins, err := s.entitlements.ListDelegates(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		return s.repo.ListActiveByAdmins(ctx, admins)
	default:
		return s.repo.ListActiveForLearner(ctx, actor.ID)
	}
}

// Create adds a course owned by the actor. The restricted-administrator
// quota is checked twice: once through the engine, and again inside the
// transaction under the per-administrator advisory lock so two concurrent
// creates cannot both observe zero owned courses.
func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateCourseRequest) (*Course, error) {
	d, err := s.engine.AuthorizeCourse(ctx, actor, authz.CourseRef{}, authz.ActionCreate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}

	course := Course{
		AdminID:     actor.ID,
		Slug:        shared.Slugify(req.Name),
		Name:        req.Name,
		Cover:       req.Cover,
		Description: req.Description,
		Sequence:    req.Sequence,
		IsActive:    true,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockAdmin(ctx, actor.ID); err != nil {
			return err
		}
		if actor.Role == roles.Administrator {
			unrestricted, err := s.entitlements.HasPlatformAccess(ctx, actor.ID)
			if err != nil {
				return err
			}
			if !unrestricted {
				owned, err := tx.CountOwned(ctx, actor.ID)
				if err != nil {
					return err
				}
				if owned > 0 {
					return fmt.Errorf("you can create only one course: %w", shared.ErrQuotaExceeded)
				}
			}
		}
		id, err := tx.InsertCourse(ctx, course)
		if err != nil {
			return err
		}
		course.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Get fetches a single course the actor may read.
func (s *Service) Get(ctx context.Context, actor shared.Actor, slug string) (*Course, error) {
	course, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeCourse(ctx, actor, courseRef(course), authz.ActionRead)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	return course, nil
}

// Update applies a partial update to a course the actor may write. A
// replaced cover image is removed from storage.
func (s *Service) Update(ctx context.Context, actor shared.Actor, slug string, req UpdateCourseRequest) (*Course, error) {
	course, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	d, err := s.engine.AuthorizeCourse(ctx, actor, courseRef(course), authz.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !d.Allow {
		return nil, d.Err()
	}
	if req.Cover != nil && course.Cover != nil && *course.Cover != *req.Cover {
		_ = s.files.Remove(*course.Cover)
	}
	if err := s.repo.UpdateCourse(ctx, course.ID, req); err != nil {
		return nil, err
	}
	return s.repo.GetBySlug(ctx, slug)
}

// Delete removes a course and its stored cover.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, slug string) error {
	course, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	d, err := s.engine.AuthorizeCourse(ctx, actor, courseRef(course), authz.ActionDelete)
	if err != nil {
		return err
	}
	if !d.Allow {
		return d.Err()
	}
	if course.Cover != nil {
		_ = s.files.Remove(*course.Cover)
	}
	return s.repo.DeleteCourse(ctx, course.ID)
}

// SwitchStatus toggles is_active and returns the new state. The course row
// and the per-administrator advisory lock are held for the whole
// check-then-act so the single-active-course invariant cannot be raced.
func (s *Service) SwitchStatus(ctx context.Context, actor shared.Actor, slug string) (bool, error) {
	var newState bool
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		course, err := tx.GetBySlugForUpdate(ctx, slug)
		if err != nil {
			return err
		}
		if err := tx.LockAdmin(ctx, course.AdminID); err != nil {
			return err
		}
		d, err := s.engine.AuthorizeCourse(ctx, actor, courseRef(course), authz.ActionSwitchStatus)
		if err != nil {
			return err
		}
		if !d.Allow {
			return d.Err()
		}
		newState = !course.IsActive
		return tx.SetActive(ctx, course.ID, newState)
	})
	if err != nil {
		return false, err
	}
	return newState, nil
}

// Subscribe records the learner's subscription to an active course with
// get-or-create semantics.
func (s *Service) Subscribe(ctx context.Context, actor shared.Actor, slug string) error {
	if !actor.Authenticated() {
		return shared.ErrUnauthenticated
	}
	if actor.Role != roles.Learner && actor.Role != roles.Curator {
		return shared.ErrForbidden
	}
	course, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if !course.IsActive {
		return shared.ErrForbidden
	}
	return s.entitlements.GrantCourseAccess(ctx, actor.ID, course.ID)
}

// GrantAccess lets a superuser or the owning administrator subscribe a user
// to the course (idempotent).
func (s *Service) GrantAccess(ctx context.Context, actor shared.Actor, slug string, userID int64) error {
	course, err := s.ownedCourse(ctx, actor, slug)
	if err != nil {
		return err
	}
	return s.entitlements.GrantCourseAccess(ctx, userID, course.ID)
}

// SetAccess lets a superuser or the owning administrator update access and
// expiry on an existing subscription.
func (s *Service) SetAccess(ctx context.Context, actor shared.Actor, slug string, userID int64, req GrantAccessRequest) error {
	course, err := s.ownedCourse(ctx, actor, slug)
	if err != nil {
		return err
	}
	return s.entitlements.SetCourseAccess(ctx, userID, course.ID, req.Access, req.DateEnd)
}

func (s *Service) ownedCourse(ctx context.Context, actor shared.Actor, slug string) (*Course, error) {
	if !actor.Authenticated() {
		return nil, shared.ErrUnauthenticated
	}
	course, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if actor.Role != roles.Superuser &&
		!(actor.Role == roles.Administrator && course.AdminID == actor.ID) {
		return nil, shared.ErrForbidden
	}
	return course, nil
}

func courseRef(c *Course) authz.CourseRef {
	return authz.CourseRef{ID: c.ID, AdminID: c.AdminID, IsActive: c.IsActive}
}
