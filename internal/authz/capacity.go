package authz

import (
	"context"
	"fmt"

	"github.com/lumina-lms/lumina/internal/shared"
)

// LearnerListLimit caps the member list shown to a restricted administrator.
// A read-side truncation, not a write-side rejection.
const LearnerListLimit = 5

// canCreateCourse applies the course quota: a restricted administrator may
// own at most one course in total. The platform-access check is re-queried
// from the store, not taken from the login-time claim, because creation is a
// check-then-act path.
func (e *Engine) canCreateCourse(ctx context.Context, actor shared.Actor) (Decision, error) {
	unrestricted, err := e.platformAccess(ctx, actor, true)
	if err != nil {
		return Decision{}, err
	}
	if unrestricted {
		return allow(), nil
	}
	owned, err := e.courses.CountOwned(ctx, actor.ID)
	if err != nil {
		return Decision{}, err
	}
	if owned > 0 {
		return deny(fmt.Errorf("you can create only one course: %w", shared.ErrQuotaExceeded)), nil
	}
	return allow(), nil
}

// canActivateCourse applies the activation quota: a restricted administrator
// may not bring a second course active while another one already is.
func (e *Engine) canActivateCourse(ctx context.Context, actor shared.Actor, course CourseRef) (Decision, error) {
	unrestricted, err := e.platformAccess(ctx, actor, true)
	if err != nil {
		return Decision{}, err
	}
	if unrestricted {
		return allow(), nil
	}
	otherActive, err := e.courses.HasOtherActive(ctx, actor.ID, course.ID)
	if err != nil {
		return Decision{}, err
	}
	if otherActive {
		return deny(shared.ErrForbidden), nil
	}
	return allow(), nil
}
