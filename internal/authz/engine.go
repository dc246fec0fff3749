package authz

import (
	"context"

	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// EntitlementSource answers access questions from the entitlement store.
type EntitlementSource interface {
	HasPlatformAccess(ctx context.Context, adminID int64) (bool, error)
	HasCourseAccess(ctx context.Context, userID, courseID int64) (bool, error)
}

// CourseState answers ownership/activity questions used by the capacity
// rules. Implemented by the course repository so the engine can be evaluated
// inside the same transaction as the mutation it guards.
type CourseState interface {
	CountOwned(ctx context.Context, adminID int64) (int, error)
	HasOtherActive(ctx context.Context, adminID, exceptCourseID int64) (bool, error)
}

// DecisionRecorder observes every evaluated decision, used for metrics.
type DecisionRecorder interface {
	RecordDecision(resource, action string, allowed bool)
}

// Engine evaluates (actor, resource, action) tuples against the role
// hierarchy, the entitlement store and resource state.
type Engine struct {
	entitlements EntitlementSource
	courses      CourseState
	recorder     DecisionRecorder
}

// NewEngine constructs an Engine.
func NewEngine(entitlements EntitlementSource, courses CourseState) *Engine {
	return &Engine{entitlements: entitlements, courses: courses}
}

// WithRecorder attaches a decision recorder and returns the engine.
func (e *Engine) WithRecorder(r DecisionRecorder) *Engine {
	e.recorder = r
	return e
}

func (e *Engine) record(resource string, action Action, d Decision) Decision {
	if e.recorder != nil {
		e.recorder.RecordDecision(resource, action.String(), d.Allow)
	}
	return d
}

// platformAccess answers the fresh, store-backed question. Mutating paths
// never trust the login-time claim cached on the actor.
func (e *Engine) platformAccess(ctx context.Context, actor shared.Actor, fresh bool) (bool, error) {
	if !fresh {
		return actor.PlatformAccess, nil
	}
	return e.entitlements.HasPlatformAccess(ctx, actor.ID)
}

// AuthorizeCourse evaluates a course action.
func (e *Engine) AuthorizeCourse(ctx context.Context, actor shared.Actor, course CourseRef, action Action) (Decision, error) {
	d, err := e.authorizeCourse(ctx, actor, course, action)
	if err != nil {
		return d, err
	}
	return e.record("course", action, d), nil
}

func (e *Engine) authorizeCourse(ctx context.Context, actor shared.Actor, course CourseRef, action Action) (Decision, error) {
	if !actor.Authenticated() {
		return deny(shared.ErrUnauthenticated), nil
	}
	switch action {
	case ActionList:
		// Visibility is filtered per role, never denied outright.
		return allow(), nil

	case ActionCreate:
		switch actor.Role {
		case roles.Superuser:
			return allow(), nil
		case roles.Administrator:
			return e.canCreateCourse(ctx, actor)
		default:
			return deny(shared.ErrForbidden), nil
		}

	case ActionRead:
		switch actor.Role {
		case roles.Superuser:
			return allow(), nil
		case roles.Administrator:
			// Owners always see their own courses, active or not.
			if course.AdminID == actor.ID {
				return allow(), nil
			}
			return deny(shared.ErrForbidden), nil
		case roles.Curator, roles.Learner:
			// Basic course fields are readable on any active course; the
			// entitlement check only gates lesson-level content.
			if course.IsActive {
				return allow(), nil
			}
			return deny(shared.ErrForbidden), nil
		}
		return deny(shared.ErrForbidden), nil

	case ActionUpdate, ActionDelete:
		if actor.Role == roles.Superuser {
			return allow(), nil
		}
		if actor.Role == roles.Administrator && course.AdminID == actor.ID && course.IsActive {
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil

	case ActionSwitchStatus:
		if actor.Role == roles.Superuser {
			return allow(), nil
		}
		if actor.Role != roles.Administrator || course.AdminID != actor.ID {
			return deny(shared.ErrForbidden), nil
		}
		// Deactivating is always allowed to the owner.
		if course.IsActive {
			return allow(), nil
		}
		return e.canActivateCourse(ctx, actor, course)
	}
	return deny(shared.ErrForbidden), nil
}

// AuthorizeLesson evaluates a lesson action against its parent course state.
func (e *Engine) AuthorizeLesson(ctx context.Context, actor shared.Actor, lesson LessonRef, action Action) (Decision, error) {
	d, err := e.authorizeLesson(ctx, actor, lesson, action)
	if err != nil {
		return d, err
	}
	return e.record("lesson", action, d), nil
}

func (e *Engine) authorizeLesson(ctx context.Context, actor shared.Actor, lesson LessonRef, action Action) (Decision, error) {
	if !actor.Authenticated() {
		return deny(shared.ErrUnauthenticated), nil
	}
	if actor.Role == roles.Superuser {
		return allow(), nil
	}

	if action.Mutates() {
		if actor.Role == roles.Administrator && lesson.CourseAdmin == actor.ID && lesson.CourseActive {
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil
	}

	switch actor.Role {
	case roles.Administrator:
		if lesson.CourseAdmin == actor.ID && lesson.CourseActive {
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil
	case roles.Curator:
		if lesson.CourseActive {
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil
	case roles.Learner:
		if !lesson.CourseActive {
			return deny(shared.ErrForbidden), nil
		}
		if lesson.FreeAccess {
			return allow(), nil
		}
		ok, err := e.entitlements.HasCourseAccess(ctx, actor.ID, lesson.CourseID)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil
	}
	return deny(shared.ErrForbidden), nil
}

// AuthorizeAccount evaluates an account action.
func (e *Engine) AuthorizeAccount(ctx context.Context, actor shared.Actor, target AccountRef, action Action) (Decision, error) {
	d, err := e.authorizeAccount(ctx, actor, target, action)
	if err != nil {
		return d, err
	}
	return e.record("account", action, d), nil
}

func (e *Engine) authorizeAccount(ctx context.Context, actor shared.Actor, target AccountRef, action Action) (Decision, error) {
	if !actor.Authenticated() {
		return deny(shared.ErrUnauthenticated), nil
	}
	switch action {
	case ActionList:
		switch actor.Role {
		case roles.Superuser, roles.Administrator, roles.Curator:
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil

	case ActionCreate:
		if actor.Role != roles.Superuser && actor.Role != roles.Administrator {
			return deny(shared.ErrForbidden), nil
		}
		if !actor.Role.Above(target.Role) {
			return deny(shared.ErrForbidden), nil
		}
		if actor.Role == roles.Administrator && target.Role == roles.Curator {
			// Restricted administrators cannot invite curators.
			unrestricted, err := e.platformAccess(ctx, actor, true)
			if err != nil {
				return Decision{}, err
			}
			if !unrestricted {
				return deny(shared.ErrForbidden), nil
			}
		}
		return allow(), nil

	case ActionRead:
		switch actor.Role {
		case roles.Superuser, roles.Administrator, roles.Curator:
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil

	case ActionUpdate, ActionDelete:
		if actor.Role == roles.Superuser {
			return allow(), nil
		}
		// Administrators may only write accounts they created themselves.
		if actor.Role == roles.Administrator && target.CreatedBy == actor.ID {
			return allow(), nil
		}
		return deny(shared.ErrForbidden), nil
	}
	return deny(shared.ErrForbidden), nil
}
