// Package authz is the central policy evaluator. Every resource×action
// decision flows through one Engine call that returns a typed Decision,
// discriminated by Action, instead of scattering filter predicates across
// handlers.
package authz

import (
	"github.com/lumina-lms/lumina/internal/roles"
	"github.com/lumina-lms/lumina/internal/shared"
)

// Action identifies what the actor is attempting.
type Action int

const (
	ActionList Action = iota + 1
	ActionCreate
	ActionRead
	ActionUpdate
	ActionDelete
	ActionSwitchStatus
)

var actionNames = map[Action]string{
	ActionList:         "list",
	ActionCreate:       "create",
	ActionRead:         "read",
	ActionUpdate:       "update",
	ActionDelete:       "delete",
	ActionSwitchStatus: "switch_status",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Mutates reports whether the action writes resource state.
func (a Action) Mutates() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionSwitchStatus:
		return true
	}
	return false
}

// Decision is the outcome of a policy evaluation. Reason carries the error
// taxonomy value a denial maps to; it is nil when the action is allowed.
type Decision struct {
	Allow  bool
	Reason error
}

// Err returns the denial reason, or nil for an allowed decision.
func (d Decision) Err() error {
	if d.Allow {
		return nil
	}
	if d.Reason != nil {
		return d.Reason
	}
	return shared.ErrForbidden
}

func allow() Decision {
	return Decision{Allow: true}
}

func deny(reason error) Decision {
	return Decision{Allow: false, Reason: reason}
}

// CourseRef carries the course state the policy needs.
type CourseRef struct {
	ID       int64
	AdminID  int64
	IsActive bool
}

// LessonRef carries the lesson state plus its parent course state.
type LessonRef struct {
	CourseID     int64
	CourseAdmin  int64
	CourseActive bool
	FreeAccess   bool
}

// AccountRef carries the account state the policy needs.
type AccountRef struct {
	ID        int64
	Role      roles.Role
	CreatedBy int64
}
