package shared

import "errors"

var (
	// ErrUnauthenticated indicates a missing or invalid credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates the policy denied an authenticated actor.
	// Deliberately carries no detail about why.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound indicates resource not found, or zero visibility for the actor.
	ErrNotFound = errors.New("not found")
	// ErrQuotaExceeded indicates a capacity rule blocked an otherwise permitted action.
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrInvalidState indicates an operation against a record that does not exist
	// or is in a state the operation cannot apply to.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate indicates a uniqueness conflict, such as an already
	// registered email.
	ErrDuplicate = errors.New("already exists")
)

// UserSafeMessage returns a message safe to surface to clients. Policy denials
// never explain themselves; quota errors carry their human message.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return err.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid email or password"
	case errors.Is(err, ErrInvalidState):
		return err.Error()
	case errors.Is(err, ErrDuplicate):
		return err.Error()
	default:
		return "something went wrong"
	}
}
