package entitlements

import (
	"errors"
	"fmt"

	"github.com/lumina-lms/lumina/internal/shared"
)

// ErrNoSubscription marks an access update against a (user, course) pair
// that has no entitlement row.
var ErrNoSubscription = fmt.Errorf("subscription does not exist: %w", shared.ErrInvalidState)

func isNotFound(err error) bool {
	return errors.Is(err, shared.ErrNotFound)
}
