package shared

import (
	"context"

	"github.com/lumina-lms/lumina/internal/roles"
)

// Actor identifies the authenticated caller for a single request. It is
// passed explicitly into every core call; there is no ambient user state.
type Actor struct {
	ID             int64
	Role           roles.Role
	PlatformAccess bool
}

// Authenticated reports whether the actor represents a real account.
func (a Actor) Authenticated() bool {
	return a.ID != 0 && a.Role.Valid()
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context. The zero Actor is
// returned for unauthenticated requests.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
