package shared

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina-lms/lumina/internal/roles"
)

func TestActorContextRoundTrip(t *testing.T) {
	actor := Actor{ID: 7, Role: roles.Curator}
	ctx := ContextWithActor(context.Background(), actor)
	assert.Equal(t, actor, ActorFromContext(ctx))
}

func TestActorFromEmptyContext(t *testing.T) {
	actor := ActorFromContext(context.Background())
	assert.False(t, actor.Authenticated())
}

func TestSlugify(t *testing.T) {
	slug := Slugify("Curso de Introducción  A Go!")
	parts := strings.Split(slug, "-")
	require.GreaterOrEqual(t, len(parts), 2)
	assert.True(t, strings.HasPrefix(slug, "curso-de-introduccion-a-go-"))
	assert.Len(t, parts[len(parts)-1], 8)
}

func TestSlugifyEmptyName(t *testing.T) {
	slug := Slugify("??!")
	assert.Len(t, slug, 8)
}

func TestSlugifyUniqueSuffix(t *testing.T) {
	assert.NotEqual(t, Slugify("same name"), Slugify("same name"))
}

func TestUserSafeMessage(t *testing.T) {
	assert.Equal(t, "quota exceeded", UserSafeMessage(ErrQuotaExceeded))
	assert.Equal(t, "something went wrong", UserSafeMessage(ErrForbidden))
}
