// Package actorctx carries the authenticated actor resolved by the auth
// collaborator. Administrators see every invoice; doctors only those for
// their own appointments.
package actorctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDoctor Role = "doctor"
)

// Actor identifies the caller for the purpose of ledger scoping.
type Actor struct {
	Role Role
	// DoctorID is set when Role == RoleDoctor.
	DoctorID snowflake.ID
}

type actorContextKey struct{}

// WithActor stores the actor in the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor from context, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// ParseRole normalizes a raw role string from the auth boundary.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDoctor:
		return RoleDoctor, true
	default:
		return "", false
	}
}
