package metadata

import "context"

// RoleAdmin passes every access check.
const RoleAdmin = "admin"

// Actor is the user on whose behalf an operation runs. A nil *Actor is anonymous.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// HasRole checks whether the actor has a specific role.
func (a *Actor) HasRole(role string) bool {
	return a != nil && a.Role == role
}

// IsAdmin checks whether the actor has the admin role.
func (a *Actor) IsAdmin() bool {
	return a.HasRole(RoleAdmin)
}

// ActorSource resolves the current actor lazily, e.g. once per request.
type ActorSource interface {
	Actor(ctx context.Context) (*Actor, error)
}

// StaticActor is an ActorSource that always returns the same actor.
type StaticActor struct {
	Value *Actor
}

func (s StaticActor) Actor(context.Context) (*Actor, error) { return s.Value, nil }
