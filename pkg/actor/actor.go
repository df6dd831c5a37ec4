// Package actor identifies the operator (or the system) performing an action.
//
// The actor travels in the request context from the authentication
// middleware down to the services, which record it on stock movements and
// order status changes.
package actor

import (
	"context"
	"fmt"
)

// SystemID is the well-known ID recorded for scheduled and CLI operations.
const SystemID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the operator ID
	ID string `json:"id"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`

	// Role is the operator's role (admin, confirmation, preparation, logistics, stock)
	Role string `json:"role"`

	// Permissions are the effective permissions granted by the role
	Permissions []string `json:"permissions,omitempty"`
}

// FullName returns the actor's full name (first + last)
func (a *Actor) FullName() string {
	if a == nil {
		return ""
	}
	if a.LastName == "" {
		return a.FirstName
	}
	return a.FirstName + " " + a.LastName
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.FullName(), a.Email)
}

type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	actor, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return actor
}

// FromContextOrSystem returns the request actor, falling back to SystemActor.
func FromContextOrSystem(ctx context.Context) *Actor {
	if a := FromContext(ctx); a != nil {
		return a
	}
	return SystemActor()
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActor returns an Actor representing the system itself.
// Use this for background jobs, scheduled tasks, and CLI operations.
func SystemActor() *Actor {
	return &Actor{
		ID:          SystemID,
		FirstName:   "System",
		Email:       "system@yoozak.local",
		Role:        "admin",
		Permissions: []string{"*"},
	}
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemID
}
