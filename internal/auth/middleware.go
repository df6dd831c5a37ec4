// Package auth authenticates operators on incoming requests and gates
// routes by permission.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/yoozak/yoozak-backend/pkg/actor"
	"github.com/yoozak/yoozak-backend/pkg/errors"
	"github.com/yoozak/yoozak-backend/pkg/httputil"
	"github.com/yoozak/yoozak-backend/pkg/permissions"
)

// TokenValidator resolves a bearer token to the operator it was issued for
type TokenValidator interface {
	ValidateToken(token string) (*actor.Actor, error)
}

// Authenticate requires a valid bearer token and puts the operator in the
// request context.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("invalid authorization header format"))
				return
			}

			a, err := validator.ValidateToken(parts[1])
			if err != nil {
				httputil.ErrorLocalized(w, r, err)
				return
			}

			httputil.SetOperator(r.Context(), a.ID)
			next.ServeHTTP(w, r.WithContext(actor.WithActor(r.Context(), a)))
		})
	}
}

// OperatorLookup reports an operator's current role and whether the
// account is still active
type OperatorLookup interface {
	CurrentRole(ctx context.Context, id string) (role string, active bool, err error)
}

// RequireActive re-reads the authenticated operator on every request.
// Disabled or removed accounts are refused even while their token is valid,
// and a role change takes effect immediately.
func RequireActive(lookup OperatorLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := actor.FromContext(r.Context())
			if a == nil {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("authentication required"))
				return
			}

			role, active, err := lookup.CurrentRole(r.Context(), a.ID)
			if errors.Is(err, errors.ErrNotFound) || (err == nil && !active) {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("account is disabled"))
				return
			}
			if err != nil {
				httputil.ErrorLocalized(w, r, err)
				return
			}

			if role != a.Role {
				current := *a
				current.Role = role
				current.Permissions = permissions.ForRole(role)
				r = r.WithContext(actor.WithActor(r.Context(), &current))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission rejects requests whose operator lacks perm
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := actor.FromContext(r.Context())
			if a == nil {
				httputil.ErrorLocalized(w, r, errors.Unauthorized("authentication required"))
				return
			}
			if !permissions.HasPermission(a.Permissions, perm) {
				httputil.ErrorLocalized(w, r, errors.Forbidden("missing permission "+perm))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
