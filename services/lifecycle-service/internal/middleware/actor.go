package middleware

import (
	"context"
	"net/http"

	"agrilink-system/services/lifecycle-service/internal/domain"
)

const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

type actorKey struct{}

// Actor extracts the caller's identity and role from the X-Actor-ID
// and X-Actor-Role headers set by the upstream gateway.
// Authentication itself happens there; this service only enforces
// role-based authority over transitions.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerActorID)
		role := domain.Role(r.Header.Get(headerActorRole))
		if id == "" || !role.Valid() {
			http.Error(w, "missing or invalid actor headers", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, domain.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFrom returns the actor placed in the context by Actor.
func ActorFrom(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(domain.Actor)
	return actor, ok
}
