package server

import (
	"context"
	"net/http"
	"strings"
)

// actorKey is the context key for the acting user identity.
type actorKey struct{}

// ActorMiddleware extracts the caller identity from the X-Actor header so
// audit records can attribute the run to a user. Identity is optional;
// requests without it proceed anonymously.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get("X-Actor"))
		if actor != "" {
			ctx := context.WithValue(r.Context(), actorKey{}, actor)
			r = r.WithContext(ctx)
			AddLogField(ctx, "actor", actor)
		}
		next.ServeHTTP(w, r)
	})
}

// GetActor retrieves the acting user identity from context.
// Returns an empty string if no actor was provided.
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok {
		return actor
	}
	return ""
}
