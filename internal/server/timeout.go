package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps how long a request context stays alive. Cancellation
// is cooperative: downstream calls that honor ctx.Done() stop, but a handler
// that ignores its context keeps running.
func TimeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
