package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"tillsync/pkg/apierror"
	"tillsync/pkg/response"
)

// Recovery turns a handler panic into a 500 response instead of a
// dropped connection, keeping the daemon alive for the next request.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[HTTP] Panic on %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				response.Error(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
