package middlewares

import (
	"encoding/json"
	"net/http"
)

type dbStatusError struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// DBStatusMiddleware short-circuits requests with 503 while the store
// connection is down, so handlers never touch a dead connection. It is a
// pure function of the liveness query and has no side effects.
func DBStatusMiddleware(isConnected func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isConnected() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(dbStatusError{
					Status:  "error",
					Message: "Database connection is not ready",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
