package middleware

import (
	"net/http"

	"ageme/internal/debug"
)

// DebugHeader is the opt-in header for the diagnostic echo.
const DebugHeader = "x-ageme-debug"

// DebugEcho attaches a debug recorder to the request context when the client
// sent the opt-in header. Requests without the header carry no recorder and
// pay nothing.
func DebugEcho(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(DebugHeader) == "1" {
			r = r.WithContext(debug.WithRecorder(r.Context(), debug.NewRecorder()))
		}
		next.ServeHTTP(w, r)
	})
}
