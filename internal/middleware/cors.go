package middleware

import "net/http"

// CORS returns a permissive CORS middleware for the action endpoints.
//
// WHY PERMISSIVE?
// The API is cookie-authenticated and the frontend is served from the same
// origin, so CORS is not the access-control boundary here — RequireAuth is.
// The open headers exist for local development setups where the frontend dev
// server runs on a different port.
//
// OPTIONS preflight requests are answered directly with 200 and an empty
// body; they never reach the auth middleware (a preflight carries no
// cookies, so letting it through would 401 every cross-port browser call).
func CORS() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
