package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"braindump/internal/auth"
	"braindump/internal/httputil"
)

// AccessTokenCookie is where the Supabase client keeps the access token
// for cookie-based requests.
const AccessTokenCookie = "sb-access-token"

// Pages that only make sense while signed out
var authPages = map[string]bool{
	"/login":  true,
	"/signup": true,
}

// Paths served without a session
var publicPaths = map[string]bool{
	"/api/health": true,
}

// SessionGate authenticates every request with the verifier.
//
// Signed-out users get a 401 problem on /api/ paths and a redirect to
// /login elsewhere. Signed-in users visiting /login or /signup are sent to
// /. Preflight requests and public paths pass through untouched.
func SessionGate(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			var userID, email string
			if token := accessToken(r); token != "" {
				claims, err := verifier.VerifyToken(token)
				if err != nil {
					logger.Debug("rejected access token", "path", r.URL.Path, "error", err)
				} else {
					userID, email = claims.GetUserID(), claims.Email
				}
			}

			if authPages[r.URL.Path] {
				if userID != "" {
					http.Redirect(w, r, "/", http.StatusFound)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if userID == "" {
				if isAPIPath(r.URL.Path) {
					httputil.RespondErrorWithExtras(w, http.StatusUnauthorized, "authentication required",
						map[string]interface{}{"login": "/login"})
					return
				}
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}

			next.ServeHTTP(w, httputil.WithUser(r, userID, email))
		})
	}
}

// accessToken reads the bearer token, falling back to the session cookie.
func accessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

func isAPIPath(path string) bool {
	return path == "/api" || strings.HasPrefix(path, "/api/")
}
