package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/pinauth"
)

type sessionContextKey struct{}

// SessionFromContext returns the session validated by [RequireSession].
func SessionFromContext(ctx context.Context) (*pinauth.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey{}).(*pinauth.SessionInfo)
	return info, ok
}

// WithSession stores info in ctx the way [RequireSession] does.
func WithSession(ctx context.Context, info *pinauth.SessionInfo) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, info)
}

// RequireSession rejects requests without a valid session token with 401. The
// token is read from the session cookie first, then from a bearer
// Authorization header. The client IP is attached for audit records. A token
// that fails validation is discarded: DestroySession releases any platform
// session it names and a cookie-borne token gets an expiring Set-Cookie.
func RequireSession(engine *pinauth.Engine) func(http.Handler) http.Handler {
	var cookieName string
	if engine != nil {
		cookieName = engine.Config().Session.CookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, fromCookie, ok := sessionToken(r, cookieName)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := pinauth.WithClientIP(r.Context(), ClientIP(r))
			info, err := engine.ValidateSession(ctx, token)
			if err != nil {
				_ = engine.DestroySession(ctx, token)
				if fromCookie {
					ClearSessionCookie(w, engine)
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(ctx, info)))
		})
	}
}

// SessionToken extracts the session token from cookieName or a bearer header.
func SessionToken(r *http.Request, cookieName string) (string, bool) {
	token, _, ok := sessionToken(r, cookieName)
	return token, ok
}

// sessionToken also reports whether the token came from the cookie.
func sessionToken(r *http.Request, cookieName string) (token string, fromCookie, ok bool) {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value, true, true
		}
	}
	token, ok = bearerToken(r.Header.Get("Authorization"))
	return token, false, ok
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
