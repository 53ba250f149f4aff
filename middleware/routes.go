package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/pinauth"
)

type allowedRoutesContextKey struct{}

// AllowedRoutesFromContext returns the allow-list computed by [RestrictRoutes].
func AllowedRoutesFromContext(ctx context.Context) ([]string, bool) {
	routes, ok := ctx.Value(allowedRoutesContextKey{}).([]string)
	return routes, ok
}

// RouteFunc extracts the logical route name from a request.
type RouteFunc func(*http.Request) string

// RedirectFunc turns a logical route name into a URL path.
type RedirectFunc func(route string) string

// RestrictRoutes enforces the route allow-list on restricted sessions. It must
// run after [RequireSession]; unrestricted sessions pass through untouched.
// A redirect decision answers 303 See Other, a deny 403, and a capability
// outage 503.
func RestrictRoutes(engine *pinauth.Engine, route RouteFunc, redirect RedirectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := SessionFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if !info.Restricted {
				next.ServeHTTP(w, r)
				return
			}

			d, allowed, err := engine.AuthorizeWithRoutes(r.Context(), info.PrincipalID, route(r))
			if err != nil {
				status := http.StatusServiceUnavailable
				if errors.Is(err, pinauth.ErrEngineNotReady) {
					status = http.StatusInternalServerError
				}
				http.Error(w, d.Message, status)
				return
			}

			switch d.Kind {
			case pinauth.DecisionAllow:
				ctx := context.WithValue(r.Context(), allowedRoutesContextKey{}, allowed)
				next.ServeHTTP(w, r.WithContext(ctx))
			case pinauth.DecisionRedirect:
				http.Redirect(w, r, redirect(d.Route), http.StatusSeeOther)
			default:
				http.Error(w, d.Message, http.StatusForbidden)
			}
		})
	}
}

// CaptureRedirect applies the time-entry capture preference to restricted
// sessions. A redirect is followed only when its target is in the allow-list
// recorded by [RestrictRoutes]; preference lookup failures fall through to the
// requested route.
func CaptureRedirect(engine *pinauth.Engine, route RouteFunc, redirect RedirectFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := SessionFromContext(r.Context())
			if !ok || !info.Restricted {
				next.ServeHTTP(w, r)
				return
			}

			d, err := engine.CaptureRoute(r.Context(), info.PrincipalID, route(r))
			if err != nil || d.Kind != pinauth.DecisionRedirect {
				next.ServeHTTP(w, r)
				return
			}

			if allowed, ok := AllowedRoutesFromContext(r.Context()); ok && !contains(allowed, d.Route) {
				next.ServeHTTP(w, r)
				return
			}
			http.Redirect(w, r, redirect(d.Route), http.StatusSeeOther)
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
