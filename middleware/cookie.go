package middleware

import (
	"net/http"
	"time"

	"github.com/MrEthical07/pinauth"
)

// SetSessionCookie writes sess as the engine's session cookie: HttpOnly, with
// the configured Secure and SameSite policy, expiring with the token.
func SetSessionCookie(w http.ResponseWriter, engine *pinauth.Engine, sess *pinauth.Session) {
	cfg := engine.Config()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Session.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   cfg.Security.RequireSecureCookies,
		SameSite: cfg.Security.SameSitePolicy,
	})
}

// ClearSessionCookie expires the engine's session cookie.
func ClearSessionCookie(w http.ResponseWriter, engine *pinauth.Engine) {
	cfg := engine.Config()
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.Session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Security.RequireSecureCookies,
		SameSite: cfg.Security.SameSitePolicy,
	})
}
