// Package middleware exposes net/http adapters for PIN sessions built on
// pinauth.Engine.
//
// # Chain
//
//	RequireSession   cookie or bearer token -> Engine.ValidateSession
//	RestrictRoutes   restricted sessions -> Engine.AuthorizeWithRoutes
//	CaptureRedirect  clock/manual preference -> Engine.CaptureRoute
//
// Cookie helpers set and clear the session cookie with the engine's cookie
// policy.
//
// # What this package must NOT do
//
//   - Parse or sign tokens directly (delegates to Engine).
//   - Decide access itself beyond translating Engine decisions to HTTP.
package middleware
