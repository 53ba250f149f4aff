package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/capability"
	"github.com/MrEthical07/pinauth/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefs map[string]pinauth.CaptureMode

func (p prefs) SecondFactorOptIn(context.Context, string) (bool, error) { return false, nil }

func (p prefs) CapturePreference(_ context.Context, id string) (pinauth.CaptureMode, error) {
	return p[id], nil
}

func newEngine(t *testing.T) *pinauth.Engine {
	t.Helper()
	cfg := pinauth.DefaultConfig()
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")

	engine, err := pinauth.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		WithCapabilityProvider(capability.NewStatic(map[string][]string{
			"emp-expense": {"expense"},
			"emp-time":    {"time-tracking"},
		})).
		WithPreferenceStore(prefs{"emp-time": pinauth.CaptureManual}).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)
	return engine
}

func routeFromPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/app/")
}

func appPath(route string) string {
	return "/app/" + route
}

func chain(engine *pinauth.Engine) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, _ := SessionFromContext(r.Context())
		_, _ = w.Write([]byte(info.PrincipalID + ":" + routeFromPath(r)))
	})
	return RequireSession(engine)(
		RestrictRoutes(engine, routeFromPath, appPath)(
			CaptureRedirect(engine, routeFromPath, appPath)(final)))
}

func issue(t *testing.T, engine *pinauth.Engine, id string, restricted bool) *pinauth.Session {
	t.Helper()
	var opts []pinauth.SessionOption
	if restricted {
		opts = append(opts, pinauth.Restricted())
	}
	sess, err := engine.IssueSession(context.Background(), id, opts...)
	require.NoError(t, err)
	return sess
}

func TestRequireSessionRejectsMissingAndBadTokens(t *testing.T) {
	engine := newEngine(t)
	h := chain(engine)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/app/expense", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/app/expense", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	RequireSession(nil)(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSessionClearsRejectedCookie(t *testing.T) {
	engine := newEngine(t)
	h := chain(engine)
	sess := issue(t, engine, "emp-expense", true)
	tampered := sess.Token[:len(sess.Token)-2] + "xx"

	for _, value := range []string{"garbage.token.value", tampered} {
		req := httptest.NewRequest(http.MethodGet, "/app/expense", nil)
		req.AddCookie(&http.Cookie{Name: "pin_session", Value: value})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1, "rejected cookie must be expired")
		assert.Equal(t, "pin_session", cookies[0].Name)
		assert.Empty(t, cookies[0].Value)
		assert.Less(t, cookies[0].MaxAge, 0)
		assert.True(t, cookies[0].HttpOnly)
	}

	req := httptest.NewRequest(http.MethodGet, "/app/expense", nil)
	req.Header.Set("Authorization", "Bearer garbage.token.value")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies(), "bearer callers get no cookie")
}

func TestRestrictedSessionAllowedAndRedirected(t *testing.T) {
	engine := newEngine(t)
	h := chain(engine)
	sess := issue(t, engine, "emp-expense", true)

	req := httptest.NewRequest(http.MethodGet, "/app/expense", nil)
	req.AddCookie(&http.Cookie{Name: "pin_session", Value: sess.Token})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "emp-expense:expense", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/app/clock", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/expense", rec.Header().Get("Location"))
}

func TestRestrictedSessionWithoutCapabilitiesDenied(t *testing.T) {
	engine := newEngine(t)
	sess := issue(t, engine, "emp-nobody", true)

	req := httptest.NewRequest(http.MethodGet, "/app/reports", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	chain(engine).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnrestrictedSessionPassesThrough(t *testing.T) {
	engine := newEngine(t)
	sess := issue(t, engine, "emp-nobody", false)

	req := httptest.NewRequest(http.MethodGet, "/app/anything", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	chain(engine).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCaptureRedirectFollowsPreference(t *testing.T) {
	engine := newEngine(t)
	sess := issue(t, engine, "emp-time", true)

	req := httptest.NewRequest(http.MethodGet, "/app/clock", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	chain(engine).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/app/manual-entry", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/app/manual-entry", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	chain(engine).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCaptureRedirectSkipsTargetsOutsideAllowList(t *testing.T) {
	engine := newEngine(t)
	info := &pinauth.SessionInfo{PrincipalID: "emp-time", Restricted: true}

	h := CaptureRedirect(engine, routeFromPath, appPath)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/app/clock", nil)
	ctx := WithSession(req.Context(), info)
	ctx = context.WithValue(ctx, allowedRoutesContextKey{}, []string{"clock", "reports"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSessionCookieHelpers(t *testing.T) {
	engine := newEngine(t)
	sess := issue(t, engine, "emp-1", true)

	rec := httptest.NewRecorder()
	SetSessionCookie(rec, engine, sess)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "pin_session", c.Name)
	assert.Equal(t, sess.Token, c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, engine)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	assert.Equal(t, "10.0.0.7", ClientIP(req))
	req.RemoteAddr = "[::1]:80"
	assert.Equal(t, "::1", ClientIP(req))
	req.RemoteAddr = "bare"
	assert.Equal(t, "bare", ClientIP(req))
}
