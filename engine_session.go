package pinauth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/pinauth/token"
)

// SessionOption adjusts a single IssueSession call.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	restricted bool
}

// Restricted marks the session as PIN-originated: route authorization applies to
// every request it carries.
func Restricted() SessionOption {
	return func(o *sessionOptions) { o.restricted = true }
}

// IssueSession signs a session token for principalID valid for Session.TTL. When a
// PlatformSession is configured the host session is established first and its
// handle is embedded in the token.
func (e *Engine) IssueSession(ctx context.Context, principalID string, opts ...SessionOption) (*Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if principalID == "" {
		return nil, ErrInvalidPrincipal
	}

	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	var handle string
	if e.platform != nil {
		h, err := e.platform.Establish(ctx, principalID)
		if err != nil {
			e.sugar.Errorw("platform session establish failed", "principal_id", principalID, "error", err)
			wrapped := fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
			e.emitAudit(ctx, auditEventSessionIssued, false, principalID, "", "", wrapped, nil)
			return nil, wrapped
		}
		handle = h
	}

	signed, claims, err := e.tokens.Issue(principalID, token.PurposeSession, e.config.Session.TTL, o.restricted, handle)
	if err != nil {
		e.sugar.Errorw("session token signing failed", "principal_id", principalID, "error", err)
		if handle != "" {
			if cerr := e.platform.Clear(ctx, handle); cerr != nil {
				e.sugar.Warnw("platform session rollback failed", "principal_id", principalID, "error", cerr)
			}
		}
		wrapped := fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
		e.emitAudit(ctx, auditEventSessionIssued, false, principalID, "", "", wrapped, nil)
		return nil, wrapped
	}

	sess := &Session{
		Token:          signed,
		ID:             claims.ID,
		PrincipalID:    principalID,
		IssuedAt:       claims.IssuedAt.Time,
		ExpiresAt:      claims.ExpiresAt.Time,
		Restricted:     o.restricted,
		PlatformHandle: handle,
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, principalID, sess.ID, "", nil, func() map[string]string {
		if o.restricted {
			return map[string]string{"restricted": "true"}
		}
		return nil
	})
	return sess, nil
}

// ValidateSession verifies tok and returns its content. Malformed, expired and
// tampered tokens all return [ErrSessionInvalid]; nothing is read from a store.
func (e *Engine) ValidateSession(ctx context.Context, tok string) (*SessionInfo, error) {
	if e == nil || e.tokens == nil {
		return nil, ErrEngineNotReady
	}
	claims, err := e.tokens.Parse(tok, token.PurposeSession)
	if err != nil {
		e.metricInc(MetricSessionInvalid)
		return nil, ErrSessionInvalid
	}
	return sessionInfoFromClaims(claims), nil
}

// DestroySession ends the session carried by tok. It is idempotent: an empty,
// malformed or already expired token is not an error. When the token is
// correctly signed and names a platform session, that session is cleared even
// if the token has expired.
func (e *Engine) DestroySession(ctx context.Context, tok string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if tok == "" {
		return nil
	}

	claims, err := e.tokens.ParseExpired(tok, token.PurposeSession)
	if err != nil {
		return nil
	}

	if e.platform != nil && claims.PlatformHandle != "" {
		if err := e.platform.Clear(ctx, claims.PlatformHandle); err != nil {
			e.sugar.Warnw("platform session clear failed", "principal_id", claims.Subject, "error", err)
		}
	}

	e.metricInc(MetricSessionDestroyed)
	e.emitAudit(ctx, auditEventSessionDestroyed, true, claims.Subject, claims.ID, "", nil, nil)
	return nil
}

func sessionInfoFromClaims(c *token.Claims) *SessionInfo {
	info := &SessionInfo{
		ID:             c.ID,
		PrincipalID:    c.Subject,
		Restricted:     c.Restricted,
		PlatformHandle: c.PlatformHandle,
	}
	if c.IssuedAt != nil {
		info.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		info.ExpiresAt = c.ExpiresAt.Time
	}
	return info
}
