package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/pinauth"
	pinmw "github.com/MrEthical07/pinauth/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 10

type loginRequest struct {
	PrincipalID string `json:"principal_id"`
	PIN         string `json:"pin"`
}

type secondFactorRequest struct {
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

type sessionResponse struct {
	Token      string    `json:"token"`
	SessionID  string    `json:"session_id"`
	ExpiresAt  time.Time `json:"expires_at"`
	Restricted bool      `json:"restricted"`
}

type challengeResponse struct {
	SecondFactorRequired bool      `json:"second_factor_required"`
	Challenge            string    `json:"challenge"`
	ExpiresAt            time.Time `json:"expires_at"`
}

type failureResponse struct {
	Error             string     `json:"error"`
	Reason            string     `json:"reason,omitempty"`
	RemainingAttempts *int       `json:"remaining_attempts,omitempty"`
	LockedUntil       *time.Time `json:"locked_until,omitempty"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := pinauth.WithClientIP(r.Context(), pinmw.ClientIP(r))
	res, err := s.engine.Login(ctx, req.PrincipalID, req.PIN)
	if err != nil {
		s.writeEngineError(w, "login", err)
		return
	}

	if !res.Verify.Success {
		s.writeVerifyFailure(w, res.Verify)
		return
	}
	if res.SecondFactorRequired {
		writeJSON(w, http.StatusOK, challengeResponse{
			SecondFactorRequired: true,
			Challenge:            res.Challenge,
			ExpiresAt:            res.ChallengeExpiresAt,
		})
		return
	}
	s.writeSession(w, res.Session)
}

func (s *Server) handleSecondFactor(w http.ResponseWriter, r *http.Request) {
	var req secondFactorRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := pinauth.WithClientIP(r.Context(), pinmw.ClientIP(r))
	res, err := s.engine.CompleteSecondFactor(ctx, req.Challenge, req.Code)
	if err != nil {
		s.writeEngineError(w, "second_factor", err)
		return
	}
	if !res.SecondFactor.Success {
		writeJSON(w, http.StatusUnauthorized, failureResponse{
			Error:  res.SecondFactor.Message,
			Reason: string(res.SecondFactor.Reason),
		})
		return
	}
	s.writeSession(w, res.Session)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	tok, ok := pinmw.SessionToken(r, s.engine.Config().Session.CookieName)
	if ok {
		ctx := pinauth.WithClientIP(r.Context(), pinmw.ClientIP(r))
		if err := s.engine.DestroySession(ctx, tok); err != nil && !errors.Is(err, pinauth.ErrSessionInvalid) {
			s.logger.Warn("session destroy failed", zap.Error(err))
		}
	}
	pinmw.ClearSessionCookie(w, s.engine)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	info, _ := pinmw.SessionFromContext(r.Context())
	allowed, _ := pinmw.AllowedRoutesFromContext(r.Context())
	body := map[string]any{
		"route":      routeParam(r),
		"restricted": info != nil && info.Restricted,
	}
	if info != nil {
		body["principal_id"] = info.PrincipalID
	}
	if allowed != nil {
		body["allowed_routes"] = allowed
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) writeSession(w http.ResponseWriter, sess *pinauth.Session) {
	pinmw.SetSessionCookie(w, s.engine, sess)
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:      sess.Token,
		SessionID:  sess.ID,
		ExpiresAt:  sess.ExpiresAt,
		Restricted: sess.Restricted,
	})
}

func (s *Server) writeVerifyFailure(w http.ResponseWriter, v *pinauth.VerifyResult) {
	body := failureResponse{Error: v.Message, Reason: string(v.Reason)}
	status := http.StatusUnauthorized

	switch v.Reason {
	case pinauth.ReasonInvalidFormat:
		status = http.StatusBadRequest
	case pinauth.ReasonLocked:
		status = http.StatusLocked
		body.LockedUntil = v.LockedUntil
		if v.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(v.RetryAfter.Round(time.Second)/time.Second)))
		}
	case pinauth.ReasonInvalidPIN:
		remaining := v.RemainingAttempts
		body.RemainingAttempts = &remaining
	}
	writeJSON(w, status, body)
}

func (s *Server) writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, pinauth.ErrThrottled):
		writeError(w, http.StatusTooManyRequests, "too many attempts")
	case errors.Is(err, pinauth.ErrSecondFactorChallengeInvalid):
		writeError(w, http.StatusUnauthorized, "challenge expired, sign in again")
	case errors.Is(err, pinauth.ErrStoreUnavailable),
		errors.Is(err, pinauth.ErrSecondFactorUnavailable),
		errors.Is(err, pinauth.ErrSessionCreationFailed):
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "service unavailable, try again later")
	default:
		s.logger.Error("request failed", zap.String("op", op), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failureResponse{Error: msg})
}
