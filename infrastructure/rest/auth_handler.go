package rest

import (
	"direct-chat/auth"
	"direct-chat/errors"
	"direct-chat/services"
	"encoding/json"
	"fmt"
	"net/http"
)

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, r, fmt.Errorf("%w: invalid request body", errors.ErrValidation))
		return
	}
	session, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	h.sendSession(w, session, "Account Created Successfully", http.StatusCreated)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.log, r, fmt.Errorf("%w: invalid request body", errors.ErrValidation))
		return
	}
	session, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	h.sendSession(w, session, "Login Successful", http.StatusOK)
}

func (h *Handler) logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, h.cookie("", -1))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// userVerification answers 200 in every case, status tells whether the
// session is still valid. A valid session gets a fresh token.
func (h *Handler) userVerification(w http.ResponseWriter, r *http.Request) {
	raw := auth.TokenFromRequest(r)
	if raw == "" {
		writeJSON(w, http.StatusOK, verificationResponse{Status: false})
		return
	}
	session, err := h.auth.Verify(r.Context(), raw)
	if err != nil {
		h.log.Debug("Session verification failed", "error", err)
		writeJSON(w, http.StatusOK, verificationResponse{Status: false})
		return
	}
	http.SetCookie(w, h.cookie(session.Token, int(h.cfg.TokenDuration.Seconds())))
	user := toUserResponse(session.User)
	writeJSON(w, http.StatusOK, verificationResponse{Status: true, Token: session.Token, User: &user})
}

func (h *Handler) sendSession(w http.ResponseWriter, session services.Session, message string, status int) {
	http.SetCookie(w, h.cookie(session.Token, int(h.cfg.TokenDuration.Seconds())))
	writeJSON(w, status, authResponse{
		Success: true,
		Message: message,
		Token:   session.Token,
		User:    toUserResponse(session.User),
	})
}

func (h *Handler) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     auth.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	}
}
