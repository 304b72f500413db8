// Package httpapi exposes the HTTP surface: the login endpoint, the
// liveness probe, and the WebSocket upgrade route.
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	"duochat/auth"
	"duochat/errors"
	"duochat/observability"
	"duochat/services"
)

type loginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
}

// LoginHandler exchanges the shared secret phrase for a session token.
// All credential failures answer 401 with the same generic message.
func LoginHandler(authService services.IAuthService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var request auth.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			writeJSON(w, http.StatusBadRequest, loginResponse{Success: false, Message: "malformed request body"})
			return
		}

		token, err := authService.Login(request.SecretPhrase)
		switch {
		case stderrors.Is(err, errors.ErrInvalidCredentials):
			log.Warn("Login rejected", "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, loginResponse{Success: false, Message: "invalid credentials"})
		case err != nil:
			log.Error("Login failed", "err", err)
			writeJSON(w, http.StatusInternalServerError, loginResponse{Success: false, Message: "internal error"})
		default:
			writeJSON(w, http.StatusOK, loginResponse{Success: true, Token: string(token)})
		}
	}
}

// LivenessHandler answers the probe with a plain text status line.
func LivenessHandler(monitoring *observability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "duochat server is running (uptime %s)\n", monitoring.Uptime().Round(1e9))
	}
}

// StatsHandler serves the latest observability snapshot as JSON.
func StatsHandler(monitoring *observability.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, monitoring.GetLatest())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
