package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/user/gitsync/internal/vault"
	"github.com/user/gitsync/pkg/logger"
)

// handleInstallRequest opens a time-boxed credential handshake for the
// tenant identified by secret_key.
func (s *Server) handleInstallRequest(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret_key")
	userID := r.URL.Query().Get("user_id")
	if secret == "" || userID == "" {
		writeError(w, http.StatusBadRequest, "secret_key and user_id are required.")
		return
	}

	requestID, err := s.vault.RequestInstall(secret, userID)
	if err != nil {
		if errors.Is(err, vault.ErrUnknownSecret) {
			writeError(w, http.StatusNotFound, "Unknown secret_key.")
			return
		}
		logger.Error().Err(err).Msg("Failed to open install request")
		writeError(w, http.StatusInternalServerError, "Install request failed.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"request_id": requestID,
	})
}

type installTokenRequest struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// handleInstallToken completes a pending handshake with a submitted
// token. The token is validated upstream before it is sealed away.
func (s *Server) handleInstallToken(w http.ResponseWriter, r *http.Request) {
	var req installTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body.")
		return
	}
	if req.UserID == "" || req.Token == "" {
		writeError(w, http.StatusBadRequest, "user_id and token are required.")
		return
	}
	if !vault.LooksLikeToken(req.Token) {
		writeError(w, http.StatusUnprocessableEntity, "That does not look like a GitHub token.")
		return
	}

	chatID, err := s.vault.CompleteInstall(r.Context(), req.UserID, req.Username, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, vault.ErrNoPendingRequest):
			writeError(w, http.StatusNotFound, "No pending install request. Start over with /install/request.")
		case errors.Is(err, vault.ErrValidationFailed):
			writeError(w, http.StatusUnprocessableEntity, "Token validation failed. The request is still open; try again with a valid token.")
		default:
			logger.Error().Err(err).Msg("Failed to complete install")
			writeError(w, http.StatusInternalServerError, "Install failed.")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"chat_id": chatID,
	})
}

// handleInstallRevoke removes the stored credential for the tenant
// identified by secret_key. Revoking an absent credential succeeds.
func (s *Server) handleInstallRevoke(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("secret_key")
	chatID, err := s.tenants.TenantBySecret(secret)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve tenant secret")
		writeError(w, http.StatusInternalServerError, "Revoke failed.")
		return
	}
	if secret == "" || chatID == "" {
		writeError(w, http.StatusNotFound, "Unknown secret_key.")
		return
	}

	if err := s.vault.Revoke(chatID); err != nil {
		logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to revoke credential")
		writeError(w, http.StatusInternalServerError, "Revoke failed.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
