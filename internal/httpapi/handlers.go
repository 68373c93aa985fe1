package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/user/gitsync/internal/ingest"
	"github.com/user/gitsync/pkg/logger"
)

// handleWebhook is the intake endpoint. It acknowledges fast: the only
// failure the caller ever sees is bad authentication, everything else is
// handled off-request.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body.")
		return
	}
	defer r.Body.Close()

	secret := r.URL.Query().Get("secret_key")
	chatID := r.URL.Query().Get("chat_id")
	kindTag := r.Header.Get("X-GitHub-Event")

	if err := s.dispatcher.Handle(r.Context(), kindTag, body, secret, chatID); err != nil {
		if errors.Is(err, ingest.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Invalid secret_key or chat_id.")
			return
		}
		writeError(w, http.StatusInternalServerError, "Internal error.")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

// handleMaintenance toggles maintenance mode. Turning it off with
// auto_flush=1 replays the queue before responding.
func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != s.adminKey {
		writeError(w, http.StatusUnauthorized, "Invalid admin key.")
		return
	}

	mode := r.URL.Query().Get("mode")
	switch mode {
	case "on":
		if err := s.gate.Enable(); err != nil {
			logger.Error().Err(err).Msg("Failed to enable maintenance mode")
			writeError(w, http.StatusInternalServerError, "Failed to enable maintenance mode.")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "maintenance": "on"})
	case "off":
		if err := s.gate.Disable(); err != nil {
			logger.Error().Err(err).Msg("Failed to disable maintenance mode")
			writeError(w, http.StatusInternalServerError, "Failed to disable maintenance mode.")
			return
		}
		resp := map[string]any{"status": "ok", "maintenance": "off"}
		if r.URL.Query().Get("auto_flush") == "1" {
			sent, failed, err := s.dispatcher.Flush(r.Context(), r.URL.Query().Get("chat_id"), s.flushBatch)
			if err != nil {
				logger.Error().Err(err).Msg("Auto-flush failed")
				writeError(w, http.StatusInternalServerError, "Flush failed.")
				return
			}
			resp["flushed_sent"] = sent
			resp["flushed_failed"] = failed
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeError(w, http.StatusBadRequest, "mode must be on or off.")
	}
}

// handleFlush replays queued events for one tenant, or all tenants when
// chat_id is omitted.
func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != s.adminKey {
		writeError(w, http.StatusUnauthorized, "Invalid admin key.")
		return
	}

	sent, failed, err := s.dispatcher.Flush(r.Context(), r.URL.Query().Get("chat_id"), s.flushBatch)
	if err != nil {
		logger.Error().Err(err).Msg("Flush failed")
		writeError(w, http.StatusInternalServerError, "Flush failed.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"sent":   sent,
		"failed": failed,
	})
}

// handleSetup creates or rotates the webhook secret for a tenant.
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("key") != s.adminKey {
		writeError(w, http.StatusUnauthorized, "Invalid admin key.")
		return
	}
	chatID := r.URL.Query().Get("chat_id")
	if chatID == "" {
		writeError(w, http.StatusBadRequest, "chat_id is required.")
		return
	}

	secret, err := s.tenants.Setup(chatID)
	if err != nil {
		logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to set up tenant")
		writeError(w, http.StatusInternalServerError, "Setup failed.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"chat_id":    chatID,
		"secret_key": secret,
	})
}
