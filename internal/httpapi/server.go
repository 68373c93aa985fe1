// Package httpapi exposes the webhook intake and the admin/handshake
// endpoints over HTTP.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/user/gitsync/internal/ingest"
	"github.com/user/gitsync/internal/maintenance"
	"github.com/user/gitsync/internal/storage"
	"github.com/user/gitsync/internal/vault"
	"github.com/user/gitsync/pkg/logger"
)

// Server bundles the handler dependencies.
type Server struct {
	dispatcher *ingest.Dispatcher
	tenants    *storage.TenantStore
	facts      *storage.FactStore
	vault      *vault.Vault
	gate       *maintenance.FileGate
	adminKey   string
	flushBatch int
}

// NewServer creates the HTTP surface.
func NewServer(dispatcher *ingest.Dispatcher, tenants *storage.TenantStore, facts *storage.FactStore, v *vault.Vault, gate *maintenance.FileGate, adminKey string, flushBatch int) *Server {
	return &Server{
		dispatcher: dispatcher,
		tenants:    tenants,
		facts:      facts,
		vault:      v,
		gate:       gate,
		adminKey:   adminKey,
		flushBatch: flushBatch,
	}
}

// Register mounts all routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)

	r.Get("/admin/maintenance", s.handleMaintenance)
	r.Post("/admin/flush", s.handleFlush)
	r.Post("/setup", s.handleSetup)

	r.Post("/install/request", s.handleInstallRequest)
	r.Post("/install/token", s.handleInstallToken)
	r.Post("/install/revoke", s.handleInstallRevoke)

	r.Get("/leaderboard", s.handleLeaderboard)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": message,
	})
}
