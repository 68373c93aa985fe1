package httpapi

import (
	"net/http"
	"time"

	"github.com/user/gitsync/internal/scoring"
	"github.com/user/gitsync/pkg/logger"
)

// handleLeaderboard computes the contribution ranking for the tenant
// identified by key. The window defaults to the trailing 7 days ending
// now (UTC); explicit from/to override it as RFC3339 timestamps.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("key")
	chatID, err := s.tenants.TenantBySecret(secret)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve tenant secret")
		writeError(w, http.StatusInternalServerError, "Leaderboard failed.")
		return
	}
	if secret == "" || chatID == "" {
		writeError(w, http.StatusUnauthorized, "Invalid key.")
		return
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -7)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC3339.")
			return
		}
		from = t.UTC()
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC3339.")
			return
		}
		to = t.UTC()
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must precede to.")
		return
	}

	facts, err := s.facts.ContributionFacts(chatID, from, to)
	if err != nil {
		logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to aggregate contribution facts")
		writeError(w, http.StatusInternalServerError, "Leaderboard failed.")
		return
	}

	entries := scoring.Score(facts, scoring.DefaultWeights())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"from":    from.Format(time.RFC3339),
		"to":      to.Format(time.RFC3339),
		"entries": entries,
	})
}
