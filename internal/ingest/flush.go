package ingest

import (
	"context"

	"github.com/user/gitsync/pkg/logger"
)

// Flush replays queued events oldest first, for one tenant or for all
// tenants when chatID is empty. Events that fail processing stay queued
// for a later pass; successfully processed events are deleted. Returns how
// many were sent and how many failed.
func (d *Dispatcher) Flush(ctx context.Context, chatID string, limit int) (sent, failed int, err error) {
	pending, err := d.events.PendingEvents(chatID, limit)
	if err != nil {
		return 0, 0, err
	}

	for _, pe := range pending {
		kind := Classify(pe.Kind)
		if perr := d.proc.Process(ctx, kind, pe.ChatID, pe.Payload); perr != nil {
			logger.Error().Err(perr).
				Int64("pending_id", pe.ID).
				Str("chat_id", pe.ChatID).
				Msg("Failed to replay queued event")
			failed++
			continue
		}
		if derr := d.events.DeletePending(pe.ID); derr != nil {
			logger.Error().Err(derr).
				Int64("pending_id", pe.ID).
				Msg("Failed to delete replayed event")
			failed++
			continue
		}
		sent++
	}

	if sent > 0 || failed > 0 {
		logger.Info().
			Int("sent", sent).
			Int("failed", failed).
			Str("chat_id", chatID).
			Msg("Flushed queued events")
	}
	return sent, failed, nil
}
