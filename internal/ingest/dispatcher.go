package ingest

import (
	"context"
	"errors"

	"github.com/user/gitsync/internal/maintenance"
	"github.com/user/gitsync/internal/storage"
	"github.com/user/gitsync/pkg/logger"
)

// ErrUnauthorized is returned when the tenant secret does not resolve to
// exactly the claimed tenant identifier.
var ErrUnauthorized = errors.New("invalid secret_key or chat_id")

// TenantResolver maps tenant secrets to tenant identifiers.
type TenantResolver interface {
	TenantBySecret(secret string) (string, error)
}

// Dispatcher validates inbound events and routes them: to the pending
// queue while maintenance mode is enabled, to the worker pool otherwise.
type Dispatcher struct {
	registry TenantResolver
	gate     maintenance.State
	events   *storage.EventStore
	pool     *Pool
	proc     *Processor
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry TenantResolver, gate maintenance.State, events *storage.EventStore, pool *Pool, proc *Processor) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		gate:     gate,
		events:   events,
		pool:     pool,
		proc:     proc,
	}
}

// Handle authenticates and accepts one inbound event. The upstream source
// expects a fast acknowledgment, so the only error ever returned is
// ErrUnauthorized; every downstream failure is logged and swallowed.
func (d *Dispatcher) Handle(ctx context.Context, kindTag string, raw []byte, secret, tenantClaim string) error {
	if secret == "" || tenantClaim == "" {
		return ErrUnauthorized
	}
	resolved, err := d.registry.TenantBySecret(secret)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve tenant secret")
		return ErrUnauthorized
	}
	if resolved == "" || resolved != tenantClaim {
		logger.Warn().Str("chat_id", tenantClaim).Msg("Webhook auth failed")
		return ErrUnauthorized
	}

	kind := Classify(kindTag)
	meta := extractMeta(raw)

	if d.gate.Closed() {
		pending := storage.PendingEvent{
			ChatID:     resolved,
			Kind:       kind.String(),
			Author:     meta.Author,
			RepoName:   meta.Repo,
			BranchName: meta.Branch,
			Payload:    raw,
		}
		if err := d.events.Enqueue(pending); err != nil {
			logger.Error().Err(err).Str("chat_id", resolved).Msg("Failed to enqueue pending event")
			return nil
		}
		logger.Info().
			Str("chat_id", resolved).
			Str("kind", kind.String()).
			Msg("Maintenance enabled, event queued")
		return nil
	}

	payload := make([]byte, len(raw))
	copy(payload, raw)
	tenant := resolved
	d.pool.Submit(kind.String(), func() {
		if err := d.proc.Process(context.Background(), kind, tenant, payload); err != nil {
			logger.Error().Err(err).
				Str("chat_id", tenant).
				Str("kind", kind.String()).
				Str("repo", meta.Repo).
				Msg("Event processing failed")
		}
	})
	return nil
}
