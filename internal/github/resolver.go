package github

import (
	"context"
	"fmt"

	"github.com/user/gitsync/pkg/logger"
)

// UnavailableError reports that exact diff statistics could not be
// obtained. Revoked is set when the failure caused the tenant's credential
// to be deleted, which the caller folds into the record's confidence tag.
type UnavailableError struct {
	Reason  string
	Revoked bool
}

func (e *UnavailableError) Error() string {
	return "diff statistics unavailable: " + e.Reason
}

// TokenSource provides and revokes per-tenant credentials. Implemented by
// the vault.
type TokenSource interface {
	Token(chatID string) (string, error)
	Creator(chatID string) (string, error)
	Revoke(chatID string) error
}

// Alerter delivers tenant-facing warnings. May be nil.
type Alerter interface {
	Send(ctx context.Context, chatID, text string) error
}

// Resolver obtains exact per-file change statistics for a push, falling
// back with a typed error the caller uses to switch to estimates.
type Resolver struct {
	client  *Client
	tokens  TokenSource
	alerter Alerter
}

// NewResolver creates a diff resolver.
func NewResolver(client *Client, tokens TokenSource, alerter Alerter) *Resolver {
	return &Resolver{client: client, tokens: tokens, alerter: alerter}
}

// Resolve attempts exact resolution for a tenant. On authorization failure
// the stored credential is revoked and the tenant notified before the
// *UnavailableError is returned; any other failure is non-destructive.
func (r *Resolver) Resolve(ctx context.Context, owner, repo, before, after, chatID string) (map[string]FileDelta, error) {
	token, err := r.tokens.Token(chatID)
	if err != nil {
		logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to load token")
		return nil, &UnavailableError{Reason: "no-token"}
	}
	if token == "" {
		return nil, &UnavailableError{Reason: "no-token"}
	}

	files, status, err := r.client.Compare(ctx, token, owner, repo, before, after)
	if err == nil {
		return files, nil
	}

	if status == 401 || status == 403 {
		reason := fmt.Sprintf("auth-failed-%d", status)
		r.markTokenInvalid(ctx, chatID, reason)
		return nil, &UnavailableError{Reason: reason, Revoked: true}
	}

	logger.Warn().Err(err).
		Str("chat_id", chatID).
		Str("repo", owner+"/"+repo).
		Int("status", status).
		Msg("Compare API failed")
	if status != 0 {
		return nil, &UnavailableError{Reason: fmt.Sprintf("error-%d", status)}
	}
	return nil, &UnavailableError{Reason: "exception"}
}

// markTokenInvalid deletes the rejected credential and sends two notices:
// a tenant-wide warning that exact counts are disabled, and a personal one
// for the original installer when known.
func (r *Resolver) markTokenInvalid(ctx context.Context, chatID, reason string) {
	creator, err := r.tokens.Creator(chatID)
	if err != nil {
		logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to look up token creator")
	}
	if err := r.tokens.Revoke(chatID); err != nil {
		logger.Error().Err(err).Str("chat_id", chatID).Msg("Failed to revoke credential")
	}
	logger.Warn().Str("chat_id", chatID).Str("reason", reason).Msg("Credential revoked after auth failure")

	if r.alerter == nil {
		return
	}
	warning := fmt.Sprintf("⚠️ GitSync: The saved GitHub token for this group appears invalid or lacks required permissions. "+
		"Exact per-file counts are now disabled until an admin reconfigures the token.\n\nReason: %s", reason)
	if err := r.alerter.Send(ctx, chatID, warning); err != nil {
		logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to send revocation warning")
	}
	if creator != "" {
		personal := fmt.Sprintf("Hi %s, your saved GitHub token for this group appears invalid or revoked. "+
			"Please reconfigure it via the group's secure setup link.", creator)
		if err := r.alerter.Send(ctx, chatID, personal); err != nil {
			logger.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to notify token creator")
		}
	}
}
