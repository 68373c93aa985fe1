// Package vault stores sealed upstream access tokens and runs the
// credential install handshake.
package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/user/gitsync/internal/storage"
	"github.com/user/gitsync/pkg/logger"
)

// Sentinel errors surfaced to the handshake caller.
var (
	ErrUnknownSecret    = errors.New("unknown tenant secret")
	ErrNoPendingRequest = errors.New("no pending install request")
	ErrValidationFailed = errors.New("token validation failed")
)

// TokenValidator checks a candidate token against the upstream identity
// endpoint and returns the authenticated login.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// Notifier delivers plain tenant-facing messages. May be nil; handshake
// outcomes are then silent.
type Notifier interface {
	Send(ctx context.Context, chatID, text string) error
}

// Vault seals tokens with a process-wide key and persists them per tenant.
type Vault struct {
	store      *storage.TenantStore
	key        [32]byte
	validator  TokenValidator
	notifier   Notifier
	requestTTL time.Duration
}

// New creates a vault. requestTTL bounds the install handshake window.
func New(store *storage.TenantStore, key [32]byte, validator TokenValidator, notifier Notifier, requestTTL time.Duration) *Vault {
	return &Vault{
		store:      store,
		key:        key,
		validator:  validator,
		notifier:   notifier,
		requestTTL: requestTTL,
	}
}

// RequestInstall starts the handshake: it resolves the tenant behind the
// setup secret and records a pending request for the user. Only the most
// recent request per user counts.
func (v *Vault) RequestInstall(secret, userID string) (string, error) {
	chatID, err := v.store.TenantBySecret(secret)
	if err != nil {
		return "", fmt.Errorf("failed to resolve secret: %w", err)
	}
	if chatID == "" {
		return "", ErrUnknownSecret
	}
	requestID, err := v.store.CreatePendingRequest(secret, userID, chatID)
	if err != nil {
		return "", fmt.Errorf("failed to create pending request: %w", err)
	}
	logger.Info().Str("chat_id", chatID).Str("user_id", userID).Msg("Install request created")
	return requestID, nil
}

// pendingFor returns the user's live pending request, lazily deleting an
// expired one.
func (v *Vault) pendingFor(userID string) (*storage.PendingRequest, error) {
	req, err := v.store.LatestPendingRequest(userID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, nil
	}
	if time.Since(req.CreatedAt) > v.requestTTL {
		if err := v.store.ClearPendingRequests(userID); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to clear expired request")
		}
		return nil, nil
	}
	return req, nil
}

// CompleteInstall validates a candidate token and, on success, seals and
// stores it as the tenant's credential, consuming the pending request. On
// validation failure the pending request is preserved so the user may retry
// within the TTL. Returns the tenant the credential was installed for.
func (v *Vault) CompleteInstall(ctx context.Context, userID, username, token string) (string, error) {
	req, err := v.pendingFor(userID)
	if err != nil {
		return "", fmt.Errorf("failed to look up pending request: %w", err)
	}
	if req == nil {
		return "", ErrNoPendingRequest
	}

	if _, err := v.validator.ValidateToken(ctx, token); err != nil {
		logger.Warn().Err(err).Str("chat_id", req.ChatID).Msg("Token validation failed")
		return "", ErrValidationFailed
	}

	sealed, err := v.seal(token)
	if err != nil {
		return "", fmt.Errorf("failed to seal token: %w", err)
	}
	if err := v.store.SaveCredential(req.ChatID, sealed, username); err != nil {
		return "", fmt.Errorf("failed to save credential: %w", err)
	}
	if err := v.store.ClearPendingRequests(userID); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to clear pending request")
	}

	if v.notifier != nil {
		msg := fmt.Sprintf("✅ GitHub token installed by %s. Exact per-file insertions/deletions enabled.", username)
		if err := v.notifier.Send(ctx, req.ChatID, msg); err != nil {
			logger.Warn().Err(err).Str("chat_id", req.ChatID).Msg("Failed to announce install")
		}
	}

	logger.Info().Str("chat_id", req.ChatID).Str("installed_by", username).Msg("Credential installed")
	return req.ChatID, nil
}

// Cancel drops the user's pending request, if any.
func (v *Vault) Cancel(userID string) error {
	return v.store.ClearPendingRequests(userID)
}

// Revoke deletes the tenant's credential. Revoking an absent credential is
// a no-op success.
func (v *Vault) Revoke(chatID string) error {
	return v.store.DeleteCredential(chatID)
}

// Token returns the tenant's unsealed token, or empty when no live
// credential exists.
func (v *Vault) Token(chatID string) (string, error) {
	cred, err := v.store.GetCredential(chatID)
	if err != nil {
		return "", err
	}
	if cred == nil {
		return "", nil
	}
	token, err := v.unseal(cred.SealedToken)
	if err != nil {
		return "", fmt.Errorf("failed to unseal token: %w", err)
	}
	return token, nil
}

// Creator returns the installer identity recorded with the tenant's
// credential, or empty when absent.
func (v *Vault) Creator(chatID string) (string, error) {
	cred, err := v.store.GetCredential(chatID)
	if err != nil || cred == nil {
		return "", err
	}
	return cred.CreatedBy, nil
}

// seal encrypts a token as base64(nonce || box).
func (v *Vault) seal(token string) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	sealed := secretbox.Seal(nonce[:], []byte(token), &nonce, &v.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// unseal reverses seal.
func (v *Vault) unseal(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(raw) < 24 {
		return "", errors.New("sealed token too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plain, ok := secretbox.Open(nil, raw[24:], &nonce, &v.key)
	if !ok {
		return "", errors.New("sealed token failed to open")
	}
	return string(plain), nil
}

// LooksLikeToken is the input-shaping heuristic callers apply before
// attempting validation. Not a security boundary.
func LooksLikeToken(s string) bool {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"ghp_", "gho_", "github_pat_", "ghs_", "ghu_", "ghr_"} {
		if strings.Contains(s, prefix) {
			return true
		}
	}
	return len(s) > 30
}
