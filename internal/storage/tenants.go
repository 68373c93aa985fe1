package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TenantStore handles tenant secret and credential database operations.
type TenantStore struct {
	db *Database
}

// NewTenantStore creates a new tenant store.
func NewTenantStore(db *Database) *TenantStore {
	return &TenantStore{db: db}
}

// Setup generates a fresh secret for a tenant, replacing any prior one.
// Running setup again rotates the secret.
func (s *TenantStore) Setup(chatID string) (string, error) {
	secret := uuid.NewString()
	query := `
		INSERT INTO tenant_secrets (secret_key, chat_id)
		VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			secret_key = excluded.secret_key,
			created_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, secret, chatID); err != nil {
		return "", err
	}
	return secret, nil
}

// TenantBySecret resolves a secret to its tenant identifier. Returns an
// empty string when the secret is unknown.
func (s *TenantStore) TenantBySecret(secret string) (string, error) {
	var chatID string
	err := s.db.Get(&chatID, `SELECT chat_id FROM tenant_secrets WHERE secret_key = ?`, secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return chatID, err
}

// SecretByTenant returns the tenant's current secret, or empty if the
// tenant has never run setup.
func (s *TenantStore) SecretByTenant(chatID string) (string, error) {
	var secret string
	err := s.db.Get(&secret, `SELECT secret_key FROM tenant_secrets WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return secret, err
}

// SaveCredential stores a sealed token for a tenant, replacing any prior
// credential.
func (s *TenantStore) SaveCredential(chatID, sealedToken, createdBy string) error {
	query := `
		INSERT INTO credentials (chat_id, sealed_token, created_by, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			sealed_token = excluded.sealed_token,
			created_by = excluded.created_by,
			created_at = excluded.created_at
	`
	_, err := s.db.Exec(query, chatID, sealedToken, createdBy, time.Now().UTC())
	return err
}

// GetCredential returns the tenant's live credential, or nil if absent.
func (s *TenantStore) GetCredential(chatID string) (*Credential, error) {
	var cred Credential
	err := s.db.Get(&cred, `SELECT * FROM credentials WHERE chat_id = ?`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// DeleteCredential removes the tenant's credential. Deleting an absent
// credential is a no-op success.
func (s *TenantStore) DeleteCredential(chatID string) error {
	_, err := s.db.Exec(`DELETE FROM credentials WHERE chat_id = ?`, chatID)
	return err
}

// CreatePendingRequest records an install handshake request.
func (s *TenantStore) CreatePendingRequest(secretKey, userID, chatID string) (string, error) {
	requestID := uuid.NewString()
	query := `
		INSERT INTO pending_requests (request_id, secret_key, user_id, chat_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.Exec(query, requestID, secretKey, userID, chatID, time.Now().UTC()); err != nil {
		return "", err
	}
	return requestID, nil
}

// LatestPendingRequest returns the most recent pending request for a user,
// or nil if none exists.
func (s *TenantStore) LatestPendingRequest(userID string) (*PendingRequest, error) {
	var req PendingRequest
	query := `
		SELECT * FROM pending_requests
		WHERE user_id = ?
		ORDER BY created_at DESC LIMIT 1
	`
	err := s.db.Get(&req, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ClearPendingRequests deletes all pending requests for a user.
func (s *TenantStore) ClearPendingRequests(userID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_requests WHERE user_id = ?`, userID)
	return err
}
