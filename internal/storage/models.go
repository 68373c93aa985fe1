// Package storage provides database operations and data models.
package storage

import (
	"encoding/json"
	"time"
)

// TenantSecret maps an opaque secret to a tenant (chat) identifier.
type TenantSecret struct {
	SecretKey string    `db:"secret_key"`
	ChatID    string    `db:"chat_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Credential is a sealed upstream access token for a tenant. At most one
// live credential per tenant.
type Credential struct {
	ChatID      string    `db:"chat_id"`
	SealedToken string    `db:"sealed_token"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
}

// PendingRequest links a private credential-submission message to the
// tenant that requested it. Expires after a fixed TTL.
type PendingRequest struct {
	RequestID string    `db:"request_id"`
	SecretKey string    `db:"secret_key"`
	UserID    string    `db:"user_id"`
	ChatID    string    `db:"chat_id"`
	CreatedAt time.Time `db:"created_at"`
}

// Event is a persisted activity record. Immutable once written.
type Event struct {
	ID            int64     `db:"id"`
	ChatID        string    `db:"chat_id"`
	Author        string    `db:"author"`
	RepoName      string    `db:"repo_name"`
	BranchName    string    `db:"branch_name"`
	Summary       string    `db:"summary"`
	FilesAdded    int       `db:"files_added"`
	FilesModified int       `db:"files_modified"`
	FilesRemoved  int       `db:"files_removed"`
	FilesChanged  int       `db:"files_changed"`
	LinesAdded    int       `db:"lines_added"`
	LinesRemoved  int       `db:"lines_removed"`
	Confidence    string    `db:"confidence"`
	DedupKey      string    `db:"dedup_key"`
	Timestamp     time.Time `db:"timestamp"`
}

// Confidence tags for Event records.
const (
	ConfidenceExact        = "exact"
	ConfidenceEstimated    = "estimated"
	ConfidenceTokenInvalid = "token-invalid"
)

// PendingEvent is a raw event payload captured while maintenance mode is
// enabled, sufficient to replay processing later.
type PendingEvent struct {
	ID         int64     `db:"id"`
	ChatID     string    `db:"chat_id"`
	Kind       string    `db:"kind"`
	Author     string    `db:"author"`
	RepoName   string    `db:"repo_name"`
	BranchName string    `db:"branch_name"`
	Payload    []byte    `db:"payload"`
	EnqueuedAt time.Time `db:"enqueued_at"`
}

// PullRequest is an auxiliary fact row for scoring.
type PullRequest struct {
	ID           int64      `db:"id"`
	ChatID       string     `db:"chat_id"`
	RepoName     string     `db:"repo_name"`
	Number       int        `db:"number"`
	Author       string     `db:"author"`
	CreatedAt    *time.Time `db:"created_at"`
	MergedAt     *time.Time `db:"merged_at"`
	ClosedAt     *time.Time `db:"closed_at"`
	State        string     `db:"state"`
	Additions    int        `db:"additions"`
	Deletions    int        `db:"deletions"`
	ChangedFiles int        `db:"changed_files"`
}

// Review is an auxiliary fact row for scoring.
type Review struct {
	ID          int64      `db:"id"`
	ChatID      string     `db:"chat_id"`
	PRID        int64      `db:"pr_id"`
	Reviewer    string     `db:"reviewer"`
	State       string     `db:"state"`
	SubmittedAt *time.Time `db:"submitted_at"`
}

// Issue is an auxiliary fact row for scoring. Labels are stored as a JSON
// array of strings.
type Issue struct {
	ID        int64      `db:"id"`
	ChatID    string     `db:"chat_id"`
	RepoName  string     `db:"repo_name"`
	Number    int        `db:"number"`
	Author    string     `db:"author"`
	ClosedBy  string     `db:"closed_by"`
	CreatedAt *time.Time `db:"created_at"`
	ClosedAt  *time.Time `db:"closed_at"`
	Labels    string     `db:"labels"`
}

// LabelList decodes the JSON-encoded label names.
func (i *Issue) LabelList() []string {
	var labels []string
	if err := json.Unmarshal([]byte(i.Labels), &labels); err != nil {
		return nil
	}
	return labels
}

// CIResult is an auxiliary fact row for scoring.
type CIResult struct {
	ID         int64      `db:"id"`
	ChatID     string     `db:"chat_id"`
	PRID       int64      `db:"pr_id"`
	Status     string     `db:"status"`
	StartedAt  *time.Time `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// CommitStat is a per-author aggregate over the events table.
type CommitStat struct {
	Author       string `db:"author"`
	Commits      int    `db:"commits"`
	FilesChanged int    `db:"files_changed"`
}
