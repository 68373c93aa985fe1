package storage

import (
	"time"
)

// EventStore handles activity records and the pending queue.
type EventStore struct {
	db *Database
}

// NewEventStore creates a new event store.
func NewEventStore(db *Database) *EventStore {
	return &EventStore{db: db}
}

// Insert appends an event record. Reprocessing the same payload must not
// double-count, so inserts are keyed by (tenant, dedup_key) and a duplicate
// is silently skipped. Returns whether a row was written.
func (s *EventStore) Insert(ev Event) (bool, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	ev.FilesChanged = ev.FilesAdded + ev.FilesModified + ev.FilesRemoved
	query := `
		INSERT OR IGNORE INTO events
		(chat_id, author, repo_name, branch_name, summary,
		 files_added, files_modified, files_removed, files_changed,
		 lines_added, lines_removed, confidence, dedup_key, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.Exec(query,
		ev.ChatID, ev.Author, ev.RepoName, ev.BranchName, ev.Summary,
		ev.FilesAdded, ev.FilesModified, ev.FilesRemoved, ev.FilesChanged,
		ev.LinesAdded, ev.LinesRemoved, ev.Confidence, ev.DedupKey, ev.Timestamp)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CommitStats returns per-author commit and files-changed counts for a
// tenant over [from, to).
func (s *EventStore) CommitStats(chatID string, from, to time.Time) ([]CommitStat, error) {
	var stats []CommitStat
	query := `
		SELECT author,
		       COUNT(*) AS commits,
		       COALESCE(SUM(files_changed), 0) AS files_changed
		FROM events
		WHERE chat_id = ? AND timestamp >= ? AND timestamp < ?
		GROUP BY author
	`
	err := s.db.Select(&stats, query, chatID, from.UTC(), to.UTC())
	return stats, err
}

// RecentEvents returns the latest events for a tenant, newest first.
func (s *EventStore) RecentEvents(chatID string, limit int) ([]Event, error) {
	var events []Event
	query := `
		SELECT * FROM events
		WHERE chat_id = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`
	err := s.db.Select(&events, query, chatID, limit)
	return events, err
}

// CountEvents returns the number of events stored for a tenant.
func (s *EventStore) CountEvents(chatID string) (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM events WHERE chat_id = ?`, chatID)
	return count, err
}

// Enqueue appends a raw event to the pending queue.
func (s *EventStore) Enqueue(pe PendingEvent) error {
	if pe.EnqueuedAt.IsZero() {
		pe.EnqueuedAt = time.Now()
	}
	query := `
		INSERT INTO pending_events (chat_id, kind, author, repo_name, branch_name, payload, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		pe.ChatID, pe.Kind, pe.Author, pe.RepoName, pe.BranchName, pe.Payload, pe.EnqueuedAt.UTC())
	return err
}

// PendingEvents returns up to limit queued events, oldest first. An empty
// chatID returns events across all tenants.
func (s *EventStore) PendingEvents(chatID string, limit int) ([]PendingEvent, error) {
	var pending []PendingEvent
	if chatID == "" {
		query := `SELECT * FROM pending_events ORDER BY enqueued_at, id LIMIT ?`
		err := s.db.Select(&pending, query, limit)
		return pending, err
	}
	query := `SELECT * FROM pending_events WHERE chat_id = ? ORDER BY enqueued_at, id LIMIT ?`
	err := s.db.Select(&pending, query, chatID, limit)
	return pending, err
}

// CountPending returns the pending queue depth for a tenant.
func (s *EventStore) CountPending(chatID string) (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM pending_events WHERE chat_id = ?`, chatID)
	return count, err
}

// DeletePending removes a processed queue entry.
func (s *EventStore) DeletePending(id int64) error {
	_, err := s.db.Exec(`DELETE FROM pending_events WHERE id = ?`, id)
	return err
}
