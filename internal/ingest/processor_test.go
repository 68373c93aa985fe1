package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gitsync/internal/github"
	"github.com/user/gitsync/internal/storage"
)

type mockResolver struct {
	resolveFunc func(ctx context.Context, owner, repo, before, after, chatID string) (map[string]github.FileDelta, error)
}

func (m *mockResolver) Resolve(ctx context.Context, owner, repo, before, after, chatID string) (map[string]github.FileDelta, error) {
	if m.resolveFunc != nil {
		return m.resolveFunc(ctx, owner, repo, before, after, chatID)
	}
	return nil, &github.UnavailableError{Reason: "no-token"}
}

type mockSummarizer struct {
	summarizeFunc func(ctx context.Context, message string, files []string) (string, error)
}

func (m *mockSummarizer) Summarize(ctx context.Context, message string, files []string) (string, error) {
	if m.summarizeFunc != nil {
		return m.summarizeFunc(ctx, message, files)
	}
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		message = message[:i]
	}
	return message, nil
}

type report struct {
	chatID, author, repo, branch, body string
}

type mockReporter struct {
	reports []report
	err     error
}

func (m *mockReporter) SendReport(ctx context.Context, chatID, author, repo, branch, body string) error {
	m.reports = append(m.reports, report{chatID, author, repo, branch, body})
	return m.err
}

type harness struct {
	proc     *Processor
	events   *storage.EventStore
	facts    *storage.FactStore
	reporter *mockReporter
	db       *storage.Database
}

func newHarness(t *testing.T, resolver *mockResolver) *harness {
	t.Helper()
	db, err := storage.NewDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	events := storage.NewEventStore(db)
	facts := storage.NewFactStore(db, events)
	reporter := &mockReporter{}
	proc := NewProcessor(resolver, &mockSummarizer{}, reporter, events, facts)
	return &harness{proc: proc, events: events, facts: facts, reporter: reporter, db: db}
}

const pushJSON = `{
	"ref": "refs/heads/main",
	"before": "b1b1b1b1",
	"after": "a1a1a1a1",
	"pusher": {"name": "alice"},
	"sender": {"login": "alice"},
	"repository": {"name": "repo", "full_name": "org/repo", "organization": "org", "owner": {"login": "org"}},
	"commits": [
		{"id": "c100000000000000", "message": "Fix login crash\n\nDetails here.", "added": ["auth.go"], "modified": ["session.go"], "removed": []},
		{"id": "c200000000000000", "message": "Add retry tests", "added": [], "modified": ["retry.go", "retry_test.go"], "removed": ["legacy.go"]}
	],
	"head_commit": {"id": "c200000000000000", "message": "Add retry tests", "added": [], "modified": ["retry.go", "retry_test.go"], "removed": ["legacy.go"]}
}`

func TestProcessPush_EstimatedFallback(t *testing.T) {
	h := newHarness(t, &mockResolver{})

	err := h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON))
	require.NoError(t, err)

	events, err := h.events.RecentEvents("-100123", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, storage.ConfidenceEstimated, ev.Confidence)
		assert.Equal(t, "alice", ev.Author)
		assert.Equal(t, "org/repo", ev.RepoName)
		assert.Equal(t, "main", ev.BranchName)
	}

	// One aggregated report covering both commits.
	require.Len(t, h.reporter.reports, 1)
	rep := h.reporter.reports[0]
	assert.Equal(t, "alice", rep.author)
	assert.Contains(t, rep.body, "c100000")
	assert.Contains(t, rep.body, "c200000")
	assert.Contains(t, rep.body, divider)
	assert.Contains(t, rep.body, "<b>Confidence:</b> estimated")
}

func TestProcessPush_Exact(t *testing.T) {
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, owner, repo, before, after, chatID string) (map[string]github.FileDelta, error) {
			assert.Equal(t, "org", owner)
			assert.Equal(t, "repo", repo)
			assert.Equal(t, "b1b1b1b1", before)
			assert.Equal(t, "a1a1a1a1", after)
			return map[string]github.FileDelta{
				"auth.go":       {Additions: 10, Deletions: 2, Status: "modified"},
				"session.go":    {Additions: 12, Deletions: 1, Status: "modified"},
				"retry.go":      {Additions: 8, Deletions: 0, Status: "added"},
				"retry_test.go": {Additions: 7, Deletions: 4, Status: "modified"},
				"legacy.go":     {Additions: 5, Deletions: 0, Status: "removed"},
			}, nil
		},
	}
	h := newHarness(t, resolver)

	err := h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON))
	require.NoError(t, err)

	events, err := h.events.RecentEvents("-100123", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, storage.ConfidenceExact, ev.Confidence)
	assert.Equal(t, 42, ev.LinesAdded)
	assert.Equal(t, 7, ev.LinesRemoved)
	assert.Equal(t, 1, ev.FilesAdded)
	assert.Equal(t, 3, ev.FilesModified)
	assert.Equal(t, 1, ev.FilesRemoved)
	assert.Equal(t, 5, ev.FilesChanged)

	require.Len(t, h.reporter.reports, 1)
	body := h.reporter.reports[0].body
	assert.Contains(t, body, "Push Summary (exact)")
	assert.Contains(t, body, "auth.go: +10 / -2")
	assert.Contains(t, body, "<b>Confidence:</b> exact")
}

func TestProcessPush_NoRevisionsSkipsResolution(t *testing.T) {
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, owner, repo, before, after, chatID string) (map[string]github.FileDelta, error) {
			t.Fatal("resolution must be skipped without before/after revisions")
			return nil, nil
		},
	}
	h := newHarness(t, resolver)

	payload := `{
		"ref": "refs/heads/main",
		"pusher": {"name": "alice"},
		"repository": {"name": "repo", "owner": {"login": "org"}},
		"commits": [
			{"id": "n100000000000000", "message": "first", "added": ["a.go"]},
			{"id": "n200000000000000", "message": "second", "modified": ["b.go"]}
		]
	}`
	require.NoError(t, h.proc.Process(context.Background(), KindPush, "-100123", []byte(payload)))

	events, err := h.events.RecentEvents("-100123", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, storage.ConfidenceEstimated, ev.Confidence)
	}
	require.Len(t, h.reporter.reports, 1)
	assert.Contains(t, h.reporter.reports[0].body, divider)
}

func TestProcessPush_TokenInvalidConfidence(t *testing.T) {
	resolver := &mockResolver{
		resolveFunc: func(ctx context.Context, owner, repo, before, after, chatID string) (map[string]github.FileDelta, error) {
			return nil, &github.UnavailableError{Reason: "auth-failed-401", Revoked: true}
		},
	}
	h := newHarness(t, resolver)

	err := h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON))
	require.NoError(t, err)

	events, err := h.events.RecentEvents("-100123", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Equal(t, storage.ConfidenceTokenInvalid, ev.Confidence)
	}
	require.Len(t, h.reporter.reports, 1)
	assert.Contains(t, h.reporter.reports[0].body, "<b>Confidence:</b> token-invalid")
}

func TestProcessPush_DuplicateSkipsNotification(t *testing.T) {
	h := newHarness(t, &mockResolver{})

	require.NoError(t, h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON)))
	require.NoError(t, h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON)))

	count, err := h.events.CountEvents("-100123")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The replay stored nothing new and stayed silent.
	assert.Len(t, h.reporter.reports, 1)
}

func TestProcessPush_SummarizerFailureIsPersisted(t *testing.T) {
	h := newHarness(t, &mockResolver{})
	h.proc.summarizer = &mockSummarizer{
		summarizeFunc: func(ctx context.Context, message string, files []string) (string, error) {
			return "", errors.New("backend down")
		},
	}

	require.NoError(t, h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON)))

	events, err := h.events.RecentEvents("-100123", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	for _, ev := range events {
		assert.Contains(t, ev.Summary, "AI analysis failed")
		assert.Contains(t, ev.Summary, "backend down")
	}
}

func TestProcessPush_NotifierFailureDoesNotFail(t *testing.T) {
	h := newHarness(t, &mockResolver{})
	h.reporter.err = errors.New("telegram unreachable")

	err := h.proc.Process(context.Background(), KindPush, "-100123", []byte(pushJSON))
	require.NoError(t, err)

	count, err := h.events.CountEvents("-100123")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestProcessPush_InvalidPayload(t *testing.T) {
	h := newHarness(t, &mockResolver{})
	assert.Error(t, h.proc.Process(context.Background(), KindPush, "-100123", []byte("not-json")))
}

func TestProcessPullRequest(t *testing.T) {
	h := newHarness(t, &mockResolver{})

	payload := `{
		"action": "opened",
		"pull_request": {
			"id": 900, "number": 7, "title": "Add caching", "state": "open",
			"user": {"login": "alice"},
			"created_at": "2026-01-02T10:00:00Z",
			"head": {"ref": "feature/cache"}
		},
		"repository": {"name": "repo", "full_name": "org/repo"}
	}`
	require.NoError(t, h.proc.Process(context.Background(), KindPullRequest, "-100123", []byte(payload)))

	var count int
	require.NoError(t, h.db.Get(&count, `SELECT COUNT(*) FROM pull_requests WHERE id = 900 AND chat_id = ?`, "-100123"))
	assert.Equal(t, 1, count)

	require.Len(t, h.reporter.reports, 1)
	assert.Contains(t, h.reporter.reports[0].body, "Pull Request opened")
	assert.Contains(t, h.reporter.reports[0].body, "#7")
}

func TestProcessReview(t *testing.T) {
	h := newHarness(t, &mockResolver{})

	payload := `{
		"action": "submitted",
		"review": {"id": 501, "user": {"login": "bob"}, "state": "approved", "submitted_at": "2026-01-02T11:00:00Z"},
		"pull_request": {"id": 900, "number": 7, "head": {"ref": "feature/cache"}},
		"repository": {"name": "repo", "full_name": "org/repo"}
	}`
	require.NoError(t, h.proc.Process(context.Background(), KindPullRequestReview, "-100123", []byte(payload)))

	var count int
	require.NoError(t, h.db.Get(&count, `SELECT COUNT(*) FROM pr_reviews WHERE id = 501`))
	assert.Equal(t, 1, count)

	require.Len(t, h.reporter.reports, 1)
	assert.Contains(t, h.reporter.reports[0].body, "bob")
	assert.Contains(t, h.reporter.reports[0].body, "approved")
}

func TestProcessIssue(t *testing.T) {
	h := newHarness(t, &mockResolver{})

	payload := `{
		"action": "closed",
		"issue": {
			"id": 301, "number": 12, "title": "Crash on login",
			"user": {"login": "carol"},
			"closed_by": {"login": "alice"},
			"closed_at": "2026-01-03T09:00:00Z",
			"labels": [{"name": "bug"}, {"name": "p1"}]
		},
		"repository": {"name": "repo", "full_name": "org/repo"}
	}`
	require.NoError(t, h.proc.Process(context.Background(), KindIssue, "-100123", []byte(payload)))

	var labels string
	require.NoError(t, h.db.Get(&labels, `SELECT labels FROM issues_closed WHERE id = 301`))
	assert.JSONEq(t, `["bug","p1"]`, labels)

	require.Len(t, h.reporter.reports, 1)
	assert.Contains(t, h.reporter.reports[0].body, "Issue closed")
}
