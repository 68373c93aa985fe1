package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/gitsync/internal/maintenance"
	"github.com/user/gitsync/internal/storage"
)

type dispatcherHarness struct {
	*harness
	dispatcher *Dispatcher
	gate       *maintenance.MemoryGate
	pool       *Pool
	secret     string
	chatID     string
}

func newDispatcherHarness(t *testing.T) *dispatcherHarness {
	t.Helper()
	h := newHarness(t, &mockResolver{})

	tenants := storage.NewTenantStore(h.db)
	secret, err := tenants.Setup("-100123")
	require.NoError(t, err)

	gate := &maintenance.MemoryGate{}
	pool := NewPool(1, 16)
	t.Cleanup(pool.Stop)

	d := NewDispatcher(tenants, gate, h.events, pool, h.proc)
	return &dispatcherHarness{
		harness:    h,
		dispatcher: d,
		gate:       gate,
		pool:       pool,
		secret:     secret,
		chatID:     "-100123",
	}
}

func TestHandle_RejectsBadCredentials(t *testing.T) {
	h := newDispatcherHarness(t)

	cases := []struct {
		name, secret, chatID string
	}{
		{"missing secret", "", h.chatID},
		{"missing chat id", h.secret, ""},
		{"wrong secret", "not-the-secret", h.chatID},
		{"mismatched chat id", h.secret, "-999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.dispatcher.Handle(context.Background(), "push", []byte(pushJSON), tc.secret, tc.chatID)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}

	// A rejected delivery leaves no trace anywhere.
	h.pool.Stop()
	count, err := h.events.CountEvents(h.chatID)
	require.NoError(t, err)
	assert.Zero(t, count)
	pending, err := h.events.CountPending(h.chatID)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Empty(t, h.reporter.reports)
}

func TestHandle_ProcessesWhenOpen(t *testing.T) {
	h := newDispatcherHarness(t)

	err := h.dispatcher.Handle(context.Background(), "push", []byte(pushJSON), h.secret, h.chatID)
	require.NoError(t, err)

	// Drain the pool so the asynchronous unit finishes.
	h.pool.Stop()

	count, err := h.events.CountEvents(h.chatID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, h.reporter.reports, 1)

	pending, err := h.events.CountPending(h.chatID)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestHandle_QueuesDuringMaintenance(t *testing.T) {
	h := newDispatcherHarness(t)
	h.gate.SetClosed(true)

	err := h.dispatcher.Handle(context.Background(), "push", []byte(pushJSON), h.secret, h.chatID)
	require.NoError(t, err)

	h.pool.Stop()

	// Exactly one queued row, nothing processed, nothing sent.
	pending, err := h.events.PendingEvents(h.chatID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "push", pending[0].Kind)
	assert.Equal(t, "alice", pending[0].Author)
	assert.Equal(t, "org/repo", pending[0].RepoName)
	assert.JSONEq(t, pushJSON, string(pending[0].Payload))

	count, err := h.events.CountEvents(h.chatID)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, h.reporter.reports)
}

func TestHandle_UnknownKindFallsBackToPush(t *testing.T) {
	h := newDispatcherHarness(t)
	h.gate.SetClosed(true)

	err := h.dispatcher.Handle(context.Background(), "deployment_status", []byte(pushJSON), h.secret, h.chatID)
	require.NoError(t, err)

	pending, err := h.events.PendingEvents(h.chatID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "push", pending[0].Kind)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindPullRequest, Classify("pull_request"))
	assert.Equal(t, KindPullRequestReview, Classify("Pull_Request_Review"))
	assert.Equal(t, KindIssue, Classify("issues"))
	assert.Equal(t, KindPush, Classify("push"))
	assert.Equal(t, KindPush, Classify("something_else"))
	assert.Equal(t, KindPush, Classify(""))
}
