package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/user/gitsync/internal/github"
	"github.com/user/gitsync/internal/storage"
	"github.com/user/gitsync/pkg/logger"
)

// divider separates per-commit sections in an aggregated report.
const divider = "\n\n----------------\n\n"

// DiffResolver obtains exact per-file change statistics, or fails with a
// *github.UnavailableError directing the caller to fall back to estimates.
type DiffResolver interface {
	Resolve(ctx context.Context, owner, repo, before, after, chatID string) (map[string]github.FileDelta, error)
}

// Summarizer turns a commit message and touched-file list into a short
// human-readable description. It may fail; the failure is persisted as a
// placeholder summary, never dropped.
type Summarizer interface {
	Summarize(ctx context.Context, message string, files []string) (string, error)
}

// Notifier delivers a composed report to the tenant's channel.
type Notifier interface {
	SendReport(ctx context.Context, chatID, author, repo, branch, body string) error
}

// Processor runs one event end to end: diff resolution, summarization,
// event-store write, notification. It is invoked from worker-pool units
// and from Flush, never from the request path.
type Processor struct {
	resolver   DiffResolver
	summarizer Summarizer
	notifier   Notifier
	events     *storage.EventStore
	facts      *storage.FactStore
}

// NewProcessor creates a processor.
func NewProcessor(resolver DiffResolver, summarizer Summarizer, notifier Notifier, events *storage.EventStore, facts *storage.FactStore) *Processor {
	return &Processor{
		resolver:   resolver,
		summarizer: summarizer,
		notifier:   notifier,
		events:     events,
		facts:      facts,
	}
}

// Process handles a single raw event of the given kind for a tenant. A
// returned error means the event was not durably recorded and may be
// retried (Flush relies on this); notification failures are logged only.
func (p *Processor) Process(ctx context.Context, kind Kind, chatID string, raw []byte) error {
	switch kind {
	case KindPullRequest:
		return p.processPullRequest(ctx, chatID, raw)
	case KindPullRequestReview:
		return p.processReview(ctx, chatID, raw)
	case KindIssue:
		return p.processIssue(ctx, chatID, raw)
	default:
		return p.processPush(ctx, chatID, raw)
	}
}

func (p *Processor) processPush(ctx context.Context, chatID string, raw []byte) error {
	var payload pushPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse push payload: %w", err)
	}

	meta := extractMeta(raw)
	owner := payload.Repository.ownerLogin()

	var files map[string]github.FileDelta
	var unavail *github.UnavailableError
	if owner != "" && payload.Repository.Name != "" && payload.Before != "" && payload.After != "" {
		resolved, err := p.resolver.Resolve(ctx, owner, payload.Repository.Name, payload.Before, payload.After, chatID)
		switch {
		case err == nil:
			files = resolved
		case errors.As(err, &unavail):
			// fall back to estimates below
		default:
			unavail = &github.UnavailableError{Reason: err.Error()}
		}
	}

	if files != nil {
		return p.recordExactPush(ctx, chatID, meta, &payload, files)
	}
	return p.recordEstimatedPush(ctx, chatID, meta, &payload, unavail)
}

// recordExactPush writes one event covering the whole push with summed
// line counts from the compare API, and reports the per-file breakdown.
func (p *Processor) recordExactPush(ctx context.Context, chatID string, meta eventMeta, payload *pushPayload, files map[string]github.FileDelta) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var added, modified, removed, linesAdded, linesRemoved int
	lines := make([]string, 0, len(names))
	for _, name := range names {
		d := files[name]
		linesAdded += d.Additions
		linesRemoved += d.Deletions
		switch d.Status {
		case "added":
			added++
		case "removed":
			removed++
		default:
			modified++
		}
		lines = append(lines, fmt.Sprintf("%s: +%d / -%d", name, d.Additions, d.Deletions))
	}

	head := payload.HeadCommit
	if head == nil {
		if commits := payload.commitList(); len(commits) > 0 {
			head = &commits[0]
		} else {
			head = &commitRef{}
		}
	}
	summaryText := p.summarize(ctx, head.Message, names)

	inserted, err := p.events.Insert(storage.Event{
		ChatID:        chatID,
		Author:        meta.Author,
		RepoName:      meta.Repo,
		BranchName:    meta.Branch,
		Summary:       summaryText,
		FilesAdded:    added,
		FilesModified: modified,
		FilesRemoved:  removed,
		LinesAdded:    linesAdded,
		LinesRemoved:  linesRemoved,
		Confidence:    storage.ConfidenceExact,
		DedupKey:      payload.After,
	})
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	if !inserted {
		logger.Debug().Str("chat_id", chatID).Str("sha", payload.After).Msg("Duplicate push, skipping")
		return nil
	}

	body := fmt.Sprintf("<b>Push Summary (exact)</b>\n%s\n\n%s\n\n<b>Confidence:</b> %s",
		summaryText, strings.Join(lines, "\n"), storage.ConfidenceExact)
	p.notify(ctx, chatID, meta, body)
	return nil
}

// recordEstimatedPush writes one event per commit using the payload's own
// added/removed/modified file lists (no line counts) and sends a single
// aggregated report.
func (p *Processor) recordEstimatedPush(ctx context.Context, chatID string, meta eventMeta, payload *pushPayload, unavail *github.UnavailableError) error {
	confidence := storage.ConfidenceEstimated
	if unavail != nil && unavail.Revoked {
		confidence = storage.ConfidenceTokenInvalid
	}

	var updates []string
	for i, commit := range payload.commitList() {
		fileList := make([]string, 0, len(commit.Added)+len(commit.Removed)+len(commit.Modified))
		fileList = append(fileList, commit.Added...)
		fileList = append(fileList, commit.Removed...)
		fileList = append(fileList, commit.Modified...)

		summaryText := p.summarize(ctx, commit.Message, fileList)

		dedupKey := commit.ID
		if dedupKey == "" {
			dedupKey = fmt.Sprintf("%s#%d", payload.After, i)
		}
		inserted, err := p.events.Insert(storage.Event{
			ChatID:        chatID,
			Author:        meta.Author,
			RepoName:      meta.Repo,
			BranchName:    meta.Branch,
			Summary:       summaryText,
			FilesAdded:    len(commit.Added),
			FilesModified: len(commit.Modified),
			FilesRemoved:  len(commit.Removed),
			Confidence:    confidence,
			DedupKey:      dedupKey,
		})
		if err != nil {
			return fmt.Errorf("failed to store event for commit %s: %w", commit.shortID(), err)
		}
		if !inserted {
			logger.Debug().Str("chat_id", chatID).Str("sha", commit.ID).Msg("Duplicate commit, skipping")
			continue
		}
		updates = append(updates, fmt.Sprintf("<b>Commit:</b> <code>%s</code>\n%s\n\n<b>Confidence:</b> %s",
			commit.shortID(), summaryText, confidence))
	}

	if len(updates) > 0 {
		p.notify(ctx, chatID, meta, strings.Join(updates, divider))
	}
	return nil
}

func (p *Processor) processPullRequest(ctx context.Context, chatID string, raw []byte) error {
	var payload prPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse pull_request payload: %w", err)
	}
	pr := payload.PullRequest
	if err := p.facts.UpsertPullRequest(storage.PullRequest{
		ID:           pr.ID,
		ChatID:       chatID,
		RepoName:     payload.Repository.FullName,
		Number:       pr.Number,
		Author:       pr.User.Login,
		CreatedAt:    pr.CreatedAt,
		MergedAt:     pr.MergedAt,
		ClosedAt:     pr.ClosedAt,
		State:        pr.State,
		Additions:    pr.Additions,
		Deletions:    pr.Deletions,
		ChangedFiles: pr.ChangedFiles,
	}); err != nil {
		return fmt.Errorf("failed to store pull request: %w", err)
	}

	body := fmt.Sprintf("🔀 Pull Request %s: <b>#%d</b> - %s", payload.Action, pr.Number, pr.Title)
	p.notify(ctx, chatID, eventMeta{Author: "GitSync", Repo: payload.Repository.FullName, Branch: pr.Head.Ref}, body)
	return nil
}

func (p *Processor) processReview(ctx context.Context, chatID string, raw []byte) error {
	var payload reviewPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse pull_request_review payload: %w", err)
	}
	if err := p.facts.UpsertReview(storage.Review{
		ID:          payload.Review.ID,
		ChatID:      chatID,
		PRID:        payload.PullRequest.ID,
		Reviewer:    payload.Review.User.Login,
		State:       payload.Review.State,
		SubmittedAt: payload.Review.SubmittedAt,
	}); err != nil {
		return fmt.Errorf("failed to store review: %w", err)
	}

	reviewer := payload.Review.User.Login
	if reviewer == "" {
		reviewer = "unknown"
	}
	body := fmt.Sprintf("🧐 PR Review by <b>%s</b>: <b>#%d</b> — %s",
		reviewer, payload.PullRequest.Number, payload.Review.State)
	p.notify(ctx, chatID, eventMeta{Author: "GitSync", Repo: payload.Repository.FullName, Branch: payload.PullRequest.Head.Ref}, body)
	return nil
}

func (p *Processor) processIssue(ctx context.Context, chatID string, raw []byte) error {
	var payload issuePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("failed to parse issues payload: %w", err)
	}
	issue := payload.Issue
	labels := make([]string, 0, len(issue.Labels))
	for _, l := range issue.Labels {
		labels = append(labels, l.Name)
	}
	closedBy := ""
	if issue.ClosedBy != nil {
		closedBy = issue.ClosedBy.Login
	}
	if err := p.facts.UpsertIssue(storage.Issue{
		ID:        issue.ID,
		ChatID:    chatID,
		RepoName:  payload.Repository.FullName,
		Number:    issue.Number,
		Author:    issue.User.Login,
		ClosedBy:  closedBy,
		CreatedAt: issue.CreatedAt,
		ClosedAt:  issue.ClosedAt,
		Labels:    storage.MarshalLabels(labels),
	}); err != nil {
		return fmt.Errorf("failed to store issue: %w", err)
	}

	body := fmt.Sprintf("📌 Issue %s: <b>#%d</b> — %s", payload.Action, issue.Number, issue.Title)
	p.notify(ctx, chatID, eventMeta{Author: "GitSync", Repo: payload.Repository.FullName}, body)
	return nil
}

// summarize calls the external summarizer, substituting a placeholder that
// embeds the failure reason so the audit trail survives a backend outage.
func (p *Processor) summarize(ctx context.Context, message string, files []string) string {
	text, err := p.summarizer.Summarize(ctx, message, files)
	if err != nil {
		return fmt.Sprintf("AI analysis failed: %v", err)
	}
	return strings.TrimSpace(text)
}

// notify sends the composed report. Delivery failures are logged and never
// roll back the store write; the persisted record is authoritative.
func (p *Processor) notify(ctx context.Context, chatID string, meta eventMeta, body string) {
	if err := p.notifier.SendReport(ctx, chatID, meta.Author, meta.Repo, meta.Branch, body); err != nil {
		logger.Error().Err(err).
			Str("chat_id", chatID).
			Str("repo", meta.Repo).
			Msg("Failed to deliver notification")
	}
}
