package storage

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/user/gitsync/internal/scoring"
)

// FactStore handles the auxiliary fact tables consumed by the scoring
// engine.
type FactStore struct {
	db     *Database
	events *EventStore
}

// NewFactStore creates a new fact store.
func NewFactStore(db *Database, events *EventStore) *FactStore {
	return &FactStore{db: db, events: events}
}

// UpsertPullRequest inserts or updates a pull request fact row keyed by the
// provider id.
func (s *FactStore) UpsertPullRequest(pr PullRequest) error {
	query := `
		INSERT INTO pull_requests
		(id, chat_id, repo_name, number, author, created_at, merged_at, closed_at, state, additions, deletions, changed_files)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			repo_name = excluded.repo_name,
			number = excluded.number,
			author = excluded.author,
			created_at = excluded.created_at,
			merged_at = excluded.merged_at,
			closed_at = excluded.closed_at,
			state = excluded.state,
			additions = excluded.additions,
			deletions = excluded.deletions,
			changed_files = excluded.changed_files
	`
	_, err := s.db.Exec(query,
		pr.ID, pr.ChatID, pr.RepoName, pr.Number, pr.Author,
		utcPtr(pr.CreatedAt), utcPtr(pr.MergedAt), utcPtr(pr.ClosedAt),
		pr.State, pr.Additions, pr.Deletions, pr.ChangedFiles)
	return err
}

// UpsertReview inserts or updates a review fact row.
func (s *FactStore) UpsertReview(r Review) error {
	query := `
		INSERT INTO pr_reviews (id, chat_id, pr_id, reviewer, state, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			submitted_at = excluded.submitted_at
	`
	_, err := s.db.Exec(query, r.ID, r.ChatID, r.PRID, r.Reviewer, r.State, utcPtr(r.SubmittedAt))
	return err
}

// UpsertIssue inserts or updates an issue fact row.
func (s *FactStore) UpsertIssue(is Issue) error {
	if is.Labels == "" {
		is.Labels = "[]"
	}
	query := `
		INSERT INTO issues_closed
		(id, chat_id, repo_name, number, author, closed_by, created_at, closed_at, labels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			closed_by = excluded.closed_by,
			closed_at = excluded.closed_at,
			labels = excluded.labels
	`
	_, err := s.db.Exec(query,
		is.ID, is.ChatID, is.RepoName, is.Number, is.Author, is.ClosedBy,
		utcPtr(is.CreatedAt), utcPtr(is.ClosedAt), is.Labels)
	return err
}

// UpsertCIResult inserts or updates a CI fact row. The webhook path does
// not populate these; external tooling may.
func (s *FactStore) UpsertCIResult(ci CIResult) error {
	query := `
		INSERT INTO ci_results (id, chat_id, pr_id, status, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`
	_, err := s.db.Exec(query, ci.ID, ci.ChatID, ci.PRID, ci.Status, utcPtr(ci.StartedAt), utcPtr(ci.FinishedAt))
	return err
}

// MarshalLabels encodes label names for an Issue row.
func MarshalLabels(labels []string) string {
	if len(labels) == 0 {
		return "[]"
	}
	b, err := json.Marshal(labels)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// ContributionFacts aggregates the nine scoring metrics per author for a
// tenant over [from, to). Every fact row is tenant-scoped.
func (s *FactStore) ContributionFacts(chatID string, from, to time.Time) ([]scoring.Fact, error) {
	from, to = from.UTC(), to.UTC()

	var prs []PullRequest
	if err := s.db.Select(&prs, `SELECT * FROM pull_requests WHERE chat_id = ?`, chatID); err != nil {
		return nil, err
	}
	var reviews []Review
	if err := s.db.Select(&reviews, `SELECT * FROM pr_reviews WHERE chat_id = ?`, chatID); err != nil {
		return nil, err
	}
	var issues []Issue
	if err := s.db.Select(&issues, `SELECT * FROM issues_closed WHERE chat_id = ?`, chatID); err != nil {
		return nil, err
	}
	var ciResults []CIResult
	if err := s.db.Select(&ciResults, `SELECT * FROM ci_results WHERE chat_id = ?`, chatID); err != nil {
		return nil, err
	}
	commitStats, err := s.events.CommitStats(chatID, from, to)
	if err != nil {
		return nil, err
	}

	prByID := make(map[int64]PullRequest, len(prs))
	for _, pr := range prs {
		prByID[pr.ID] = pr
	}

	facts := make(map[string]*scoring.Fact)
	get := func(author string) *scoring.Fact {
		if author == "" {
			author = "Unknown"
		}
		f, ok := facts[author]
		if !ok {
			f = &scoring.Fact{Author: author}
			facts[author] = f
		}
		return f
	}

	inWindow := func(t *time.Time) bool {
		return t != nil && !t.Before(from) && t.Before(to)
	}

	// Merged PRs and merge latency per PR author.
	mergeSums := make(map[string]float64)
	mergeCounts := make(map[string]int)
	for _, pr := range prs {
		if inWindow(pr.MergedAt) {
			get(pr.Author).MergedPRs++
		}
		if pr.MergedAt != nil && inWindow(pr.CreatedAt) {
			mergeSums[pr.Author] += pr.MergedAt.Sub(*pr.CreatedAt).Seconds()
			mergeCounts[pr.Author]++
		}
	}
	for author, n := range mergeCounts {
		avg := mergeSums[author] / float64(n)
		get(author).AvgMergeSecs = &avg
	}

	// Reviews, approvals and cross-team reviews per reviewer; first-review
	// latency per PR author.
	firstReview := make(map[int64]time.Time)
	for _, r := range reviews {
		if !inWindow(r.SubmittedAt) {
			continue
		}
		f := get(r.Reviewer)
		f.ReviewsDone++
		if strings.EqualFold(r.State, "approved") {
			f.Approvals++
		}
		if pr, ok := prByID[r.PRID]; ok && pr.Author != r.Reviewer {
			f.CrossReviews++
		}
		if t, ok := firstReview[r.PRID]; !ok || r.SubmittedAt.Before(t) {
			firstReview[r.PRID] = *r.SubmittedAt
		}
	}
	frSums := make(map[string]float64)
	frCounts := make(map[string]int)
	for prID, at := range firstReview {
		pr, ok := prByID[prID]
		if !ok || !inWindow(pr.CreatedAt) {
			continue
		}
		frSums[pr.Author] += at.Sub(*pr.CreatedAt).Seconds()
		frCounts[pr.Author]++
	}
	for author, n := range frCounts {
		avg := frSums[author] / float64(n)
		get(author).AvgFirstReviewSecs = &avg
	}

	// Issues closed in the window, attributed to the closer.
	for _, is := range issues {
		if !inWindow(is.ClosedAt) {
			continue
		}
		f := get(is.ClosedBy)
		f.IssuesClosed++
		for _, label := range is.LabelList() {
			if label == "bug" {
				f.BugsClosed++
				break
			}
		}
	}

	// CI pass/fail per PR author, over PRs created in the window.
	for _, ci := range ciResults {
		pr, ok := prByID[ci.PRID]
		if !ok || !inWindow(pr.CreatedAt) {
			continue
		}
		f := get(pr.Author)
		f.CITotal++
		if ci.Status == "success" {
			f.CIPassed++
		}
	}

	// Commit counts and files changed from the event ledger.
	for _, cs := range commitStats {
		f := get(cs.Author)
		f.Commits = cs.Commits
		f.FilesChanged = cs.FilesChanged
	}

	authors := make([]string, 0, len(facts))
	for a := range facts {
		authors = append(authors, a)
	}
	sort.Strings(authors)
	out := make([]scoring.Fact, 0, len(authors))
	for _, a := range authors {
		out = append(out, *facts[a])
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
