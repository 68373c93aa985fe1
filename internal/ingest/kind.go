package ingest

import "strings"

// Kind classifies an inbound event. The set is closed; anything the
// classifier does not recognize is treated as push-shaped, a deliberate
// best-effort fallback rather than a rejection.
type Kind int

const (
	KindPush Kind = iota
	KindPullRequest
	KindPullRequestReview
	KindIssue
)

// Classify maps the event-kind tag (the X-GitHub-Event header value) to a
// Kind. Unknown tags default to KindPush.
func Classify(tag string) Kind {
	switch strings.ToLower(tag) {
	case "pull_request":
		return KindPullRequest
	case "pull_request_review":
		return KindPullRequestReview
	case "issues":
		return KindIssue
	default:
		return KindPush
	}
}

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindPullRequest:
		return "pull_request"
	case KindPullRequestReview:
		return "pull_request_review"
	case KindIssue:
		return "issues"
	default:
		return "push"
	}
}
