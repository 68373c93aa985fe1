package ingest

import (
	"encoding/json"
	"strings"
	"time"
)

// userRef is any payload fragment naming a user.
type userRef struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// repoRef holds the repository fragment common to all event shapes. The
// organization field arrives either as a bare string or as an object with
// a login, depending on the repository's ownership.
type repoRef struct {
	Name         string          `json:"name"`
	FullName     string          `json:"full_name"`
	Organization json.RawMessage `json:"organization"`
	Owner        userRef         `json:"owner"`
}

// orgName decodes the organization fragment in either shape.
func (r *repoRef) orgName() string {
	if len(r.Organization) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Organization, &s); err == nil {
		return s
	}
	var obj userRef
	if err := json.Unmarshal(r.Organization, &obj); err == nil {
		return obj.Login
	}
	return ""
}

// displayName returns "org/name" when the organization is known, the bare
// name otherwise.
func (r *repoRef) displayName() string {
	name := r.Name
	if name == "" {
		name = "Unknown Repo"
	}
	if org := r.orgName(); org != "" {
		return org + "/" + name
	}
	return name
}

// ownerLogin returns the repository owner for API calls.
func (r *repoRef) ownerLogin() string {
	if r.Owner.Login != "" {
		return r.Owner.Login
	}
	return r.Owner.Name
}

type commitRef struct {
	ID       string   `json:"id"`
	Message  string   `json:"message"`
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Modified []string `json:"modified"`
}

// shortID returns the abbreviated commit id used in reports.
func (c *commitRef) shortID() string {
	if c.ID == "" {
		return "unknown"
	}
	if len(c.ID) > 7 {
		return c.ID[:7]
	}
	return c.ID
}

type pushPayload struct {
	Ref        string      `json:"ref"`
	Before     string      `json:"before"`
	After      string      `json:"after"`
	Pusher     userRef     `json:"pusher"`
	Sender     userRef     `json:"sender"`
	Repository repoRef     `json:"repository"`
	Commits    []commitRef `json:"commits"`
	HeadCommit *commitRef  `json:"head_commit"`
}

// commitList returns the commits to process, falling back to the head
// commit when the commits array is empty.
func (p *pushPayload) commitList() []commitRef {
	if len(p.Commits) == 0 && p.HeadCommit != nil {
		return []commitRef{*p.HeadCommit}
	}
	return p.Commits
}

// branchName extracts the last path segment of the ref.
func (p *pushPayload) branchName() string {
	if p.Ref == "" {
		return "unknown"
	}
	parts := strings.Split(p.Ref, "/")
	return parts[len(parts)-1]
}

type prPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		ID           int64      `json:"id"`
		Number       int        `json:"number"`
		Title        string     `json:"title"`
		State        string     `json:"state"`
		User         userRef    `json:"user"`
		CreatedAt    *time.Time `json:"created_at"`
		MergedAt     *time.Time `json:"merged_at"`
		ClosedAt     *time.Time `json:"closed_at"`
		Additions    int        `json:"additions"`
		Deletions    int        `json:"deletions"`
		ChangedFiles int        `json:"changed_files"`
		Head         struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository repoRef `json:"repository"`
}

type reviewPayload struct {
	Action string `json:"action"`
	Review struct {
		ID          int64      `json:"id"`
		User        userRef    `json:"user"`
		State       string     `json:"state"`
		SubmittedAt *time.Time `json:"submitted_at"`
	} `json:"review"`
	PullRequest struct {
		ID     int64 `json:"id"`
		Number int   `json:"number"`
		Head   struct {
			Ref string `json:"ref"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository repoRef `json:"repository"`
}

type issuePayload struct {
	Action string `json:"action"`
	Issue  struct {
		ID        int64      `json:"id"`
		Number    int        `json:"number"`
		Title     string     `json:"title"`
		User      userRef    `json:"user"`
		ClosedBy  *userRef   `json:"closed_by"`
		CreatedAt *time.Time `json:"created_at"`
		ClosedAt  *time.Time `json:"closed_at"`
		Labels    []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"issue"`
	Repository repoRef `json:"repository"`
}

// eventMeta is the push-shaped metadata every inbound payload yields for
// logging and queueing: author, repository display name and branch.
type eventMeta struct {
	Author string
	Repo   string
	Branch string
}

// extractMeta pulls the metadata out of a raw payload: author from the
// pusher, falling back to the sender login, falling back to "Unknown".
func extractMeta(raw []byte) eventMeta {
	var p pushPayload
	_ = json.Unmarshal(raw, &p)

	author := p.Pusher.Name
	if author == "" {
		author = p.Sender.Login
	}
	if author == "" {
		author = "Unknown"
	}
	return eventMeta{
		Author: author,
		Repo:   p.Repository.displayName(),
		Branch: p.branchName(),
	}
}
