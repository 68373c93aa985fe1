// Package summary provides a local stand-in for the external summarization
// backend: a deterministic one-line digest of a commit.
package summary

import (
	"context"
	"fmt"
	"strings"
)

// Text summarizes commits without calling any external service.
type Text struct {
	// MaxFiles bounds how many file names are named in the digest.
	MaxFiles int
}

// NewText creates a summarizer.
func NewText() *Text {
	return &Text{MaxFiles: 5}
}

// Summarize produces a short human-readable description of a commit from
// its message and touched-file list.
func (t *Text) Summarize(_ context.Context, message string, files []string) (string, error) {
	headline := message
	if i := strings.IndexByte(headline, '\n'); i >= 0 {
		headline = headline[:i]
	}
	headline = strings.TrimSpace(headline)
	if headline == "" {
		headline = "No message."
	}

	if len(files) == 0 {
		return headline, nil
	}

	shown := files
	more := 0
	if t.MaxFiles > 0 && len(files) > t.MaxFiles {
		shown = files[:t.MaxFiles]
		more = len(files) - t.MaxFiles
	}
	detail := strings.Join(shown, ", ")
	if more > 0 {
		detail = fmt.Sprintf("%s and %d more", detail, more)
	}
	return fmt.Sprintf("%s (%d files: %s)", headline, len(files), detail), nil
}
