package notifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	in := "```html\n<p>Summary</p><ul><li>one</li><li>two</li></ul><br>done\n```"
	got := sanitize(in)

	assert.NotContains(t, got, "```")
	assert.NotContains(t, got, "<ul>")
	assert.NotContains(t, got, "<li>")
	assert.NotContains(t, got, "<br>")
	assert.Contains(t, got, "• one")
	assert.Contains(t, got, "• two")
	assert.Contains(t, got, "Summary")
}

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &amp;&amp; b &lt;c&gt;", escapeHTML("a && b <c>"))
	assert.Equal(t, "plain", escapeHTML("plain"))
}
