package digest

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/newswatch/internal/models"
)

// DefaultChunkSize leaves headroom under Telegram's 4096 character limit.
const DefaultChunkSize = 3800

// FormatPlain renders items as a Telegram HTML digest.
func FormatPlain(items []models.NewsItem, lookbackHours int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("<b>Daily Company News — last %dh</b>\n\n", lookbackHours))

	for _, n := range items {
		b.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(n.Company)))
		b.WriteString(fmt.Sprintf("- <a href=\"%s\">%s</a> (%s)\n",
			html.EscapeString(n.Link),
			html.EscapeString(n.Title),
			html.EscapeString(strings.Join(n.Categories, ", ")),
		))
		if n.Summary != "" {
			b.WriteString(fmt.Sprintf("  %s\n", html.EscapeString(n.Summary)))
		}
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

// ChunkMessage splits text on line boundaries into chunks of at most max
// characters, counting one newline per line. A line is never split; a single
// line longer than max becomes a chunk of its own.
func ChunkMessage(text string, max int) []string {
	if text == "" {
		return nil
	}
	if max <= 0 {
		max = DefaultChunkSize
	}

	var (
		chunks     []string
		current    []string
		currentLen int
	)
	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line) + 1
		if currentLen+lineLen > max && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n"))
			current = current[:0]
			currentLen = 0
		}
		current = append(current, line)
		currentLen += lineLen
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n"))
	}
	return chunks
}
