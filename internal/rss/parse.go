package rss

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/deusflow/newswatch/internal/models"
	"github.com/deusflow/newswatch/internal/textnorm"
)

// Fields are the display fields of an entry.
type Fields struct {
	Title   string
	Link    string
	Summary string
}

// ParseTimestamp tries Published, then Updated. Values without a zone are
// read as UTC. ok is false when neither value parses.
func ParseTimestamp(e models.FeedEntry) (t time.Time, ok bool) {
	for _, raw := range []string{e.Published, e.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parsed, err := dateparse.ParseIn(raw, time.UTC)
		if err != nil {
			continue
		}
		return parsed, true
	}
	return time.Time{}, false
}

// ExtractFields trims title and link and builds a plain-text summary from
// Summary, falling back to Description.
func ExtractFields(e models.FeedEntry) Fields {
	raw := e.Summary
	if raw == "" {
		raw = e.Description
	}
	return Fields{
		Title:   strings.TrimSpace(e.Title),
		Link:    strings.TrimSpace(e.Link),
		Summary: textnorm.Truncate(textnorm.StripMarkup(raw), textnorm.SummaryLen),
	}
}

// Publisher returns the source name Google News appends to its descriptions
// as <font>Publisher</font>, or "" when there is none.
func Publisher(e models.FeedEntry) string {
	raw := e.Summary
	if raw == "" {
		raw = e.Description
	}
	if !strings.Contains(raw, "<font") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("font").Last().Text())
}
