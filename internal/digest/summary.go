package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deusflow/newswatch/internal/models"
)

// NothingMaterial replaces an empty summary.
const NothingMaterial = "Nothing material to report in this window."

// SummaryInstruction is sent with every summarization request.
const SummaryInstruction = `You are preparing a daily briefing for an investor who tracks a watchlist of companies.
You receive a JSON array of news items. Each item has company, bucket ("company" or "market"), title, link,
summary, categories and an optional date.

Rules:
- Keep only concrete or completed events: signed deals, closed rounds, granted approvals, reported results,
  launched products, published data. Drop anything speculative, forward-looking or opinion-based.
- Use only facts present in the items. Do not add numbers, names or context that are not in the input.
- Omit companies that have nothing material.

Output two sections, in this order, as plain text:
Company Watchlist
Market Movers

Under each heading write one line per event:
<severity marker> <company>: <headline> - <one-sentence rationale>
Severity markers: 🔴 high impact, 🟠 medium impact, 🟢 low impact.
Put market and macro items under Market Movers. If a section has no material events, write "None." under it.`

// Summarizer turns an instruction and a JSON payload into free text.
type Summarizer interface {
	Summarize(ctx context.Context, instruction, input string) (string, error)
}

type summaryItem struct {
	Company    string   `json:"company"`
	Bucket     string   `json:"bucket"`
	Title      string   `json:"title"`
	Link       string   `json:"link"`
	Summary    string   `json:"summary,omitempty"`
	Source     string   `json:"source,omitempty"`
	Categories []string `json:"categories"`
	Date       string   `json:"date,omitempty"`
}

// BuildSummaryInput serializes items for the summarizer. Dates are written
// as RFC 3339 in UTC; undated items have no date field.
func BuildSummaryInput(items []models.NewsItem) (string, error) {
	out := make([]summaryItem, 0, len(items))
	for _, n := range items {
		si := summaryItem{
			Company:    n.Company,
			Bucket:     string(n.Bucket),
			Title:      n.Title,
			Link:       n.Link,
			Summary:    n.Summary,
			Source:     n.Source,
			Categories: n.Categories,
		}
		if n.Date != nil {
			si.Date = n.Date.UTC().Format(time.RFC3339)
		}
		out = append(out, si)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary input: %w", err)
	}
	return string(data), nil
}

// Summarize asks s for a digest of items. Errors from s are propagated;
// an empty answer becomes NothingMaterial.
func Summarize(ctx context.Context, s Summarizer, items []models.NewsItem) (string, error) {
	input, err := BuildSummaryInput(items)
	if err != nil {
		return "", err
	}

	text, err := s.Summarize(ctx, SummaryInstruction, input)
	if err != nil {
		return "", fmt.Errorf("summarize digest: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return NothingMaterial, nil
	}
	return text, nil
}
