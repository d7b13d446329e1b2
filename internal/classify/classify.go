// Package classify decides which feed entries become news items.
//
// Entries run through a fixed sequence of gates. The first gate that fails
// drops the entry and names the reason. Company and market queries use
// different gate sets behind the same Classify call.
package classify

import (
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/newswatch/internal/models"
	"github.com/deusflow/newswatch/internal/rss"
	"github.com/deusflow/newswatch/internal/textnorm"
)

// MacroCategory is the only category given to market items.
const MacroCategory = "Macro"

// Reason names the gate that dropped an entry.
type Reason string

const (
	ReasonTooOld         Reason = "too_old"
	ReasonNameMismatch   Reason = "name_mismatch"
	ReasonNoCategory     Reason = "no_category"
	ReasonNoise          Reason = "noise"
	ReasonForwardLooking Reason = "forward_looking"
	ReasonNotMaterial    Reason = "not_material"
)

// Evidence names what satisfied the materiality gate.
type Evidence string

const (
	EvidenceDigit         Evidence = "digit"
	EvidenceVerb          Evidence = "verb"
	EvidenceOfficial      Evidence = "official_source"
	EvidenceMarketKeyword Evidence = "market_keyword"
	// EvidenceSkipped is recorded when broad mode bypasses the company gate.
	EvidenceSkipped Evidence = "skipped"
)

// Verdict is the result of classifying one entry. Reason is empty when the
// entry was kept.
type Verdict struct {
	Item     models.NewsItem
	Reason   Reason
	Evidence Evidence
}

func (v Verdict) Kept() bool { return v.Reason == "" }

type Options struct {
	Lookback time.Duration
	// Broad enables summary keyword matching and skips the company
	// materiality gate.
	Broad bool
	// Now anchors the age cutoff.
	Now time.Time
}

type category struct {
	label    string
	keywords []string
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	opts   Options
	cutoff time.Time

	categories     []category
	noise          []string
	forward        []string
	verbs          []string
	official       []string
	marketKeywords []string

	companyGates []gate
	marketGates  []gate
}

// candidate carries the derived fields of one entry through the gates.
type candidate struct {
	query    Query
	fields   rss.Fields
	date     *time.Time
	title    string
	summary  string
	labels   []string
	evidence Evidence
}

type gate func(*candidate) Reason

func New(rules Rules, opts Options) *Classifier {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	c := &Classifier{
		opts:           opts,
		cutoff:         opts.Now.Add(-opts.Lookback),
		noise:          normalizeAll(rules.NoiseWords),
		forward:        normalizeAll(rules.ForwardLooking),
		verbs:          normalizeAll(rules.MaterialVerbs),
		marketKeywords: normalizeAll(rules.MarketKeywords),
	}
	for _, cat := range rules.Categories {
		c.categories = append(c.categories, category{label: cat.Label, keywords: normalizeAll(cat.Keywords)})
	}
	for _, m := range rules.OfficialSources {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			c.official = append(c.official, m)
		}
	}

	c.companyGates = []gate{c.ageGate, c.nameGate, c.categoryGate, c.noiseGate, c.forwardGate, c.companyMaterialityGate}
	c.marketGates = []gate{c.ageGate, c.noiseGate, c.forwardGate, c.marketMaterialityGate}
	return c
}

// Classify runs the gates for q's variant over entry.
func (c *Classifier) Classify(q Query, entry models.FeedEntry) Verdict {
	cand := &candidate{query: q, fields: rss.ExtractFields(entry)}
	if t, ok := rss.ParseTimestamp(entry); ok {
		cand.date = &t
	}
	cand.title = textnorm.Normalize(cand.fields.Title)
	cand.summary = textnorm.Normalize(cand.fields.Summary)

	gates := c.companyGates
	if _, ok := q.(MarketQuery); ok {
		gates = c.marketGates
	}
	for _, g := range gates {
		if reason := g(cand); reason != "" {
			return Verdict{Reason: reason}
		}
	}

	labels := cand.labels
	if q.Bucket() == models.BucketMarket {
		labels = []string{MacroCategory}
	}
	return Verdict{
		Item: models.NewsItem{
			Company:    q.Company(),
			Title:      cand.fields.Title,
			Link:       cand.fields.Link,
			Summary:    cand.fields.Summary,
			Source:     rss.Publisher(entry),
			Categories: labels,
			Date:       cand.date,
			Bucket:     q.Bucket(),
		},
		Evidence: cand.evidence,
	}
}

// ageGate drops dated entries older than the cutoff. Undated entries pass.
func (c *Classifier) ageGate(cand *candidate) Reason {
	if cand.date != nil && cand.date.Before(c.cutoff) {
		return ReasonTooOld
	}
	return ""
}

func (c *Classifier) nameGate(cand *candidate) Reason {
	name := textnorm.Normalize(cand.query.Company())
	if name == "" || !strings.Contains(cand.title, name) {
		return ReasonNameMismatch
	}
	return ""
}

func (c *Classifier) categoryGate(cand *candidate) Reason {
	cand.labels = c.matchCategories(cand.title)
	if len(cand.labels) == 0 && c.opts.Broad {
		cand.labels = c.matchCategories(cand.summary)
	}
	if len(cand.labels) == 0 {
		return ReasonNoCategory
	}
	return ""
}

func (c *Classifier) noiseGate(cand *candidate) Reason {
	if containsAny(cand.title, c.noise) || containsAny(cand.summary, c.noise) {
		return ReasonNoise
	}
	return ""
}

func (c *Classifier) forwardGate(cand *candidate) Reason {
	if containsAny(cand.title, c.forward) || containsAny(cand.summary, c.forward) {
		return ReasonForwardLooking
	}
	return ""
}

func (c *Classifier) companyMaterialityGate(cand *candidate) Reason {
	if c.opts.Broad {
		cand.evidence = EvidenceSkipped
		return ""
	}
	cand.evidence = c.materialEvidence(cand)
	if cand.evidence == "" {
		return ReasonNotMaterial
	}
	return ""
}

func (c *Classifier) marketMaterialityGate(cand *candidate) Reason {
	cand.evidence = c.materialEvidence(cand)
	if cand.evidence == "" && (containsAny(cand.title, c.marketKeywords) || containsAny(cand.summary, c.marketKeywords)) {
		cand.evidence = EvidenceMarketKeyword
	}
	if cand.evidence == "" {
		return ReasonNotMaterial
	}
	return ""
}

func (c *Classifier) materialEvidence(cand *candidate) Evidence {
	switch {
	case hasDigit(cand.title) || hasDigit(cand.summary):
		return EvidenceDigit
	case containsAny(cand.title, c.verbs) || containsAny(cand.summary, c.verbs):
		return EvidenceVerb
	case c.isOfficial(cand.fields.Link):
		return EvidenceOfficial
	}
	return ""
}

func (c *Classifier) isOfficial(link string) bool {
	if link == "" {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return containsAny(strings.ToLower(u.Host+u.Path), c.official)
}

func (c *Classifier) matchCategories(text string) []string {
	var labels []string
	for _, cat := range c.categories {
		if containsAny(text, cat.keywords) {
			labels = append(labels, cat.label)
		}
	}
	return labels
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// normalizeAll normalizes list entries and drops the ones that become empty,
// since an empty needle would match every text.
func normalizeAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if n := textnorm.Normalize(w); n != "" {
			out = append(out, n)
		}
	}
	return out
}
