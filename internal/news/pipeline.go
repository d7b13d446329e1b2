// Package news runs the fetch, classify, dedup and cap stages of a pass.
package news

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/newswatch/internal/classify"
	"github.com/deusflow/newswatch/internal/digest"
	"github.com/deusflow/newswatch/internal/models"
)

// Source returns the raw feed entries for a query string.
type Source interface {
	Fetch(ctx context.Context, query string) ([]models.FeedEntry, error)
}

type Config struct {
	LookbackHours int
	MaxPerCompany int
	// Concurrency bounds parallel fetches. Values below 1 mean sequential.
	Concurrency int
}

type Pipeline struct {
	source Source
	rules  classify.Rules
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

type Stats struct {
	Queries    int
	Fetched    int
	Kept       int
	Duplicates int
	Capped     int
	Dropped    map[classify.Reason]int
}

type Result struct {
	Items []models.NewsItem
	Stats Stats
}

func NewPipeline(source Source, rules classify.Rules, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{source: source, rules: rules, cfg: cfg, logger: logger, now: time.Now}
}

// WithClock replaces the time source used for the age cutoff and ordering.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run fetches every query concurrently, then classifies and collects the
// entries in query order so the first-seen link always wins. The first
// fetch error aborts the pass.
func (p *Pipeline) Run(ctx context.Context, queries []classify.Query, broad bool) (Result, error) {
	now := p.now()

	entries, err := p.fetchAll(ctx, queries)
	if err != nil {
		return Result{}, err
	}

	classifier := classify.New(p.rules, classify.Options{
		Lookback: time.Duration(p.cfg.LookbackHours) * time.Hour,
		Broad:    broad,
		Now:      now,
	})

	stats := Stats{Queries: len(queries), Dropped: make(map[classify.Reason]int)}
	collector := digest.NewCollector()
	for i, q := range queries {
		for _, entry := range entries[i] {
			stats.Fetched++
			v := classifier.Classify(q, entry)
			if !v.Kept() {
				stats.Dropped[v.Reason]++
				p.logger.Debug("Entry dropped", "company", q.Company(), "reason", v.Reason, "title", entry.Title)
				continue
			}
			if !collector.Add(v.Item) {
				p.logger.Debug("Duplicate link", "company", q.Company(), "link", v.Item.Link)
				continue
			}
			p.logger.Debug("Entry kept", "company", q.Company(), "evidence", v.Evidence, "title", v.Item.Title)
		}
	}
	stats.Duplicates = collector.Duplicates()

	items := collector.Items()
	digest.SortByRecency(items, now)
	items, stats.Capped = digest.CapPerCompany(items, p.cfg.MaxPerCompany)
	stats.Kept = len(items)

	p.logger.Info("Pipeline finished",
		"queries", stats.Queries,
		"fetched", stats.Fetched,
		"kept", stats.Kept,
		"duplicates", stats.Duplicates,
		"capped", stats.Capped,
		"broad", broad)

	return Result{Items: items, Stats: stats}, nil
}

func (p *Pipeline) fetchAll(ctx context.Context, queries []classify.Query) ([][]models.FeedEntry, error) {
	results := make([][]models.FeedEntry, len(queries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i, q := range queries {
		g.Go(func() error {
			entries, err := p.source.Fetch(ctx, q.Terms())
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
