package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/deusflow/newswatch/internal/models"
	"github.com/deusflow/newswatch/internal/retry"
	"github.com/mmcdole/gofeed"
)

type FetcherConfig struct {
	BaseURL   string
	Lang      string
	Geo       string
	Timeout   time.Duration
	UserAgent string
	Retry     retry.RetryConfig
}

// Fetcher downloads and parses search feeds.
type Fetcher struct {
	parser *gofeed.Parser
	cfg    FetcherConfig
	logger *slog.Logger
}

func NewFetcher(cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default
	}
	if logger == nil {
		logger = slog.Default()
	}

	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}

	return &Fetcher{parser: parser, cfg: cfg, logger: logger}
}

// Fetch returns the entries of the search feed for query, in feed order.
// Server errors are retried; client errors and unparsable feeds are not.
func (f *Fetcher) Fetch(ctx context.Context, query string) ([]models.FeedEntry, error) {
	feedURL := BuildQueryURL(f.cfg.BaseURL, query, f.cfg.Lang, f.cfg.Geo)

	var feed *gofeed.Feed
	err := retry.WithRetry(ctx, f.cfg.Retry, func() error {
		var err error
		feed, err = f.parser.ParseURLWithContext(feedURL, ctx)
		if err == nil {
			return nil
		}
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			if httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500 {
				return err
			}
			return retry.Permanent(err)
		}
		if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch feed for %q: %w", query, err)
	}

	entries := make([]models.FeedEntry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, toEntry(item))
	}

	f.logger.Debug("feed fetched", "query", query, "entries", len(entries))
	return entries, nil
}

// toEntry maps a gofeed item onto a FeedEntry. gofeed puts RSS <description>
// and Atom <summary> in Description, and full content in Content.
func toEntry(item *gofeed.Item) models.FeedEntry {
	return models.FeedEntry{
		Title:       item.Title,
		Link:        item.Link,
		Summary:     item.Description,
		Description: item.Content,
		Published:   item.Published,
		Updated:     item.Updated,
	}
}
