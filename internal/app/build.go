package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/deusflow/newswatch/internal/classify"
	"github.com/deusflow/newswatch/internal/config"
	"github.com/deusflow/newswatch/internal/metrics"
	"github.com/deusflow/newswatch/internal/retry"
	"github.com/deusflow/newswatch/internal/rss"
	"github.com/deusflow/newswatch/internal/storage"
	"github.com/deusflow/newswatch/internal/summarize"
	"github.com/deusflow/newswatch/internal/telegram"
)

const userAgent = "newswatch/1.0 (+https://github.com/deusflow/newswatch)"

// Build creates the production collaborators for cfg. The returned close
// function releases the summarizer, if any.
func Build(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*Runner, func() error, error) {
	rules, err := classify.LoadRules(cfg.RulesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load rules: %w", err)
	}

	watchlist, err := storage.OpenWatchlist(cfg.CompaniesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open watchlist: %w", err)
	}
	logger.Info("Watchlist loaded", "path", cfg.CompaniesPath, "companies", len(watchlist.Names()))

	bot := telegram.NewClient(telegram.Config{
		Token:        cfg.TelegramToken,
		ChatID:       cfg.TelegramChatID,
		BaseURL:      cfg.TelegramAPIURL,
		SendInterval: cfg.SendInterval,
		PollTimeout:  cfg.UpdatesTimeout,
		Retry:        retry.Default,
	}, logger.With("component", "telegram"))

	fetcher := rss.NewFetcher(rss.FetcherConfig{
		BaseURL:   rss.GoogleNewsSearchURL,
		Lang:      cfg.NewsLang,
		Geo:       cfg.NewsGeo,
		Timeout:   cfg.FetchTimeout,
		UserAgent: userAgent,
		Retry:     retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true},
	}, logger.With("component", "rss"))

	closeFn := func() error { return nil }
	deps := Deps{
		Source:    fetcher,
		Bot:       bot,
		Watchlist: watchlist,
		State:     storage.NewStateStore(cfg.StatePath),
		Rules:     rules,
		Metrics:   m,
		Logger:    logger,
	}

	if cfg.DigestMode == config.DigestSummarized {
		client, err := summarize.New(ctx, summarize.Config{
			Provider: cfg.LLMProvider,
			APIKey:   cfg.LLMAPIKey,
			Model:    cfg.LLMModel,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create summarizer: %w", err)
		}
		deps.Summarizer = client
		closeFn = client.Close
		logger.Info("Summarizer ready", "provider", cfg.LLMProvider)
	}

	return New(cfg, deps), closeFn, nil
}
