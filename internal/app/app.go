// Package app wires one batch pass: commands, pipeline, formatting and delivery.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/newswatch/internal/classify"
	"github.com/deusflow/newswatch/internal/commands"
	"github.com/deusflow/newswatch/internal/config"
	"github.com/deusflow/newswatch/internal/digest"
	"github.com/deusflow/newswatch/internal/metrics"
	"github.com/deusflow/newswatch/internal/models"
	"github.com/deusflow/newswatch/internal/news"
	"github.com/deusflow/newswatch/internal/storage"
	"github.com/deusflow/newswatch/internal/telegram"
)

// Deps are the collaborators of a Runner.
type Deps struct {
	Source     news.Source
	Bot        commands.Bot
	Watchlist  commands.Watchlist
	State      commands.StateStore
	Rules      classify.Rules
	Summarizer digest.Summarizer
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

type Runner struct {
	cfg      *config.Config
	deps     Deps
	pipeline *news.Pipeline
	commands *commands.Handler
	logger   *slog.Logger
}

func New(cfg *config.Config, deps Deps) *Runner {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global
	}

	pipeline := news.NewPipeline(deps.Source, deps.Rules, news.Config{
		LookbackHours: cfg.LookbackHours,
		MaxPerCompany: cfg.MaxPerCompany,
		Concurrency:   cfg.FetchConcurrency,
	}, deps.Logger.With("component", "pipeline"))

	handler := commands.NewHandler(deps.Bot, deps.Watchlist, deps.State, commands.Config{
		ChatID:    cfg.TelegramChatID,
		Defaults:  defaultState(cfg),
		ChunkSize: cfg.ChunkSize,
	}, deps.Logger.With("component", "commands"))

	return &Runner{
		cfg:      cfg,
		deps:     deps,
		pipeline: pipeline,
		commands: handler,
		logger:   deps.Logger,
	}
}

// WithClock fixes the time used by the pipeline.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.pipeline.WithClock(now)
	return r
}

func defaultState(cfg *config.Config) storage.RunState {
	return storage.RunState{BroadMode: cfg.BroadMode}
}

// Run executes a single pass, or repeats it every RunInterval until ctx is
// cancelled. In periodic mode a failed pass is logged and the loop goes on.
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.RunInterval <= 0 {
		return r.RunOnce(ctx)
	}

	r.logger.Info("Starting periodic mode", "interval", r.cfg.RunInterval)
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			r.logger.Info("Stopping periodic mode")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs one batch pass and records it in the metrics.
func (r *Runner) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	logger := r.logger.With("run_id", runID)
	start := time.Now()

	run := metrics.Run{ID: runID}
	err := r.pass(ctx, logger, &run)
	run.Duration = time.Since(start)
	r.deps.Metrics.RecordRun(run, err)

	if err != nil {
		return fmt.Errorf("run %s: %w", runID, err)
	}
	logger.Info("Pass finished", "duration", run.Duration, "sent", run.Sent)
	return nil
}

func (r *Runner) pass(ctx context.Context, logger *slog.Logger, run *metrics.Run) error {
	state := defaultState(r.cfg)
	runNow := false

	if r.cfg.EnableCommands {
		res, err := r.commands.Process(ctx)
		if err != nil {
			return fmt.Errorf("process commands: %w", err)
		}
		state = res.State
		runNow = res.RunNow
		logger.Info("Commands processed", "updates", res.Processed, "run_now", runNow)
	} else {
		st, err := r.deps.State.Load(state)
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		state = st
	}

	if r.cfg.CommandsOnly && !runNow {
		logger.Info("Commands-only mode and no /update received, skipping digest")
		return nil
	}

	queries := classify.CompanyQueries(r.deps.Watchlist.Names())
	queries = append(queries, classify.MarketQueries(r.deps.Rules.MarketQueries)...)
	logger.Info("Running pipeline", "queries", len(queries), "broad", state.BroadMode)

	res, err := r.pipeline.Run(ctx, queries, state.BroadMode)
	if err != nil {
		return fmt.Errorf("collect news: %w", err)
	}
	run.Fetched = res.Stats.Fetched
	run.Kept = res.Stats.Kept
	run.Duplicates = res.Stats.Duplicates
	run.Capped = res.Stats.Capped
	run.Dropped = make(map[string]int, len(res.Stats.Dropped))
	for reason, n := range res.Stats.Dropped {
		run.Dropped[string(reason)] = n
	}

	if len(res.Items) == 0 {
		logger.Info("No relevant items found", "lookback_hours", r.cfg.LookbackHours)
		if !runNow {
			return nil
		}
		notice := fmt.Sprintf("No relevant items found in the last %dh.", r.cfg.LookbackHours)
		if err := r.deps.Bot.SendMessages(ctx, []string{notice}, telegram.PlainText); err != nil {
			return fmt.Errorf("send notice: %w", err)
		}
		run.Sent = 1
		return nil
	}

	chunks, mode, err := r.render(ctx, res.Items)
	if err != nil {
		return err
	}
	if err := r.deps.Bot.SendMessages(ctx, chunks, mode); err != nil {
		return fmt.Errorf("deliver digest: %w", err)
	}
	run.Sent = len(chunks)
	logger.Info("Digest delivered", "items", len(res.Items), "messages", len(chunks), "mode", r.cfg.DigestMode)
	return nil
}

func (r *Runner) render(ctx context.Context, items []models.NewsItem) ([]string, telegram.Markup, error) {
	if r.cfg.DigestMode == config.DigestSummarized {
		if r.deps.Summarizer == nil {
			return nil, 0, fmt.Errorf("summarized digest requires a summarizer")
		}
		text, err := digest.Summarize(ctx, r.deps.Summarizer, items)
		if err != nil {
			return nil, 0, err
		}
		return digest.ChunkMessage(text, r.cfg.ChunkSize), telegram.PlainText, nil
	}

	text := digest.FormatPlain(items, r.cfg.LookbackHours)
	return digest.ChunkMessage(text, r.cfg.ChunkSize), telegram.HTML, nil
}
