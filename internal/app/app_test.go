package app_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/newswatch/internal/app"
	"github.com/deusflow/newswatch/internal/classify"
	"github.com/deusflow/newswatch/internal/config"
	"github.com/deusflow/newswatch/internal/metrics"
	"github.com/deusflow/newswatch/internal/models"
	"github.com/deusflow/newswatch/internal/storage"
	"github.com/deusflow/newswatch/internal/telegram"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) string {
	return now.Add(-d).Format(time.RFC1123)
}

type fakeSource struct {
	mu      sync.Mutex
	entries map[string][]models.FeedEntry
	err     error
	calls   int
	onFetch func()
}

func (s *fakeSource) Fetch(_ context.Context, query string) ([]models.FeedEntry, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.onFetch != nil {
		s.onFetch()
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.entries[query], nil
}

type sent struct {
	chunks []string
	mode   telegram.Markup
}

type fakeBot struct {
	mu      sync.Mutex
	updates []telegram.Update
	sent    []sent
}

func (b *fakeBot) GetUpdates(_ context.Context, _ int64) ([]telegram.Update, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.updates
	b.updates = nil
	return u, nil
}

func (b *fakeBot) SendMessages(_ context.Context, chunks []string, mode telegram.Markup) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, sent{chunks: chunks, mode: mode})
	return nil
}

func (b *fakeBot) last() sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent[len(b.sent)-1]
}

type fakeSummarizer struct {
	input string
	out   string
	err   error
}

func (s *fakeSummarizer) Summarize(_ context.Context, _, input string) (string, error) {
	s.input = input
	return s.out, s.err
}

type fixture struct {
	cfg     *config.Config
	source  *fakeSource
	bot     *fakeBot
	state   *storage.StateStore
	metrics *metrics.Metrics
	deps    app.Deps
}

func newFixture(t *testing.T, companies ...string) *fixture {
	t.Helper()
	dir := t.TempDir()

	wl, err := storage.OpenWatchlist(filepath.Join(dir, "companies.json"))
	require.NoError(t, err)
	for _, c := range companies {
		_, err := wl.Add(c)
		require.NoError(t, err)
	}

	rules := classify.DefaultRules()
	rules.MarketQueries = nil

	f := &fixture{
		cfg: &config.Config{
			TelegramChatID:   "42",
			ChunkSize:        3800,
			LookbackHours:    48,
			MaxPerCompany:    3,
			FetchConcurrency: 2,
			EnableCommands:   true,
			DigestMode:       config.DigestPlain,
		},
		source:  &fakeSource{entries: map[string][]models.FeedEntry{}},
		bot:     &fakeBot{},
		state:   storage.NewStateStore(filepath.Join(dir, "state.json")),
		metrics: metrics.New(),
	}
	f.deps = app.Deps{
		Source:    f.source,
		Bot:       f.bot,
		Watchlist: wl,
		State:     f.state,
		Rules:     rules,
		Metrics:   f.metrics,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return f
}

func (f *fixture) runner() *app.Runner {
	return app.New(f.cfg, f.deps).WithClock(func() time.Time { return now })
}

func update(id int64, text string) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{Chat: telegram.Chat{ID: 42}, Text: text}}
}

func TestRunOncePlainDigest(t *testing.T) {
	f := newFixture(t, "Acme")
	f.source.entries[`"Acme"`] = []models.FeedEntry{
		{Title: "Acme raises $10M Series A funding", Link: "https://n.example.com/a?x=1&y=2", Published: ago(time.Hour)},
		{Title: "Acme expected to sign deal", Link: "https://n.example.com/b", Published: ago(time.Hour)},
	}

	require.NoError(t, f.runner().RunOnce(context.Background()))

	require.Len(t, f.bot.sent, 1)
	msg := f.bot.last()
	assert.Equal(t, telegram.HTML, msg.mode)
	require.Len(t, msg.chunks, 1)
	assert.Contains(t, msg.chunks[0], "last 48h")
	assert.Contains(t, msg.chunks[0], "<b>Acme</b>")
	assert.Contains(t, msg.chunks[0], "x=1&amp;y=2")
	assert.NotContains(t, msg.chunks[0], "expected to")

	stats := f.metrics.GetStats()
	assert.Equal(t, int64(1), stats["total_runs"])
	assert.Equal(t, int64(2), stats["entries_fetched"])
	assert.Equal(t, int64(1), stats["items_kept"])
	assert.Equal(t, int64(1), stats["telegram_messages_sent"])
	assert.Equal(t, map[string]int64{"forward_looking": 1}, stats["dropped"])
	assert.NotEmpty(t, stats["last_run_id"])
}

func TestRunOnceSummarizedDigest(t *testing.T) {
	f := newFixture(t, "Acme")
	f.cfg.DigestMode = config.DigestSummarized
	summarizer := &fakeSummarizer{out: "Company Watchlist\n🔴 Acme: raised $10M - new capital\nMarket Movers\nNone."}
	f.deps.Summarizer = summarizer
	f.source.entries[`"Acme"`] = []models.FeedEntry{
		{Title: "Acme raises $10M Series A funding", Link: "https://n.example.com/a", Published: ago(time.Hour)},
	}

	require.NoError(t, f.runner().RunOnce(context.Background()))

	assert.Contains(t, summarizer.input, "Acme raises $10M Series A funding")
	msg := f.bot.last()
	assert.Equal(t, telegram.PlainText, msg.mode)
	assert.Equal(t, []string{summarizer.out}, msg.chunks)
}

func TestRunOnceSummarizerFailureIsFatal(t *testing.T) {
	f := newFixture(t, "Acme")
	f.cfg.DigestMode = config.DigestSummarized
	boom := errors.New("quota exceeded")
	f.deps.Summarizer = &fakeSummarizer{err: boom}
	f.source.entries[`"Acme"`] = []models.FeedEntry{
		{Title: "Acme raises $10M Series A funding", Link: "https://n.example.com/a", Published: ago(time.Hour)},
	}

	err := f.runner().RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.bot.sent)
	assert.Equal(t, int64(1), f.metrics.GetStats()["failed_runs"])
	assert.False(t, f.metrics.Healthy())
}

func TestRunOnceNothingFound(t *testing.T) {
	f := newFixture(t, "Acme")

	require.NoError(t, f.runner().RunOnce(context.Background()))
	assert.Empty(t, f.bot.sent)
}

func TestRunOnceNothingFoundAfterUpdateCommand(t *testing.T) {
	f := newFixture(t, "Acme")
	f.bot.updates = []telegram.Update{update(7, "/update")}

	require.NoError(t, f.runner().RunOnce(context.Background()))

	require.Len(t, f.bot.sent, 2)
	notice := f.bot.last()
	assert.Equal(t, []string{"No relevant items found in the last 48h."}, notice.chunks)

	st, err := f.state.Load(storage.RunState{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.LastUpdateID)
}

func TestRunOnceCommandsOnly(t *testing.T) {
	f := newFixture(t, "Acme")
	f.cfg.CommandsOnly = true

	require.NoError(t, f.runner().RunOnce(context.Background()))
	assert.Zero(t, f.source.calls)

	f.bot.updates = []telegram.Update{update(1, "/update")}
	require.NoError(t, f.runner().RunOnce(context.Background()))
	assert.Equal(t, 1, f.source.calls)
}

func TestRunOnceUsesBroadModeFromState(t *testing.T) {
	f := newFixture(t, "Acme")
	f.source.entries[`"Acme"`] = []models.FeedEntry{
		{Title: "Acme shows prototype", Link: "https://n.example.com/p", Published: ago(time.Hour)},
	}

	require.NoError(t, f.runner().RunOnce(context.Background()))
	assert.Empty(t, f.bot.sent)

	f.bot.updates = []telegram.Update{update(3, "/broad")}
	require.NoError(t, f.runner().RunOnce(context.Background()))

	msg := f.bot.last()
	assert.Equal(t, telegram.HTML, msg.mode)
	assert.Contains(t, strings.Join(msg.chunks, "\n"), "Acme shows prototype")
}

func TestRunOnceWithoutCommandsReadsState(t *testing.T) {
	f := newFixture(t, "Acme")
	f.cfg.EnableCommands = false
	require.NoError(t, f.state.Save(storage.RunState{BroadMode: true}))
	f.bot.updates = []telegram.Update{update(1, "/strict")}
	f.source.entries[`"Acme"`] = []models.FeedEntry{
		{Title: "Acme shows prototype", Link: "https://n.example.com/p", Published: ago(time.Hour)},
	}

	require.NoError(t, f.runner().RunOnce(context.Background()))
	require.Len(t, f.bot.sent, 1)
	assert.Len(t, f.bot.updates, 1, "updates must not be consumed")
}

func TestRunOnceMarketQueries(t *testing.T) {
	f := newFixture(t)
	f.deps.Rules.MarketQueries = []string{"inflation report"}
	f.source.entries["inflation report"] = []models.FeedEntry{
		{Title: "Fed signals rate cut amid inflation data", Link: "https://n.example.com/m"},
	}

	require.NoError(t, f.runner().RunOnce(context.Background()))
	msg := f.bot.last()
	assert.Contains(t, msg.chunks[0], "<b>Market</b>")
	assert.Contains(t, msg.chunks[0], "(Macro)")
}

func TestRunOnceFetchFailure(t *testing.T) {
	f := newFixture(t, "Acme")
	boom := errors.New("connection reset")
	f.source.err = boom

	err := f.runner().RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, f.bot.sent)
}

func TestRunPeriodicStopsOnCancel(t *testing.T) {
	f := newFixture(t, "Acme")
	f.cfg.RunInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fetched := make(chan struct{}, 1)
	f.source.onFetch = func() {
		select {
		case fetched <- struct{}{}:
		default:
		}
	}

	done := make(chan error, 1)
	go func() { done <- f.runner().Run(ctx) }()

	select {
	case <-fetched:
	case <-time.After(5 * time.Second):
		t.Fatal("first pass did not start")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, int64(1), f.metrics.GetStats()["total_runs"])
}

func TestBuildPlainMode(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		TelegramToken:    "123:abc",
		TelegramChatID:   "42",
		CompaniesPath:    filepath.Join(dir, "companies.json"),
		StatePath:        filepath.Join(dir, "state.json"),
		ChunkSize:        3800,
		LookbackHours:    48,
		MaxPerCompany:    3,
		FetchConcurrency: 1,
		DigestMode:       config.DigestPlain,
	}

	runner, closeFn, err := app.Build(context.Background(), cfg, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.NotNil(t, runner)
	assert.NoError(t, closeFn())
}

func TestBuildRejectsBadRules(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		CompaniesPath: filepath.Join(dir, "companies.json"),
		RulesPath:     filepath.Join(dir, "missing.yaml"),
		DigestMode:    config.DigestPlain,
	}

	_, _, err := app.Build(context.Background(), cfg, metrics.New(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load rules")
}
