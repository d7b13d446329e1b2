package commands_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deusflow/newswatch/internal/commands"
	"github.com/deusflow/newswatch/internal/storage"
	"github.com/deusflow/newswatch/internal/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	updates []telegram.Update
	offset  int64
	sent    []string
	modes   []telegram.Markup
	sendErr error
}

func (b *fakeBot) GetUpdates(_ context.Context, offset int64) ([]telegram.Update, error) {
	b.offset = offset
	return b.updates, nil
}

func (b *fakeBot) SendMessages(_ context.Context, chunks []string, mode telegram.Markup) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, chunks...)
	for range chunks {
		b.modes = append(b.modes, mode)
	}
	return nil
}

func msg(id int64, chat int64, text string) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{Chat: telegram.Chat{ID: chat}, Text: text}}
}

type fixture struct {
	bot       *fakeBot
	watchlist *storage.Watchlist
	state     *storage.StateStore
	handler   *commands.Handler
}

func newFixture(t *testing.T, updates ...telegram.Update) *fixture {
	t.Helper()
	dir := t.TempDir()

	wl, err := storage.OpenWatchlist(filepath.Join(dir, "companies.json"))
	require.NoError(t, err)
	st := storage.NewStateStore(filepath.Join(dir, "state.json"))
	bot := &fakeBot{updates: updates}

	h := commands.NewHandler(bot, wl, st, commands.Config{ChatID: "42", ChunkSize: 3800},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &fixture{bot: bot, watchlist: wl, state: st, handler: h}
}

func TestProcessNoUpdates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.state.Save(storage.RunState{LastUpdateID: 5}))

	res, err := f.handler.Process(context.Background())
	require.NoError(t, err)
	assert.False(t, res.RunNow)
	assert.Equal(t, int64(6), f.bot.offset)
	assert.Equal(t, 0, res.Processed)
	assert.Empty(t, f.bot.sent)
}

func TestProcessAddAndList(t *testing.T) {
	f := newFixture(t,
		msg(10, 42, "/add Acme & Co"),
		msg(11, 42, "/add acme & co"),
		msg(12, 42, "/add <script>"),
		msg(13, 42, "/add"),
		msg(14, 42, "/LIST"),
	)

	res, err := f.handler.Process(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Added: Acme &amp; Co",
		"Already tracking: Acme &amp; Co",
		"Please provide a plain company name without &lt; or &gt;.",
		"Please provide a company name, e.g. /add Amazon",
		"Tracked companies:\n- Acme &amp; Co",
	}, f.bot.sent)
	for _, m := range f.bot.modes {
		assert.Equal(t, telegram.HTML, m)
	}
	// replies carry no markup of their own, so no raw angle brackets may reach HTML mode
	for _, reply := range f.bot.sent {
		assert.NotContains(t, reply, "<")
		assert.NotContains(t, reply, ">")
	}
	assert.Equal(t, []string{"Acme & Co"}, f.watchlist.Names())
	assert.Equal(t, int64(14), res.State.LastUpdateID)

	saved, err := f.state.Load(storage.RunState{})
	require.NoError(t, err)
	assert.Equal(t, int64(14), saved.LastUpdateID)
}

func TestProcessEmptyList(t *testing.T) {
	f := newFixture(t, msg(1, 42, "/list"))
	_, err := f.handler.Process(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"No companies are currently tracked."}, f.bot.sent)
}

func TestProcessUpdateAndModes(t *testing.T) {
	f := newFixture(t,
		msg(1, 42, "/update@newswatch_bot"),
		msg(2, 42, "/broad"),
		msg(3, 42, "/mode"),
		msg(4, 42, "/strict"),
		msg(5, 42, "/mode"),
		msg(6, 42, "/broad"),
	)

	res, err := f.handler.Process(context.Background())
	require.NoError(t, err)
	assert.True(t, res.RunNow)
	assert.True(t, res.State.BroadMode)

	require.Len(t, f.bot.sent, 6)
	assert.Equal(t, "Running update now…", f.bot.sent[0])
	assert.Equal(t, "Current mode: broad", f.bot.sent[2])
	assert.Equal(t, "Current mode: strict", f.bot.sent[4])

	saved, err := f.state.Load(storage.RunState{})
	require.NoError(t, err)
	assert.True(t, saved.BroadMode)
}

func TestProcessIgnoresOtherChatsAndNoise(t *testing.T) {
	f := newFixture(t,
		msg(1, 99, "/add Evil"),
		msg(2, 42, "hello there"),
		msg(3, 42, "   "),
		telegram.Update{UpdateID: 4},
		telegram.Update{UpdateID: 5, EditedMessage: &telegram.Message{Chat: telegram.Chat{ID: 42}, Text: "/help"}},
		msg(6, 42, "/unknown"),
	)

	res, err := f.handler.Process(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.watchlist.Names())
	require.Len(t, f.bot.sent, 1)
	assert.True(t, strings.HasPrefix(f.bot.sent[0], "Commands:\n/add COMPANY"))
	assert.Equal(t, int64(6), res.State.LastUpdateID)
	assert.Equal(t, 6, res.Processed)
}

func TestProcessListIsChunked(t *testing.T) {
	var updates []telegram.Update
	for i := 0; i < 40; i++ {
		updates = append(updates, msg(int64(i+1), 42, "/add Company number "+strings.Repeat("x", 20)+string(rune('A'+i%26))+string(rune('a'+i/26))))
	}
	updates = append(updates, msg(100, 42, "/list"))

	dir := t.TempDir()
	wl, err := storage.OpenWatchlist(filepath.Join(dir, "companies.json"))
	require.NoError(t, err)
	bot := &fakeBot{updates: updates}
	h := commands.NewHandler(bot, wl, storage.NewStateStore(filepath.Join(dir, "state.json")),
		commands.Config{ChatID: "42", ChunkSize: 300}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err = h.Process(context.Background())
	require.NoError(t, err)

	listChunks := bot.sent[40:]
	assert.Greater(t, len(listChunks), 1)
	assert.True(t, strings.HasPrefix(listChunks[0], "Tracked companies:"))
	for _, c := range listChunks {
		assert.LessOrEqual(t, len([]rune(c)), 300)
	}
}

func TestProcessSendFailureSavesCursor(t *testing.T) {
	f := newFixture(t, msg(7, 42, "/help"), msg(8, 42, "/list"))
	boom := errors.New("telegram down")
	f.bot.sendErr = boom

	_, err := f.handler.Process(context.Background())
	assert.ErrorIs(t, err, boom)

	saved, err := f.state.Load(storage.RunState{})
	require.NoError(t, err)
	assert.Equal(t, int64(7), saved.LastUpdateID)
}
