// Package commands processes chat commands that manage the watchlist and
// the run state.
package commands

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"

	"github.com/deusflow/newswatch/internal/digest"
	"github.com/deusflow/newswatch/internal/storage"
	"github.com/deusflow/newswatch/internal/telegram"
)

const helpText = "Commands:\n" +
	"/add COMPANY — add a company\n" +
	"/list — list companies\n" +
	"/update — run now\n" +
	"/broad — relaxed filtering\n" +
	"/strict — strict filtering\n" +
	"/mode — show filtering mode\n" +
	"/help — this help"

type Bot interface {
	GetUpdates(ctx context.Context, offset int64) ([]telegram.Update, error)
	SendMessages(ctx context.Context, chunks []string, mode telegram.Markup) error
}

type Watchlist interface {
	Names() []string
	Add(name string) (storage.Company, error)
}

type StateStore interface {
	Load(defaults storage.RunState) (storage.RunState, error)
	Save(st storage.RunState) error
}

type Config struct {
	ChatID string
	// Defaults seed the run state before the state file exists.
	Defaults  storage.RunState
	ChunkSize int
}

type Handler struct {
	bot       Bot
	watchlist Watchlist
	state     StateStore
	cfg       Config
	logger    *slog.Logger
}

// Result is the outcome of one Process call.
type Result struct {
	// RunNow is set when /update was received.
	RunNow bool
	// State is the run state after all updates were applied.
	State     storage.RunState
	Processed int
}

func NewHandler(bot Bot, watchlist Watchlist, state StateStore, cfg Config, logger *slog.Logger) *Handler {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = digest.DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bot: bot, watchlist: watchlist, state: state, cfg: cfg, logger: logger}
}

// Process fetches pending updates, answers the commands from the configured
// chat and saves the advanced cursor. Updates from other chats are skipped
// but still consumed.
func (h *Handler) Process(ctx context.Context) (Result, error) {
	st, err := h.state.Load(h.cfg.Defaults)
	if err != nil {
		return Result{}, fmt.Errorf("load state: %w", err)
	}
	res := Result{State: st}

	updates, err := h.bot.GetUpdates(ctx, st.LastUpdateID+1)
	if err != nil {
		return res, fmt.Errorf("get updates: %w", err)
	}
	if len(updates) == 0 {
		return res, nil
	}

	var handleErr error
	for _, u := range updates {
		res.State.LastUpdateID = u.UpdateID
		res.Processed++

		msg := u.EffectiveMessage()
		if msg == nil {
			continue
		}
		if strconv.FormatInt(msg.Chat.ID, 10) != h.cfg.ChatID {
			h.logger.Warn("ignoring update from unknown chat", "chat_id", msg.Chat.ID, "update_id", u.UpdateID)
			continue
		}
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}

		if handleErr = h.handle(ctx, text, &res); handleErr != nil {
			break
		}
	}

	if err := h.state.Save(res.State); err != nil {
		return res, errors.Join(handleErr, fmt.Errorf("save state: %w", err))
	}
	return res, handleErr
}

func (h *Handler) handle(ctx context.Context, text string, res *Result) error {
	cmd, arg := parseCommand(text)
	if cmd == "" {
		return nil
	}
	h.logger.Info("command received", "command", cmd)

	switch cmd {
	case "/add":
		return h.add(ctx, arg)
	case "/list":
		return h.list(ctx)
	case "/help":
		return h.reply(ctx, helpText)
	case "/update":
		res.RunNow = true
		return h.reply(ctx, "Running update now…")
	case "/broad":
		res.State.BroadMode = true
		return h.reply(ctx, "Broad mode on: summaries are scanned for keywords and the company materiality check is off.")
	case "/strict":
		res.State.BroadMode = false
		return h.reply(ctx, "Strict mode on: keywords must appear in the title and company news needs a figure, a material verb or an official source.")
	case "/mode":
		mode := "strict"
		if res.State.BroadMode {
			mode = "broad"
		}
		return h.reply(ctx, "Current mode: "+mode)
	}
	return nil
}

func (h *Handler) add(ctx context.Context, name string) error {
	c, err := h.watchlist.Add(name)

	var dup *storage.DuplicateError
	switch {
	case errors.Is(err, storage.ErrEmptyName):
		return h.reply(ctx, "Please provide a company name, e.g. /add Amazon")
	case errors.Is(err, storage.ErrInvalidName):
		return h.reply(ctx, "Please provide a plain company name without &lt; or &gt;.")
	case errors.As(err, &dup):
		return h.reply(ctx, "Already tracking: "+html.EscapeString(dup.Existing))
	case err != nil:
		return fmt.Errorf("add company: %w", err)
	}

	h.logger.Info("company added", "id", c.ID, "name", c.Name)
	return h.reply(ctx, "Added: "+html.EscapeString(c.Name))
}

func (h *Handler) list(ctx context.Context) error {
	names := h.watchlist.Names()
	if len(names) == 0 {
		return h.reply(ctx, "No companies are currently tracked.")
	}

	var b strings.Builder
	b.WriteString("Tracked companies:")
	for _, n := range names {
		b.WriteString("\n- ")
		b.WriteString(html.EscapeString(n))
	}
	return h.bot.SendMessages(ctx, digest.ChunkMessage(b.String(), h.cfg.ChunkSize), telegram.HTML)
}

func (h *Handler) reply(ctx context.Context, text string) error {
	return h.bot.SendMessages(ctx, []string{text}, telegram.HTML)
}

// parseCommand splits "/Cmd@bot args" into ("/cmd", "args"). Text that is
// not a command yields an empty cmd.
func parseCommand(text string) (cmd, arg string) {
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	token := text
	if i := strings.IndexFunc(text, isSpace); i >= 0 {
		token, arg = text[:i], strings.TrimSpace(text[i:])
	}
	if at := strings.Index(token, "@"); at >= 0 {
		token = token[:at]
	}
	return strings.ToLower(token), arg
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
