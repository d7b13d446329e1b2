package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/deusflow/newswatch/internal/retry"
	"golang.org/x/time/rate"
)

const DefaultAPIURL = "https://api.telegram.org"

// Markup selects how Telegram renders a message.
type Markup int

const (
	HTML Markup = iota
	PlainText
)

type Config struct {
	Token   string
	ChatID  string
	BaseURL string
	// SendInterval is the minimum gap between two sendMessage calls.
	SendInterval time.Duration
	// PollTimeout is the getUpdates long-poll duration in seconds.
	PollTimeout int
	Retry       retry.RetryConfig
}

// maxRetryAfter bounds how long a 429 answer may pause delivery.
const maxRetryAfter = time.Minute

// APIError is returned when Telegram answers with a non-2xx status or ok=false.
type APIError struct {
	Method     string
	StatusCode int
	Body       string
	// RetryAfter is the wait Telegram asked for on a 429 answer.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s failed: status %d: %s", e.Method, e.StatusCode, e.Body)
}

func (e *APIError) temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAPIURL
	}
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = time.Second
	}
	if cfg.PollTimeout < 0 {
		cfg.PollTimeout = 0
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Default
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: time.Duration(cfg.PollTimeout)*time.Second + 30*time.Second},
		limiter: rate.NewLimiter(rate.Every(cfg.SendInterval), 1),
		logger:  logger,
	}
}

// SendMessages delivers chunks in order, pacing them by SendInterval.
// It stops at the first chunk that cannot be delivered. Only 5xx and 429
// answers are retried: a transport error may hide a delivered message.
func (c *Client) SendMessages(ctx context.Context, chunks []string, mode Markup) error {
	for i, text := range chunks {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := retry.WithRetry(ctx, c.cfg.Retry, func() error {
			err := c.sendMessageOnce(ctx, text, mode)
			if err == nil {
				return nil
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || !apiErr.temporary() {
				return retry.Permanent(err)
			}
			if apiErr.RetryAfter > 0 {
				if werr := sleep(ctx, apiErr.RetryAfter); werr != nil {
					return retry.Permanent(werr)
				}
			}
			return err
		})
		if err != nil {
			return fmt.Errorf("send message %d/%d: %w", i+1, len(chunks), err)
		}
		c.logger.Debug("message sent", "part", i+1, "of", len(chunks))
	}
	return nil
}

func (c *Client) sendMessageOnce(ctx context.Context, text string, mode Markup) error {
	payload := map[string]interface{}{
		"chat_id":                  c.cfg.ChatID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if mode == HTML {
		payload["parse_mode"] = "HTML"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Method:     "sendMessage",
			StatusCode: resp.StatusCode,
			Body:       string(data),
			RetryAfter: retryAfter(data),
		}
	}
	return nil
}

type errorResponse struct {
	Parameters struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

func retryAfter(body []byte) time.Duration {
	var r errorResponse
	if err := json.Unmarshal(body, &r); err != nil || r.Parameters.RetryAfter <= 0 {
		return 0
	}
	d := time.Duration(r.Parameters.RetryAfter) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

// EffectiveMessage returns the message or, failing that, the edited message.
func (u Update) EffectiveMessage() *Message {
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Result      []Update `json:"result"`
	Description string   `json:"description"`
}

// GetUpdates long-polls for updates with update_id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(offset, 10))
	q.Set("timeout", strconv.Itoa(c.cfg.PollTimeout))
	endpoint := c.methodURL("getUpdates") + "?" + q.Encode()

	var updates []Update
	err := retry.WithRetry(ctx, c.cfg.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("error HTTP request: %w", err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{Method: "getUpdates", StatusCode: resp.StatusCode, Body: string(data)}
			if apiErr.temporary() {
				return apiErr
			}
			return retry.Permanent(apiErr)
		}

		var out updatesResponse
		if err := json.Unmarshal(data, &out); err != nil {
			return retry.Permanent(fmt.Errorf("decode getUpdates: %w", err))
		}
		if !out.OK {
			return retry.Permanent(&APIError{Method: "getUpdates", StatusCode: resp.StatusCode, Body: out.Description})
		}
		updates = out.Result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.cfg.BaseURL, c.cfg.Token, method)
}
