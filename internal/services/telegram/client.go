package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"

	"github.com/amaumene/nightwatch/internal/config"
)

const (
	defaultAPIBase   = "https://api.telegram.org"
	maxCaptionLength = 1024
	maxMessageLength = 4096
)

// APIError is a Bot API response with ok=false
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error %d: %s", e.StatusCode, e.Description)
}

func (e *APIError) chatNotFound() bool {
	return strings.Contains(strings.ToLower(e.Description), "chat not found")
}

func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client sends HTML messages to one chat through the Telegram Bot API
type Client struct {
	apiBase    string
	token      string
	chatID     string
	httpClient *http.Client
	logger     zerolog.Logger
	closeOnce  sync.Once

	attempts   uint
	retryDelay time.Duration
}

// NewClient creates a new Telegram client. Missing credentials are allowed;
// Send then logs a warning and reports failure.
func NewClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return &Client{
		apiBase: defaultAPIBase,
		token:   cfg.TelegramBotToken,
		chatID:  cfg.TelegramChatID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     logger.With().Str("component", "telegram").Logger(),
		attempts:   3,
		retryDelay: time.Second,
	}
}

// Configured reports whether a token and chat id are set
func (c *Client) Configured() bool {
	return c.token != "" && c.chatID != ""
}

// Close releases pooled connections. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
	return nil
}

// Send delivers an HTML message, as a photo caption when imageURL is set and
// the text fits a caption. Ordinary delivery failures return false.
func (c *Client) Send(ctx context.Context, text, imageURL, correlationID string) bool {
	log := c.logger.With().Str("correlation_id", correlationID).Logger()

	if !c.Configured() {
		log.Warn().
			Str("preview", truncate(text, 100)).
			Msg("Telegram not configured, message dropped")
		return false
	}

	if imageURL != "" && utf8.RuneCountInString(text) <= maxCaptionLength {
		err := c.call(ctx, "sendPhoto", map[string]any{
			"chat_id":    c.chatID,
			"photo":      imageURL,
			"caption":    text,
			"parse_mode": "HTML",
		})
		if err == nil {
			return true
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.chatNotFound() {
			log.Error().Str("chat_id", c.chatID).Msg("Telegram chat not found, check TELEGRAM_CHAT_ID")
			return false
		}
		log.Warn().Err(err).Msg("Failed to send photo, trying text only")
	}

	err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id":    c.chatID,
		"text":       truncate(text, maxMessageLength),
		"parse_mode": "HTML",
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.chatNotFound() {
			log.Error().Str("chat_id", c.chatID).Msg("Telegram chat not found, check TELEGRAM_CHAT_ID")
			return false
		}
		log.Error().Err(err).Msg("Failed to send Telegram message")
		return false
	}
	return true
}

// call posts one Bot API method, retrying transport failures and 5xx/429
func (c *Client) call(ctx context.Context, method string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", method, err)
	}

	return retry.Do(
		func() error { return c.post(ctx, method, body) },
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.retryable()
			}
			return !errors.Is(err, context.Canceled)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug().Err(err).Uint("attempt", n+1).Str("method", method).Msg("Retrying Telegram call")
		}),
	)
}

func (c *Client) post(ctx context.Context, method string, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "nightwatch/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// the URL embeds the token; keep it out of logs
		return fmt.Errorf("telegram request %s failed: %w", method, errors.Unwrap(err))
	}
	defer resp.Body.Close()

	var out struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, &out); err != nil && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("failed to parse telegram response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		desc := out.Description
		if desc == "" {
			desc = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Description: desc}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
