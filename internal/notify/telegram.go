package notify

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
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"topup-store/internal/metrics"
)

const defaultTelegramURL = "https://api.telegram.org"

// TelegramConfig holds the bot credentials.
type TelegramConfig struct {
	Token   string
	ChatID  string
	BaseURL string
	Timeout time.Duration
}

// Telegram posts alerts through the Bot API sendMessage method.
type Telegram struct {
	cfg     TelegramConfig
	http    *http.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewTelegram builds a Telegram notifier.
func NewTelegram(cfg TelegramConfig, logger *slog.Logger, m *metrics.Metrics) (*Telegram, error) {
	if cfg.Token == "" || cfg.ChatID == "" {
		return nil, errors.New("telegram token and chat id are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultTelegramURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Telegram{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With("component", "telegram"),
		metrics: m,
	}, nil
}

// Send delivers text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	err := t.send(ctx, text)
	status := "ok"
	if err != nil {
		status = "error"
	}
	if t.metrics != nil {
		t.metrics.NotifierSends.WithLabelValues("telegram", status).Inc()
	}
	if err != nil {
		return &sendError{channel: "telegram", err: err}
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{"chat_id": t.cfg.ChatID, "text": text})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.cfg.BaseURL, t.cfg.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		// The URL embeds the token; keep it out of the error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("post sendMessage: %w", uerr.Err)
		}
		return errors.New("post sendMessage failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !gjson.GetBytes(raw, "ok").Bool() {
		desc := gjson.GetBytes(raw, "description").String()
		if desc == "" {
			desc = http.StatusText(resp.StatusCode)
		}
		return fmt.Errorf("telegram status %d: %s", resp.StatusCode, desc)
	}
	t.logger.Debug("telegram alert sent", "message_id", gjson.GetBytes(raw, "result.message_id").Int())
	return nil
}
