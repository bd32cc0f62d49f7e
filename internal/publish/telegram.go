package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const telegramAPIBaseURL = "https://api.telegram.org"

// telegramMessageLimit is the bot API's maximum message length.
const telegramMessageLimit = 4096

// TelegramConfig holds the settings for the Telegram sink.
type TelegramConfig struct {
	BotToken string
	ChatID   string

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
}

// TelegramSink posts the digest to a Telegram chat via the bot API.
// Telegram has no update-by-date semantics, so a re-publish posts a
// fresh message; the chat shows the latest digest last either way.
type TelegramSink struct {
	httpClient *http.Client
	config     TelegramConfig
}

// NewTelegramSink creates a TelegramSink.
func NewTelegramSink(config TelegramConfig) (*TelegramSink, error) {
	if config.BotToken == "" || config.ChatID == "" {
		return nil, errors.New("telegram bot token and chat id cannot be empty")
	}
	if config.BaseURL == "" {
		config.BaseURL = telegramAPIBaseURL
	}
	return &TelegramSink{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		config:     config,
	}, nil
}

// Name implements Sink.
func (s *TelegramSink) Name() string { return "telegram" }

// Publish implements Sink. Long digests are split on article boundaries
// to stay under the message length limit.
func (s *TelegramSink) Publish(ctx context.Context, date string, content string) error {
	for _, chunk := range splitMessage(content, telegramMessageLimit) {
		if err := s.sendMessage(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *TelegramSink) sendMessage(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.config.BaseURL, s.config.BotToken)

	form := url.Values{}
	form.Set("chat_id", s.config.ChatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}

// splitMessage breaks content into chunks of at most limit bytes,
// preferring paragraph boundaries so articles stay intact.
func splitMessage(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var chunks []string
	var current strings.Builder
	for _, paragraph := range strings.Split(content, "\n\n") {
		// A single oversize paragraph is sent truncated rather than
		// rejected by the API.
		if len(paragraph) > limit {
			paragraph = paragraph[:limit]
		}
		if current.Len() > 0 && current.Len()+len(paragraph)+2 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
