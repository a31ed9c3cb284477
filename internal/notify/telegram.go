package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/slava9999-dev/arbarea-backend/internal/resilience"
)

// TelegramConfig holds bot credentials. An empty token disables delivery.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string
}

// Configured reports whether the bot can deliver messages.
func (c TelegramConfig) Configured() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// TelegramClient posts messages via the Bot API.
type TelegramClient struct {
	Cfg  TelegramConfig
	HTTP resilience.HTTPClient
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage delivers an HTML-formatted message to the configured chat.
func (c TelegramClient) SendMessage(ctx context.Context, text string) error {
	if !c.Cfg.Configured() {
		return fmt.Errorf("telegram: bot not configured")
	}
	body, err := json.Marshal(sendMessageRequest{
		ChatID:    c.Cfg.ChatID,
		Text:      text,
		ParseMode: "HTML",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(c.Cfg.BaseURL, "/"), c.Cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	defer resp.Body.Close()

	var out sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram: decode response: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("telegram: send rejected: %s", out.Description)
	}
	return nil
}
