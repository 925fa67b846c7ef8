package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"autodial_backend/platform/config"
	"autodial_backend/platform/logger"
)

// Messages use Telegram's legacy Markdown mode; the renderers only emit
// *bold* and plain text, so the stricter MarkdownV2 escaping is not needed.
const parseModeMarkdown = "Markdown"

// TelegramClient talks to the Telegram Bot API. A nil client is valid and
// drops every message, so callers never guard for the channel being
// unconfigured.
type TelegramClient struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

// NewTelegramClient builds the bot client, or nil when no bot token is
// configured.
func NewTelegramClient(cfg config.TelegramConfig, log *logger.Logger) *TelegramClient {
	if !cfg.IsTelegramEnabled() {
		return nil
	}

	return &TelegramClient{
		baseURL: strings.TrimRight(cfg.GetTelegramAPIURL(), "/"),
		token:   cfg.GetTelegramBotToken(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type editMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// apiResponse is the Bot API envelope; result's shape depends on the method.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage posts a new message to the chat and returns its message id
// so it can be edited later.
func (c *TelegramClient) SendMessage(ctx context.Context, chatID int64, text string) (int64, error) {
	if c == nil {
		return 0, nil
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	err := c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:    chatID,
		Text:      text,
		ParseMode: parseModeMarkdown,
	}, &result)
	if err != nil {
		return 0, err
	}

	c.log.Debug("telegram message sent", "chat_id", chatID, "message_id", result.MessageID)
	return result.MessageID, nil
}

// EditMessage replaces the text of a previously sent message. Telegram
// rejects an edit that changes nothing; that counts as success because the
// progress renderer can produce the same text twice in a row.
func (c *TelegramClient) EditMessage(ctx context.Context, chatID, messageID int64, text string) error {
	if c == nil {
		return nil
	}

	err := c.call(ctx, "editMessageText", editMessageRequest{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      text,
		ParseMode: parseModeMarkdown,
	}, nil)
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

func (c *TelegramClient) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s failed: %s", method, envelope.Description)
	}

	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode telegram %s result: %w", method, err)
		}
	}
	return nil
}
