package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TelegramSender posts messages through the Telegram Bot HTTP API.
type TelegramSender struct {
	base   string
	token  string
	client *http.Client
}

func NewTelegramSender(apiBase, token string) *TelegramSender {
	return &TelegramSender{
		base:   apiBase,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type tgResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramSender) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/%s", t.base, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var out tgResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	if !out.OK {
		return fmt.Errorf("telegram %s: %s", method, out.Description)
	}
	return nil
}

func (t *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	return t.call(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
}

// Verify checks bot connectivity with getMe. main calls this once at boot
// and marks the readiness gate on success.
func (t *TelegramSender) Verify(ctx context.Context) error {
	return t.call(ctx, "getMe", map[string]any{})
}
