package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers the run summary through a Telegram bot.
type TelegramNotifier struct {
	BotToken string
	ChatID   string

	// BaseURL overrides the Telegram API host in tests.
	BaseURL string
}

func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{BotToken: botToken, ChatID: chatID}
}

type telegramPayload struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

func (t *TelegramNotifier) Notify(ctx context.Context, summary Summary) error {
	if t.BotToken == "" || t.ChatID == "" {
		return nil
	}

	body, err := json.Marshal(telegramPayload{
		ChatID: t.ChatID,
		Text:   summary.Render(),
	})
	if err != nil {
		return err
	}

	base := t.BaseURL
	if base == "" {
		base = telegramAPIBase
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", base, t.BotToken)

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram notification failed with status: %s", resp.Status)
	}

	return nil
}
