package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Alerter sends short operator alerts.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

type Bot struct {
	baseURL string
	chatID  string
	client  *http.Client
}

func NewBot(token, chatID string) *Bot {
	return &Bot{
		baseURL: "https://api.telegram.org/bot" + token,
		chatID:  chatID,
		client:  &http.Client{},
	}
}

// WithBaseURL points the bot at another API host
func (b *Bot) WithBaseURL(baseURL string) *Bot {
	b.baseURL = strings.TrimRight(baseURL, "/")
	return b
}

func (b *Bot) SendMessage(ctx context.Context, chatID, text string) error {
	endpoint := b.baseURL + "/sendMessage"

	params := url.Values{}
	params.Add("chat_id", chatID)
	params.Add("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API error: %s", resp.Status)
	}

	return nil
}

// Alert sends text to the configured operator chat
func (b *Bot) Alert(ctx context.Context, text string) error {
	return b.SendMessage(ctx, b.chatID, text)
}

// LogAlerter is used when Telegram is disabled
type LogAlerter struct {
	Logger logrus.FieldLogger
}

func (a LogAlerter) Alert(ctx context.Context, text string) error {
	a.Logger.WithField("alert", text).Warn("Operator alert")
	return nil
}
