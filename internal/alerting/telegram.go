package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramNotifier mirrors alerts to a chat through the Bot API sendMessage call.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier. When chatID is empty the
// channel passed to Send is used as the chat.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Send renders the message as plain text and posts it.
func (n *TelegramNotifier) Send(ctx context.Context, channel string, msg Message) error {
	chatID := n.chatID
	if chatID == "" {
		chatID = channel
	}
	if chatID == "" {
		return ErrNoChannel
	}

	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     renderText(msg),
		"disable_web_page_preview": true,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	n.logger.Debug().Str("chat_id", chatID).Str("title", msg.Title).Msg("alert sent (telegram)")
	return nil
}

func renderText(msg Message) string {
	if msg.IsNotice() {
		return msg.Text
	}

	var b strings.Builder
	if msg.Author != "" {
		fmt.Fprintf(&b, "[%s]\n", msg.Author)
	}
	if msg.Title != "" {
		b.WriteString(msg.Title)
		b.WriteString("\n")
	}
	if msg.Description != "" {
		b.WriteString(stripLinks(msg.Description))
		b.WriteString("\n")
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Name, f.Value)
	}
	if msg.Footer != "" {
		fmt.Fprintf(&b, "via %s\n", msg.Footer)
	}
	if msg.Button != nil && msg.Button.URL != "" {
		fmt.Fprintf(&b, "%s: %s\n", msg.Button.Label, msg.Button.URL)
	}
	return strings.TrimRight(b.String(), "\n")
}

// stripLinks turns markdown links "[label](url)" into "label".
func stripLinks(s string) string {
	var b strings.Builder
	for {
		open := strings.Index(s, "[")
		if open < 0 {
			break
		}
		mid := strings.Index(s[open:], "](")
		if mid < 0 {
			break
		}
		mid += open
		end := strings.Index(s[mid:], ")")
		if end < 0 {
			break
		}
		end += mid
		b.WriteString(s[:open])
		b.WriteString(s[open+1 : mid])
		s = s[end+1:]
	}
	b.WriteString(s)
	return b.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
