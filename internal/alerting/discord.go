package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	discordComponentActionRow = 1
	discordComponentButton    = 2
	discordButtonStyleLink    = 5

	discordMaxFields = 25
)

// DiscordNotifier posts alerts to guild text channels through the REST API.
type DiscordNotifier struct {
	botToken string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewDiscordNotifier builds a Discord notifier authenticated as a bot.
func NewDiscordNotifier(botToken, baseURL string, timeout time.Duration, logger zerolog.Logger) *DiscordNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://discord.com/api/v10"
	}
	return &DiscordNotifier{
		botToken: botToken,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_discord").Logger(),
	}
}

type discordAuthor struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type discordMedia struct {
	URL string `json:"url"`
}

type discordFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Author      *discordAuthor `json:"author,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
	Thumbnail   *discordMedia  `json:"thumbnail,omitempty"`
	Image       *discordMedia  `json:"image,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordComponent struct {
	Type       int                `json:"type"`
	Style      int                `json:"style,omitempty"`
	Label      string             `json:"label,omitempty"`
	URL        string             `json:"url,omitempty"`
	Components []discordComponent `json:"components,omitempty"`
}

type discordMessage struct {
	Content    string             `json:"content,omitempty"`
	Embeds     []discordEmbed     `json:"embeds,omitempty"`
	Components []discordComponent `json:"components,omitempty"`
}

// Send posts msg to the channel with the given id.
func (n *DiscordNotifier) Send(ctx context.Context, channel string, msg Message) error {
	if channel == "" {
		return ErrNoChannel
	}

	body, err := json.Marshal(toDiscord(msg))
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", n.baseURL, channel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+n.botToken)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	n.logger.Debug().Str("channel", channel).Str("title", msg.Title).Msg("alert sent (discord)")
	return nil
}

func toDiscord(msg Message) discordMessage {
	if msg.IsNotice() {
		return discordMessage{Content: msg.Text}
	}

	embed := discordEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		URL:         msg.URL,
		Color:       msg.Color,
	}
	if !msg.Timestamp.IsZero() {
		embed.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	if msg.Author != "" {
		embed.Author = &discordAuthor{Name: msg.Author, URL: msg.AuthorURL, IconURL: msg.AuthorIcon}
	}
	for i, f := range msg.Fields {
		if i == discordMaxFields {
			break
		}
		embed.Fields = append(embed.Fields, discordField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if msg.ThumbnailURL != "" {
		embed.Thumbnail = &discordMedia{URL: msg.ThumbnailURL}
	}
	if msg.ImageURL != "" {
		embed.Image = &discordMedia{URL: msg.ImageURL}
	}
	if msg.Footer != "" {
		embed.Footer = &discordFooter{Text: msg.Footer, IconURL: msg.FooterIcon}
	}

	out := discordMessage{Content: msg.Text, Embeds: []discordEmbed{embed}}
	if msg.Button != nil && msg.Button.URL != "" {
		out.Components = []discordComponent{{
			Type: discordComponentActionRow,
			Components: []discordComponent{{
				Type:  discordComponentButton,
				Style: discordButtonStyleLink,
				Label: msg.Button.Label,
				URL:   msg.Button.URL,
			}},
		}}
	}
	return out
}

var _ Notifier = (*DiscordNotifier)(nil)
