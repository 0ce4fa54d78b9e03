package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/slack-go/slack"
)

// discordMaxContent is Discord's message length limit.
const discordMaxContent = 2000

// LogSink writes messages to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

func (LogSink) Name() string { return "log" }

func (s LogSink) Send(ctx context.Context, m Message) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.InfoContext(ctx, "notification", "kind", m.Kind, "task", m.TaskNumber, "title", m.Title, "body", m.Body)
	return nil
}

// SlackSink posts to a Slack incoming webhook.
type SlackSink struct {
	url  string
	post func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlackSink returns a sink posting to webhookURL.
func NewSlackSink(webhookURL string) (*SlackSink, error) {
	if err := checkWebhookURL(webhookURL); err != nil {
		return nil, fmt.Errorf("notify: slack: %w", err)
	}
	return &SlackSink{url: webhookURL, post: slack.PostWebhookContext}, nil
}

func (*SlackSink) Name() string { return "slack" }

func (s *SlackSink) Send(ctx context.Context, m Message) error {
	msg := &slack.WebhookMessage{Text: "*" + m.Title + "*\n" + m.Body}
	if err := s.post(ctx, s.url, msg); err != nil {
		return fmt.Errorf("notify: slack: %w", err)
	}
	return nil
}

// webhookExecutor is the discordgo call the Discord sink needs.
type webhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink executes a Discord webhook.
type DiscordSink struct {
	id, token string
	exec      webhookExecutor
}

// NewDiscordSink parses a webhook URL of the form
// https://discord.com/api/webhooks/<id>/<token>.
func NewDiscordSink(webhookURL string) (*DiscordSink, error) {
	id, token, err := parseDiscordWebhook(webhookURL)
	if err != nil {
		return nil, err
	}
	sess, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("notify: discord: %w", err)
	}
	return &DiscordSink{id: id, token: token, exec: sess}, nil
}

func (*DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Send(ctx context.Context, m Message) error {
	content := "**" + m.Title + "**\n" + m.Body
	if r := []rune(content); len(r) > discordMaxContent {
		content = string(r[:discordMaxContent-3]) + "..."
	}
	_, err := s.exec.WebhookExecute(s.id, s.token, false, &discordgo.WebhookParams{Content: content}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("notify: discord: %w", err)
	}
	return nil
}

func parseDiscordWebhook(raw string) (id, token string, err error) {
	if err := checkWebhookURL(raw); err != nil {
		return "", "", fmt.Errorf("notify: discord: %w", err)
	}
	u, _ := url.Parse(raw)
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("notify: discord: %q is not a webhook URL", raw)
}

func checkWebhookURL(raw string) error {
	if raw == "" {
		return errors.New("empty webhook URL")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("webhook URL %q must be absolute https", raw)
	}
	return nil
}
