package slack

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/smallbiznis/paylink/internal/config"
	"go.uber.org/zap"
)

const (
	alertUsername = "Payment Service Error"
	alertIcon     = ":interrobang:"
)

type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

// APIProvider posts through the chat.postMessage web API.
type APIProvider struct {
	url    string
	client *resty.Client
}

type postMessage struct {
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
	Channel   string `json:"channel"`
	Text      string `json:"text"`
}

type postResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func NewAPIProvider(cfg config.SlackConfig, client *resty.Client) *APIProvider {
	if client == nil {
		client = resty.New()
	}
	client.SetAuthToken(cfg.Token)
	return &APIProvider{url: cfg.BaseURL, client: client}
}

func (p *APIProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	var out postResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json; charset=utf-8").
		SetBody(postMessage{
			Username:  alertUsername,
			IconEmoji: alertIcon,
			Channel:   channelID,
			Text:      message,
		}).
		SetResult(&out).
		Post(p.url)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("slack: status %d", resp.StatusCode())
	}
	if !out.OK && out.Error != "" {
		return fmt.Errorf("slack: %s", out.Error)
	}
	return nil
}

// Alerter posts operator alerts to the configured channel. Delivery failures
// are logged and never returned.
type Alerter struct {
	provider Provider
	channel  string
	log      *zap.Logger
}

func NewAlerter(provider Provider, cfg config.Config, log *zap.Logger) *Alerter {
	return &Alerter{
		provider: provider,
		channel:  cfg.Slack.Channel,
		log:      log.Named("slack.alerter"),
	}
}

func (a *Alerter) Alert(ctx context.Context, message string) {
	a.log.Warn("alert", zap.String("message", message))
	if err := a.provider.PostMessage(context.WithoutCancel(ctx), a.channel, message); err != nil {
		a.log.Error("slack alert failed", zap.Error(err))
	}
}
