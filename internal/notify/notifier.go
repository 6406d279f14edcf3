// Package notify renders alerts as human-readable notifications and delivers
// them to Telegram, Discord and the console. Each destination is exposed as a
// dispatch channel so the gate applies severity floors and rate limits
// before anything is sent.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/dispatch"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Sender is the interface that each notification destination implements.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns the channel identifier (e.g. "telegram").
	Name() string
}

// Channel adapts a Sender to dispatch.Channel by formatting the alert first.
type Channel struct {
	sender Sender
}

var _ dispatch.Channel = (*Channel)(nil)

// NewChannel wraps s.
func NewChannel(s Sender) *Channel {
	return &Channel{sender: s}
}

func (c *Channel) Name() string { return c.sender.Name() }

// Send formats alert and hands it to the sender.
func (c *Channel) Send(ctx context.Context, alert domain.Alert) error {
	title, body := Format(alert)
	if err := c.sender.Send(ctx, title, body); err != nil {
		return fmt.Errorf("notify: %s: %w", c.sender.Name(), err)
	}
	return nil
}

// Channels builds the configured channels. Telegram needs both a token and a
// chat ID; Discord needs a webhook URL.
func Channels(cfg *config.NotifyConfig, logger *slog.Logger) []dispatch.Channel {
	var out []dispatch.Channel
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		out = append(out, NewChannel(NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID)))
	}
	if cfg.DiscordWebhookURL != "" {
		out = append(out, NewChannel(NewDiscordSender(cfg.DiscordWebhookURL)))
	}
	if cfg.ConsoleEnabled {
		out = append(out, NewChannel(NewConsoleSender(logger)))
	}
	return out
}

// Format returns the notification title and body for alert. The title names
// the severity, type and market; the body lists confidence, every signal and
// the recommendation.
func Format(alert domain.Alert) (title, body string) {
	title = fmt.Sprintf("[%s] %s on %s", alert.Severity, alert.Type, alert.MarketID)

	var b strings.Builder
	fmt.Fprintf(&b, "Confidence: %.1f\n", alert.Confidence)
	b.WriteString("Signals:\n")
	for _, s := range alert.Signals {
		fmt.Fprintf(&b, "- %s", s.Detector)
		if s.Kind != "" {
			fmt.Fprintf(&b, " (%s)", s.Kind)
		}
		fmt.Fprintf(&b, ": score %.1f", s.Score)
		if s.Direction != "" && s.Direction != domain.DirectionNone {
			fmt.Fprintf(&b, ", %s", s.Direction)
		}
		if s.Evidence.VolumeUSD > 0 {
			fmt.Fprintf(&b, ", $%.0f", s.Evidence.VolumeUSD)
		}
		if n := len(s.Evidence.Wallets); n > 0 {
			fmt.Fprintf(&b, ", %d wallet(s)", n)
		}
		b.WriteString("\n")
	}
	r := alert.Recommendation
	fmt.Fprintf(&b, "Recommendation: %s (bias %s) at %.4f\n", r.Action, r.Bias, r.Price)
	if alert.RecommendedAction != "" {
		b.WriteString(alert.RecommendedAction + "\n")
	}
	fmt.Fprintf(&b, "Alert %s at %s", alert.ID, alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	return title, b.String()
}
