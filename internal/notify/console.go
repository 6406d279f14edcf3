package notify

import (
	"context"
	"log/slog"
)

// ConsoleSender writes notifications to the process log.
type ConsoleSender struct {
	logger *slog.Logger
}

// NewConsoleSender creates a ConsoleSender.
func NewConsoleSender(logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{logger: logger.With(slog.String("component", "console_notifier"))}
}

// Send logs the notification at warn level.
func (c *ConsoleSender) Send(ctx context.Context, title, message string) error {
	c.logger.WarnContext(ctx, title, slog.String("body", message))
	return nil
}

func (c *ConsoleSender) Name() string { return "console" }
