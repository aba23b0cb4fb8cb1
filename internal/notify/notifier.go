package notify

import (
	"context"

	"shopflow/pkg/logger"

	"go.uber.org/zap"
)

// Notifier delivers operator-facing failure messages. Delivery is
// best-effort; callers log and swallow returned errors.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LogNotifier writes notifications to the application log. Used when no
// Discord webhook is configured.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, message string) error {
	logger.Warn("operator notification", zap.String("message", message))
	return nil
}
