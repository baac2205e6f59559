package engine

import (
	"context"
	"time"
)

// Interface for a type that can handle sending notifications
type Notifier interface {
	SendAbandoned(ctx context.Context, c Correction, attempts int, cause error) error
}

// Fire-and-forget: notification delivery must never hold up enforcement.
func (e *Engine) notifyAbandoned(c Correction, attempts int, cause error) {
	if e.Notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.Notifier.SendAbandoned(ctx, c, attempts, cause); err != nil {
			e.Logger.Warn("failed to send notification", "err", err, "correction", c.String())
		}
	}()
}
