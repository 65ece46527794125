package tablesync

import (
	"context"

	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

// Notification is a user-facing message raised by a failed command.
type Notification struct {
	Title   string
	Message string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the structured log. Headless
// consumers use it in place of a UI toast.
type LogNotifier struct {
	Logger *logger.Logger
}

func (n LogNotifier) Notify(ctx context.Context, note Notification) {
	if n.Logger == nil {
		return
	}
	n.Logger.Warn(n.Logger.WithField(ctx, "title", note.Title), note.Message)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}
