// Package notification delivers fee notifications: receipts to guardians
// and office notices.
package notification

import (
	"context"
	"errors"

	appfee "github.com/feeledger/backend/internal/application/fee"
	"go.uber.org/zap"
)

// LogDispatcher writes every notification to the log. It is the default
// when no mail provider is configured.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher creates a LogDispatcher
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDispatcher{logger: logger}
}

// Dispatch logs n
func (d *LogDispatcher) Dispatch(_ context.Context, n appfee.Notification) error {
	d.logger.Info("notification",
		zap.String("audience", n.Audience),
		zap.String("kind", n.Kind),
		zap.String("recipient", n.Recipient),
		zap.String("subject", n.Subject),
		zap.Any("payload", n.Payload))
	return nil
}

// MultiDispatcher fans a notification out to every dispatcher. All of them
// are tried; their errors are joined.
type MultiDispatcher struct {
	dispatchers []appfee.NotificationDispatcher
}

// NewMultiDispatcher creates a MultiDispatcher, skipping nil entries
func NewMultiDispatcher(dispatchers ...appfee.NotificationDispatcher) *MultiDispatcher {
	m := &MultiDispatcher{}
	for _, d := range dispatchers {
		if d != nil {
			m.dispatchers = append(m.dispatchers, d)
		}
	}
	return m
}

// Dispatch delivers n through every dispatcher
func (m *MultiDispatcher) Dispatch(ctx context.Context, n appfee.Notification) error {
	var errs []error
	for _, d := range m.dispatchers {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ appfee.NotificationDispatcher = (*LogDispatcher)(nil)
	_ appfee.NotificationDispatcher = (*MultiDispatcher)(nil)
)
