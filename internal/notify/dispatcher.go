package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/staffhub/pkg/logger"
	"github.com/charlesng35/staffhub/pkg/mail"
	"github.com/charlesng35/staffhub/pkg/metrics"
)

// DefaultDispatchTimeout bounds a single background delivery.
const DefaultDispatchTimeout = 30 * time.Second

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// Dispatcher sends notifications on background goroutines so callers never
// wait on mail transport latency.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	log      *zap.Logger
	wg       sync.WaitGroup
}

// NewDispatcher wraps notifier. A nil notifier falls back to a LogNotifier.
func NewDispatcher(notifier Notifier, cfg DispatcherConfig) *Dispatcher {
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.WithModule("notify")
	}
	return &Dispatcher{notifier: notifier, timeout: timeout, log: log}
}

// Dispatch schedules msg for delivery and returns immediately. The request
// context's values are kept but its cancellation is not, so delivery outlives
// the HTTP response.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	if len(msg.To) == 0 {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.Notifications.WithLabelValues(string(msg.Template), "failed").Inc()
				d.log.Error("notification panicked", zap.String("template", string(msg.Template)), zap.Any("panic", r))
			}
		}()

		sendCtx, cancel := context.WithTimeout(detached, d.timeout)
		defer cancel()

		err := d.notifier.Send(sendCtx, msg)
		switch {
		case err == nil:
			metrics.Notifications.WithLabelValues(string(msg.Template), "sent").Inc()
		case errors.Is(err, mail.ErrSMTPDisabled):
			metrics.Notifications.WithLabelValues(string(msg.Template), "disabled").Inc()
			d.log.Debug("notification skipped, smtp disabled", zap.String("template", string(msg.Template)))
		default:
			metrics.Notifications.WithLabelValues(string(msg.Template), "failed").Inc()
			d.log.Warn("notification delivery failed",
				zap.String("template", string(msg.Template)),
				zap.Int("recipients", len(msg.To)),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until every in-flight delivery has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
