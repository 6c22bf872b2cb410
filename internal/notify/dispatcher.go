package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"planora-backend/internal/domain"
	"planora-backend/internal/observability/metrics"
)

// Sender is the transport a Dispatcher hands messages to.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher implements ports.Notifier. Each message is sent on its own
// goroutine; failures are logged and never reach the caller.
type Dispatcher struct {
	Sender  Sender
	Logger  *slog.Logger
	Timeout time.Duration

	wg sync.WaitGroup
}

func (d *Dispatcher) Notify(ctx context.Context, msg domain.Email) {
	if msg.To == "" {
		d.Logger.Warn("email skipped: no recipient", "subject", msg.Subject)
		return
	}
	if d.Sender == nil {
		d.Logger.Info("email not sent: smtp disabled", "to", msg.To, "subject", msg.Subject)
		return
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := d.Sender.Send(sendCtx, msg.To, msg.Subject, msg.Body); err != nil {
			metrics.ObserveEmail("failed")
			d.Logger.Warn("email delivery failed", "to", msg.To, "subject", msg.Subject, "err", err)
			return
		}
		metrics.ObserveEmail("sent")
		d.Logger.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	}()
}

// Wait blocks until in-flight sends finish or ctx ends.
func (d *Dispatcher) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
