// Package watch detects client disconnection by polling at a fixed
// interval and cancelling a derived context.
package watch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClientGone is the cancellation cause recorded when the monitor
// detects that the client stopped listening.
var ErrClientGone = errors.New("client disconnected")

// Monitor polls a liveness check while a request is queued or executing.
// Cancellation is idempotent and safe to race with natural completion.
type Monitor struct {
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Start derives a context from parent that is cancelled with cause
// ErrClientGone as soon as alive reports false. The check runs every
// interval until Stop is called or the parent context ends.
func Start(parent context.Context, interval time.Duration, alive func() bool) (context.Context, *Monitor) {
	ctx, cancel := context.WithCancelCause(parent)
	m := &Monitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				cancel(nil)
				return
			case <-parent.Done():
				cancel(nil)
				return
			case <-ticker.C:
				if !alive() {
					cancel(ErrClientGone)
					return
				}
			}
		}
	}()

	return ctx, m
}

// Stop ends the polling. Safe to call multiple times and after the
// monitor has already fired.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	<-m.done
}

// Disconnected reports whether ctx was cancelled because the client went
// away, as opposed to any other cancellation.
func Disconnected(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrClientGone)
}

// RequestAlive builds a liveness check over an HTTP request context, which
// the transport cancels when the connection drops.
func RequestAlive(reqCtx context.Context) func() bool {
	return func() bool {
		select {
		case <-reqCtx.Done():
			return false
		default:
			return true
		}
	}
}
