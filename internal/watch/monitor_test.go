package watch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_CancelsWhenClientGoes(t *testing.T) {
	var alive atomic.Bool
	alive.Store(true)

	interval := 10 * time.Millisecond
	ctx, m := Start(context.Background(), interval, alive.Load)
	defer m.Stop()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled while client still alive")
	case <-time.After(5 * interval):
	}

	alive.Store(false)

	// Cancellation must land within roughly one polling interval.
	select {
	case <-ctx.Done():
	case <-time.After(20 * interval):
		t.Fatal("context not cancelled after client went away")
	}

	assert.True(t, Disconnected(ctx))
}

func TestMonitor_StopPreventsCancellation(t *testing.T) {
	ctx, m := Start(context.Background(), 10*time.Millisecond, func() bool { return true })

	m.Stop()
	// Stop after natural completion must be a no-op, not a panic.
	m.Stop()

	select {
	case <-ctx.Done():
		require.False(t, Disconnected(ctx))
	default:
	}
}

func TestMonitor_StopAfterFire(t *testing.T) {
	ctx, m := Start(context.Background(), 5*time.Millisecond, func() bool { return false })

	<-ctx.Done()
	m.Stop()
	m.Stop()

	assert.True(t, Disconnected(ctx))
}

func TestMonitor_ParentCancellationIsNotADisconnect(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, m := Start(parent, 10*time.Millisecond, func() bool { return true })
	defer m.Stop()

	cancel()
	<-ctx.Done()
	assert.False(t, Disconnected(ctx))
}

func TestRequestAlive(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	alive := RequestAlive(reqCtx)

	assert.True(t, alive())
	cancel()
	assert.False(t, alive())
}
