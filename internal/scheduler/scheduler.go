// Package scheduler bounds the number of conversions that may be running
// or waiting at any moment. It is the only cross-request shared state in
// the service.
package scheduler

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned by Admit when running plus queued requests have
// reached the configured capacity.
var ErrQueueFull = errors.New("conversion queue is full")

// Scheduler hands out admission tickets against a fixed capacity of
// execution slots plus queue positions. Waiters are released strictly in
// admission order.
type Scheduler struct {
	mu       sync.Mutex
	slots    int // max concurrently running
	capacity int // slots + max queued
	active   int // currently running
	admitted int // running + queued, each holding a ticket
	waiters  *list.List
}

// New creates a scheduler with the given number of execution slots and
// additional queue positions.
func New(maxConcurrent, maxQueued int) *Scheduler {
	return &Scheduler{
		slots:    maxConcurrent,
		capacity: maxConcurrent + maxQueued,
		waiters:  list.New(),
	}
}

// Ticket is a reservation against the scheduler's capacity. It must be
// released exactly once; Release is safe to call multiple times.
type Ticket struct {
	s       *Scheduler
	once    sync.Once
	running bool
	waitCh  chan struct{}
	elem    *list.Element
}

// Admit reserves capacity for a new request. It never blocks: when the
// capacity is exhausted it fails immediately with ErrQueueFull, before any
// request body has been read.
func (s *Scheduler) Admit() (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.admitted >= s.capacity {
		return nil, ErrQueueFull
	}
	s.admitted++
	return &Ticket{s: s}, nil
}

// AwaitSlot blocks until an execution slot is available or ctx is
// cancelled. Slots are granted in FIFO order: a request never starts ahead
// of one that was queued earlier and is still waiting.
func (t *Ticket) AwaitSlot(ctx context.Context) error {
	s := t.s

	s.mu.Lock()
	if s.active < s.slots && s.waiters.Len() == 0 {
		s.active++
		t.running = true
		s.mu.Unlock()
		return nil
	}
	t.waitCh = make(chan struct{})
	t.elem = s.waiters.PushBack(t)
	s.mu.Unlock()

	select {
	case <-t.waitCh:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		select {
		case <-t.waitCh:
			// The slot was granted while we were cancelling. Keep the
			// running state; Release returns the slot.
			return ctx.Err()
		default:
			s.waiters.Remove(t.elem)
			t.elem = nil
			return ctx.Err()
		}
	}
}

// Release returns the ticket's slot and admission reservation. The first
// call wins; later calls are no-ops.
func (t *Ticket) Release() {
	t.once.Do(func() {
		s := t.s
		s.mu.Lock()
		defer s.mu.Unlock()

		if t.elem != nil {
			s.waiters.Remove(t.elem)
			t.elem = nil
		}
		if t.running {
			s.active--
			t.running = false
		}
		s.admitted--
		s.grantLocked()
	})
}

// grantLocked wakes queued waiters while free slots remain. Callers must
// hold s.mu.
func (s *Scheduler) grantLocked() {
	for s.active < s.slots && s.waiters.Len() > 0 {
		e := s.waiters.Front()
		s.waiters.Remove(e)
		t := e.Value.(*Ticket)
		t.elem = nil
		s.active++
		t.running = true
		close(t.waitCh)
	}
}

// Active returns the number of conversions currently running.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// QueueDepth returns the number of admitted requests waiting for a slot.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admitted - s.active
}

// Capacity returns the total admission capacity, running plus queued.
func (s *Scheduler) Capacity() int {
	return s.capacity
}
