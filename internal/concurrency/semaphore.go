// Package concurrency provides the bounded-parallelism primitive used to
// fan out upstream translation calls.
package concurrency

import (
	"context"
	"sync"
)

// Semaphore is a counting semaphore with strictly FIFO waiters. A release
// hands its slot directly to the head waiter, so arrival order is the
// service order.
type Semaphore struct {
	mu      sync.Mutex
	max     int
	inUse   int
	waiters []chan struct{}
}

func NewSemaphore(max int) *Semaphore {
	if max <= 0 {
		max = 1
	}
	return &Semaphore{max: max}
}

// Acquire blocks until a slot is available or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.inUse < s.max && len(s.waiters) == 0 {
		s.inUse++
		s.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	s.waiters = append(s.waiters, ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// Woken concurrently with cancellation: the slot was handed to
			// us, pass it to the next waiter.
			s.releaseLocked()
		default:
			for i, w := range s.waiters {
				if w == ready {
					s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
					break
				}
			}
		}
		s.mu.Unlock()
		return ctx.Err()
	}
}

// Release frees a slot, waking the head waiter if any.
func (s *Semaphore) Release() {
	s.mu.Lock()
	s.releaseLocked()
	s.mu.Unlock()
}

func (s *Semaphore) releaseLocked() {
	if len(s.waiters) > 0 {
		head := s.waiters[0]
		s.waiters = s.waiters[1:]
		close(head)
		return
	}
	if s.inUse > 0 {
		s.inUse--
	}
}

// InUse reports the currently held slots (for tests and introspection).
func (s *Semaphore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inUse
}
