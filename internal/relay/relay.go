// Package relay implements the bounded hand-off queue between the inbound
// command path and the outbound processor.
//
// A relay has exactly one Sender and one Receiver. Sends are serialized and
// suspend while the queue is full; closing either end unblocks the other.
package relay

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned once the counterpart of a relay end has gone away.
var ErrClosed = errors.New("relay closed")

type state[T any] struct {
	items chan T

	// sendClosing is closed when the sender starts closing, recvClosed when
	// the receiver is dropped.
	sendClosing chan struct{}
	recvClosed  chan struct{}

	sendOnce sync.Once
	recvOnce sync.Once
}

// Sender is the producing end of a relay. It is safe for concurrent use;
// concurrent sends are serialized.
type Sender[T any] struct {
	st *state[T]

	// guard is a one-slot semaphore held for the duration of a send.
	guard chan struct{}
}

// Receiver is the consuming end of a relay. It must be used by one goroutine.
type Receiver[T any] struct {
	st *state[T]
}

// New creates a relay holding at most capacity in-flight items.
// A capacity below 1 is treated as 1.
func New[T any](capacity int) (*Sender[T], *Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	st := &state[T]{
		items:       make(chan T, capacity),
		sendClosing: make(chan struct{}),
		recvClosed:  make(chan struct{}),
	}
	return &Sender[T]{st: st, guard: make(chan struct{}, 1)}, &Receiver[T]{st: st}
}

// Send enqueues v, suspending while the relay is full. It returns ErrClosed
// if either end has been closed, or ctx.Err() if ctx is done first.
func (s *Sender[T]) Send(ctx context.Context, v T) error {
	select {
	case s.guard <- struct{}{}:
	case <-s.st.sendClosing:
		return ErrClosed
	case <-s.st.recvClosed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.guard }()

	// Closing may have won the race for the guard's previous holder.
	select {
	case <-s.st.sendClosing:
		return ErrClosed
	case <-s.st.recvClosed:
		return ErrClosed
	default:
	}

	select {
	case s.st.items <- v:
		return nil
	case <-s.st.sendClosing:
		return ErrClosed
	case <-s.st.recvClosed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the producing end. Items already queued stay receivable.
// Pending sends return ErrClosed. Safe to call more than once.
func (s *Sender[T]) Close() {
	s.st.sendOnce.Do(func() {
		close(s.st.sendClosing)
		// No send can be in flight once the guard is held.
		s.guard <- struct{}{}
		close(s.st.items)
	})
}

// Len returns the number of queued items.
func (s *Sender[T]) Len() int { return len(s.st.items) }

// Cap returns the relay capacity.
func (s *Sender[T]) Cap() int { return cap(s.st.items) }

// Recv returns the next item, suspending until one is available. It returns
// ErrClosed once the sender is closed and every queued item was received,
// or ctx.Err() if ctx is done first.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-r.st.recvClosed:
		return zero, ErrClosed
	default:
	}

	select {
	case v, ok := <-r.st.items:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close drops the consuming end. Pending and future sends return ErrClosed.
// Safe to call more than once.
func (r *Receiver[T]) Close() {
	r.st.recvOnce.Do(func() { close(r.st.recvClosed) })
}

// Len returns the number of queued items.
func (r *Receiver[T]) Len() int { return len(r.st.items) }
