// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the per-subscriber ring size used when none is configured.
const DefaultCapacity = 16

var (
	// ErrNoSubscribers is returned by Publish when nobody is listening. It is not data loss.
	ErrNoSubscribers = errors.New("no subscribers")
	// ErrLagged matches any *LaggedError.
	ErrLagged = errors.New("subscriber lagged")
	// ErrClosed is returned by Recv once the subscription or bus is closed and drained.
	ErrClosed = errors.New("subscription closed")
)

// LaggedError reports how many events a subscriber missed because its ring was full.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d events skipped", e.Skipped)
}

// Is makes errors.Is(err, ErrLagged) true.
func (e *LaggedError) Is(target error) bool {
	return target == ErrLagged
}

// Publisher is the producing half of a Bus.
type Publisher[T any] interface {
	Publish(v T) (int, error)
}

var _ Publisher[int] = (*Bus[int])(nil)

// Bus fans each published value out to every live Subscription.
// It is safe for concurrent use.
type Bus[T any] struct {
	mu       sync.Mutex
	capacity int
	subs     map[*Subscription[T]]struct{}
	closed   bool
}

// New returns a bus whose subscribers buffer up to capacity events each.
// A capacity below 1 is replaced with DefaultCapacity.
func New[T any](capacity int) *Bus[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}

	return &Bus[T]{
		capacity: capacity,
		subs:     make(map[*Subscription[T]]struct{}),
	}
}

// Capacity returns the per-subscriber ring size.
func (b *Bus[T]) Capacity() int {
	return b.capacity
}

// Subscribe registers a new subscriber. Only events published after this call are observed.
// Subscribing to a closed bus returns an already closed subscription.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{
		bus:    b,
		ring:   make([]T, b.capacity),
		notify: make(chan struct{}, 1),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.closed = true
		return s
	}

	b.subs[s] = struct{}{}

	return s
}

// Subscribers returns the number of live subscriptions.
func (b *Bus[T]) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.subs)
}

// Publish delivers v to every live subscriber and returns how many there were.
// It never blocks on a slow subscriber.
func (b *Bus[T]) Publish(v T) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.subs) == 0 {
		return 0, ErrNoSubscribers
	}

	for s := range b.subs {
		s.push(v)
	}

	return len(b.subs), nil
}

// Close ends every subscription. Subscribers drain what they hold and then get ErrClosed.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription[T]]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.markClosed()
	}
}

func (b *Bus[T]) unsubscribe(s *Subscription[T]) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscription is the consuming half of a Bus. Recv must be called from one goroutine at a time.
type Subscription[T any] struct {
	bus    *Bus[T]
	notify chan struct{}

	mu      sync.Mutex
	ring    []T
	head    int
	size    int
	skipped uint64
	closed  bool
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	if s.size == len(s.ring) {
		var zero T

		s.ring[s.head] = zero
		s.head = (s.head + 1) % len(s.ring)
		s.size--
		s.skipped++
	}

	s.ring[(s.head+s.size)%len(s.ring)] = v
	s.size++
	s.mu.Unlock()

	s.wake()
}

func (s *Subscription[T]) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// TryRecv is the non-blocking form of Recv. ok is false when nothing is pending.
func (s *Subscription[T]) TryRecv() (v T, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.skipped > 0 {
		n := s.skipped
		s.skipped = 0

		return v, false, &LaggedError{Skipped: n}
	}

	if s.size > 0 {
		var zero T

		v = s.ring[s.head]
		s.ring[s.head] = zero
		s.head = (s.head + 1) % len(s.ring)
		s.size--

		return v, true, nil
	}

	if s.closed {
		return v, false, ErrClosed
	}

	return v, false, nil
}

// Recv waits for the next event.
//
// After a subscriber falls behind, Recv returns a *LaggedError once and then continues
// with the oldest retained event.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	for {
		v, ok, err := s.TryRecv()
		if ok || err != nil {
			return v, err
		}

		select {
		case <-s.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Close unsubscribes. Events already buffered can still be drained with Recv.
func (s *Subscription[T]) Close() {
	s.bus.unsubscribe(s)
	s.markClosed()
}

func (s *Subscription[T]) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.wake()
}
