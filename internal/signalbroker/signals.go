// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"golang.org/x/sys/unix"
)

// DefaultStopSignal is the catchable signal observed as the Stop event.
const DefaultStopSignal = "SIGTSTP"

var (
	// ErrSetup is returned when a signal listener cannot be installed.
	ErrSetup = errors.New("error setting up signal handler")
	// ErrUncatchable is returned when a listener is requested for SIGKILL or SIGSTOP.
	ErrUncatchable = errors.New("signal cannot be caught")
	// ErrDuplicateSignal is returned when two events would share a signal.
	ErrDuplicateSignal = errors.New("signal already registered for another event")
)

// Source yields typed signal events.
// Recv returns false once the source is exhausted or ctx is done.
type Source interface {
	Recv(ctx context.Context) (Event, bool)
}

var (
	_ Source = (*Signals)(nil)
	_ Source = Noop{}
)

// Noop is a Source that never installs handlers. Recv always returns false at once.
type Noop struct{}

// Recv implements Source.
func (Noop) Recv(context.Context) (Event, bool) {
	return 0, false
}

// cursor is the per-kind stream. exhausted is set once, when ch is closed, and is never cleared.
type cursor struct {
	event     Event
	sig       os.Signal
	ch        chan os.Signal
	exhausted bool
	once      sync.Once
}

// shut stops delivery and closes ch, which Recv observes as end-of-stream.
func (c *cursor) shut() {
	c.once.Do(func() {
		signal.Stop(c.ch)
		close(c.ch)
	})
}

// live returns the channel to select on, or nil once exhausted so the case never fires.
func (c *cursor) live() <-chan os.Signal {
	if c.exhausted {
		return nil
	}

	return c.ch
}

// Signals is the real Source, backed by os/signal.
// Recv must only be called from one goroutine at a time. Close may be called from any goroutine.
type Signals struct {
	interrupt *cursor
	hangup    *cursor
	term      *cursor
	stop      *cursor
	cont      *cursor

	latched bool
}

type options struct {
	stopSignal string
	buffer     int
}

// Option configures New.
type Option func(*options)

// WithStopSignal sets the signal name observed as the Stop event, e.g. "SIGTSTP" or "SIGTTIN".
func WithStopSignal(name string) Option {
	return func(o *options) {
		o.stopSignal = name
	}
}

// WithBuffer sets the per-kind channel buffer. os/signal drops deliveries when it is full.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// New installs one listener per event kind.
// It fails with ErrSetup if any name cannot be resolved or caught, in which case no
// listeners are left installed.
func New(ctx context.Context, opts ...Option) (*Signals, error) {
	o := options{
		stopSignal: DefaultStopSignal,
		buffer:     1,
	}
	for _, opt := range opts {
		opt(&o)
	}

	names := []struct {
		event Event
		name  string
	}{
		{Interrupt, "SIGINT"},
		{Hangup, "SIGHUP"},
		{Term, "SIGTERM"},
		{Stop, o.stopSignal},
		{Continue, "SIGCONT"},
	}

	cursors := make(map[Event]*cursor, len(names))
	taken := make(map[unix.Signal]Event, len(names))

	for _, n := range names {
		sig, err := resolve(n.name)
		if err != nil {
			return nil, errors.Join(ErrSetup, fmt.Errorf("%s listener: %w", n.event, err))
		}

		if prev, ok := taken[sig]; ok {
			return nil, errors.Join(ErrSetup, fmt.Errorf("%s listener %s: %w (%s)", n.event, n.name, ErrDuplicateSignal, prev))
		}

		taken[sig] = n.event
		cursors[n.event] = &cursor{
			event: n.event,
			sig:   sig,
			ch:    make(chan os.Signal, o.buffer),
		}
	}

	for _, c := range cursors {
		signal.Notify(c.ch, c.sig)
	}

	ctxlog.Component(ctx, "signalbroker").Debug("installed signal listeners",
		"stopSignal", o.stopSignal, "buffer", o.buffer)

	return &Signals{
		interrupt: cursors[Interrupt],
		hangup:    cursors[Hangup],
		term:      cursors[Term],
		stop:      cursors[Stop],
		cont:      cursors[Continue],
	}, nil
}

func resolve(name string) (unix.Signal, error) {
	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal name %q: %w", name, unix.EINVAL)
	}

	if sig == unix.SIGKILL || sig == unix.SIGSTOP {
		return 0, fmt.Errorf("%s: %w", name, ErrUncatchable)
	}

	return sig, nil
}

func (s *Signals) cursors() []*cursor {
	return []*cursor{s.interrupt, s.hangup, s.term, s.stop, s.cont}
}

// Recv blocks until a live listener fires, every listener is exhausted, or ctx is done.
//
// The first call that finds every listener exhausted returns false. Subsequent calls
// block until ctx is done and then return false; they never spin and never return a
// fresh event.
func (s *Signals) Recv(ctx context.Context) (Event, bool) {
	for {
		if s.latched {
			<-ctx.Done()
			return 0, false
		}

		if s.exhausted() {
			s.latched = true
			return 0, false
		}

		var (
			c  *cursor
			ok bool
		)

		select {
		case _, ok = <-s.interrupt.live():
			c = s.interrupt
		case _, ok = <-s.hangup.live():
			c = s.hangup
		case _, ok = <-s.term.live():
			c = s.term
		case _, ok = <-s.stop.live():
			c = s.stop
		case _, ok = <-s.cont.live():
			c = s.cont
		case <-ctx.Done():
			return 0, false
		}

		if !ok {
			c.exhausted = true
			continue
		}

		return c.event, true
	}
}

func (s *Signals) exhausted() bool {
	for _, c := range s.cursors() {
		if !c.exhausted {
			return false
		}
	}

	return true
}

// Close removes every listener and ends every per-kind stream.
// Pending deliveries are still returned by Recv before it reports exhaustion.
func (s *Signals) Close() {
	for _, c := range s.cursors() {
		c.shut()
	}
}
