// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker is the loop run by the child process: it decodes signal records from
// stdin and exits when the terminal signal arrives or its deadline passes.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
	"github.com/matt-FFFFFF/sigrelay/internal/wire"
	"golang.org/x/sys/unix"
)

var (
	// DefaultDeadline is how long the worker listens before giving up on the manager.
	DefaultDeadline = 10 * time.Second
	// DefaultPollInterval is the pause before re-reading stdin after end-of-stream.
	DefaultPollInterval = 50 * time.Millisecond
	// DefaultTerminalSignal ends the loop when received.
	DefaultTerminalSignal = unix.SIGINT
)

// ErrRead is returned when stdin cannot be decoded. The protocol cannot resynchronise,
// so it is fatal for the worker.
var ErrRead = errors.New("failed to read from manager")

// State is a position in the worker state machine.
type State int

// States, in the order the loop moves through them.
const (
	StateListening State = iota
	StateMatched
	StateTimedOut
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateMatched:
		return "matched"
	case StateTimedOut:
		return "timed-out"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// Outcome is the state Run ended in: StateMatched or StateTimedOut when it returns a
// nil error, StateExiting when it returns an error.
type Outcome = State

type options struct {
	terminal unix.Signal
	deadline time.Duration
	poll     time.Duration
}

// Option configures Run.
type Option func(*options)

// WithTerminalSignal sets the signal that ends the loop.
func WithTerminalSignal(sig unix.Signal) Option {
	return func(o *options) {
		o.terminal = sig
	}
}

// WithDeadline sets the fail-safe deadline measured from the start of Run.
func WithDeadline(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.deadline = d
		}
	}
}

// WithPollInterval sets the retry pause after end-of-stream.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

type record struct {
	sig unix.Signal
	err error
}

// Run listens on r until it decodes the terminal signal or the deadline passes.
//
// End-of-stream is not an exit condition: the reader waits for the poll interval and
// tries again. A malformed record is returned as an error wrapping ErrRead.
func Run(ctx context.Context, r io.Reader, opts ...Option) (Outcome, error) {
	o := options{
		terminal: DefaultTerminalSignal,
		deadline: DefaultDeadline,
		poll:     DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := ctxlog.Component(ctx, "worker")
	logger.Info("listening", "terminalSignal", o.terminal.String(), "deadline", o.deadline.String())

	deadline := time.NewTimer(o.deadline)
	defer deadline.Stop()

	records := make(chan record)
	done := make(chan struct{})

	defer close(done)

	go read(wire.NewDecoder(r), records, done, o.poll)

	state := StateListening

	for state == StateListening {
		select {
		case <-ctx.Done():
			return StateExiting, ctx.Err()

		case <-deadline.C:
			state = StateTimedOut

		case rec := <-records:
			if rec.err != nil {
				logger.Error("decode failed", "error", rec.err)
				return StateExiting, errors.Join(ErrRead, rec.err)
			}

			ev, known := signalbroker.FromSignal(rec.sig)
			logger.Info("received signal", "signal", rec.sig.String(), "event", ev.String(), "known", known)

			if rec.sig == o.terminal {
				state = StateMatched
			}
		}
	}

	logger.Info("exiting", "state", state.String())

	return state, nil
}

// read is the blocking half of Run. records is unbuffered so every decoded record is
// handed over before the next read starts.
func read(dec *wire.Decoder, records chan<- record, done <-chan struct{}, poll time.Duration) {
	for {
		sig, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			select {
			case <-done:
				return
			case <-time.After(poll):
				continue
			}
		}

		if err != nil {
			err = fmt.Errorf("decode: %w", err)
		}

		select {
		case records <- record{sig: sig, err: err}:
		case <-done:
			return
		}

		if err != nil {
			return
		}
	}
}
