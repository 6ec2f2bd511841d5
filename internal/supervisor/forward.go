// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
	"github.com/matt-FFFFFF/sigrelay/internal/wire"
	"golang.org/x/sys/unix"
)

// kill and getpgrp are variables so tests can observe re-delivery without signalling anything.
var (
	kill    = unix.Kill
	getpgrp = unix.Getpgrp
)

// Forwarder carries one event across to the worker.
type Forwarder interface {
	Forward(ctx context.Context, ev signalbroker.Event) error
}

// EchoFilter is implemented by forwarders whose deliveries come back through the
// signal source. SwallowEcho reports, and consumes, an expected echo of ev.
type EchoFilter interface {
	SwallowEcho(ctx context.Context, ev signalbroker.Event) bool
}

var (
	_ Forwarder  = (*PipeForwarder)(nil)
	_ Forwarder  = (*SignalForwarder)(nil)
	_ EchoFilter = (*SignalForwarder)(nil)
)

// PipeForwarder writes a wire record per event to the worker's stdin.
type PipeForwarder struct {
	enc *wire.Encoder
}

// NewPipeForwarder returns a PipeForwarder writing to w, normally Handle.Stdin().
func NewPipeForwarder(w io.Writer) *PipeForwarder {
	return &PipeForwarder{enc: wire.NewEncoder(w)}
}

// Forward encodes and flushes the event's signal.
func (f *PipeForwarder) Forward(ctx context.Context, ev signalbroker.Event) error {
	if err := f.enc.Encode(ev.Signal()); err != nil {
		return fmt.Errorf("relay %s: %w", ev, err)
	}

	ctxlog.Component(ctx, "forwarder").Debug("relayed event over pipe",
		"event", ev.String(), "signal", int(ev.Signal()))

	return nil
}

// Target names the process group a SignalForwarder delivers to.
type Target int

const (
	// TargetWorker is the worker's own process group.
	TargetWorker Target = iota + 1
	// TargetOwn is the manager's process group.
	TargetOwn
)

func (t Target) String() string {
	switch t {
	case TargetWorker:
		return "worker"
	case TargetOwn:
		return "own"
	default:
		return "unknown"
	}
}

// ParseTarget accepts "worker" or "own".
func ParseTarget(s string) (Target, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "worker":
		return TargetWorker, nil
	case "own":
		return TargetOwn, nil
	default:
		return 0, fmt.Errorf("unknown target %q, want worker or own", s)
	}
}

// SignalForwarder re-delivers each event's signal to a process group.
//
// With TargetOwn the manager signals its own group, so a catchable signal comes back
// through the signal source. Each such echo is swallowed once. A real signal that the
// kernel coalesces with a pending echo is swallowed with it.
type SignalForwarder struct {
	target Target
	pgid   int

	mu     sync.Mutex
	echoes map[unix.Signal]int
}

// NewSignalForwarder returns a forwarder for target. h is used for TargetWorker.
func NewSignalForwarder(target Target, h *Handle) (*SignalForwarder, error) {
	f := &SignalForwarder{
		target: target,
		echoes: make(map[unix.Signal]int),
	}

	switch target {
	case TargetWorker:
		if h == nil {
			return nil, fmt.Errorf("target %s needs a worker handle", target)
		}

		f.pgid = h.Pgid()
	case TargetOwn:
		f.pgid = getpgrp()
	default:
		return nil, fmt.Errorf("unknown target %d", target)
	}

	return f, nil
}

// SwallowEcho implements EchoFilter. It is only ever true for TargetOwn.
func (f *SignalForwarder) SwallowEcho(ctx context.Context, ev signalbroker.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.swallow(ctx, ev)
}

func (f *SignalForwarder) swallow(ctx context.Context, ev signalbroker.Event) bool {
	sig := ev.Signal()
	if f.echoes[sig] == 0 {
		return false
	}

	f.echoes[sig]--
	ctxlog.Component(ctx, "forwarder").Debug("dropped echo of own redelivery", "event", ev.String())

	return true
}

// Forward sends the signal to the whole target group. An expected echo is dropped.
func (f *SignalForwarder) Forward(ctx context.Context, ev signalbroker.Event) error {
	logger := ctxlog.Component(ctx, "forwarder")
	sig := ev.Signal()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.swallow(ctx, ev) {
		return nil
	}

	if err := kill(-f.pgid, sig); err != nil {
		return fmt.Errorf("redeliver %s to %s group %d: %w", ev, f.target, f.pgid, err)
	}

	if f.target == TargetOwn && catchable(sig) {
		f.echoes[sig]++
	}

	logger.Debug("redelivered signal", "event", ev.String(), "target", f.target.String(), "pgid", f.pgid)

	return nil
}

func catchable(sig unix.Signal) bool {
	return sig != unix.SIGKILL && sig != unix.SIGSTOP
}
