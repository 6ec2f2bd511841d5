// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/eventbus"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
	"golang.org/x/sys/unix"
)

// DefaultReapTimeout is how long a worker gets to exit on its own after its stdin is
// closed during teardown, before its group is killed.
const DefaultReapTimeout = 2 * time.Second

// ErrForward is returned when an event could not be delivered to the worker.
var ErrForward = errors.New("failed to forward event to worker")

// Subscription is the consuming half of the event bus.
type Subscription interface {
	Recv(ctx context.Context) (signalbroker.Event, error)
}

var _ Subscription = (*eventbus.Subscription[signalbroker.Event])(nil)

type options struct {
	forceOnRepeat bool
	reapTimeout   time.Duration
}

// Option configures Supervise.
type Option func(*options)

// WithForceOnRepeat kills the worker's group once the same shutdown event has been
// forwarded twice. It is off by default.
func WithForceOnRepeat(v bool) Option {
	return func(o *options) {
		o.forceOnRepeat = v
	}
}

// WithReapTimeout sets the grace period given to the worker during teardown.
func WithReapTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.reapTimeout = d
		}
	}
}

// Supervise forwards events from sub to the worker until the worker exits.
//
// It returns the worker's exit result. If forwarding fails, or ctx is cancelled while
// the worker is still running, the worker is reaped first and the returned error
// carries both causes. Every event is forwarded, in the order sub delivers them,
// except echoes that an EchoFilter forwarder reports as its own.
func Supervise(ctx context.Context, h *Handle, sub Subscription, fwd Forwarder, opts ...Option) error {
	o := options{
		forceOnRepeat: false,
		reapTimeout:   DefaultReapTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	logger := ctxlog.Component(ctx, "supervisor").With("workerPid", h.Pid())

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-h.Exited():
			cancel()
		case <-loopCtx.Done():
		}
	}()

	watchdog := signalbroker.NewWatchdog()

	for {
		ev, err := sub.Recv(loopCtx)

		switch {
		case errors.Is(err, eventbus.ErrLagged):
			logger.Warn("subscription lagged, events were skipped", "error", err)
			continue
		case err != nil:
			return finish(ctx, h, o.reapTimeout, err)
		}

		select {
		case <-h.Exited():
			logger.Debug("worker exited, not forwarding", "event", ev.String())
			return finish(ctx, h, o.reapTimeout, nil)
		default:
		}

		// Echoes of our own redelivery are neither forwarded nor counted by the watchdog.
		if ef, ok := fwd.(EchoFilter); ok && ef.SwallowEcho(ctx, ev) {
			continue
		}

		logger.Info("forwarding event", "event", ev.String(), "class", ev.Class().String())

		if err := fwd.Forward(ctx, ev); err != nil {
			logger.Error("forward failed, tearing down worker", "event", ev.String(), "error", err)
			return reap(ctx, h, o.reapTimeout, errors.Join(ErrForward, err))
		}

		if o.forceOnRepeat && watchdog.Observe(ctx, ev) {
			logger.Warn("repeated shutdown event, killing worker group", "event", ev.String())

			if err := h.Signal(unix.SIGKILL); err != nil {
				logger.Debug("kill failed", "error", err)
			}
		}
	}
}

// finish is reached when the subscription stops yielding events. If the worker has
// exited its status is the result; otherwise ctx was cancelled or the bus closed and
// the worker must be reaped.
func finish(ctx context.Context, h *Handle, grace time.Duration, cause error) error {
	select {
	case <-h.Exited():
		ctxlog.Component(ctx, "supervisor").Info("worker exited", "exitCode", h.ExitCode())
		return h.exitErr()
	default:
		return reap(ctx, h, grace, cause)
	}
}

// reap closes the worker's stdin, waits up to grace for it to exit and then kills its
// group. The result joins cause with the worker's exit error.
func reap(ctx context.Context, h *Handle, grace time.Duration, cause error) error {
	logger := ctxlog.Component(ctx, "supervisor")

	var result *multierror.Error
	if cause != nil {
		result = multierror.Append(result, cause)
	}

	if err := h.CloseStdin(); err != nil {
		logger.Debug("closing worker stdin", "error", err)
	}

	t := time.NewTimer(grace)
	defer t.Stop()

	select {
	case <-h.Exited():
	case <-t.C:
		logger.Warn("worker did not exit within grace period, killing", "grace", grace.String())

		if err := h.Signal(unix.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
			result = multierror.Append(result, err)
		}

		<-h.Exited()
	}

	if err := h.exitErr(); err != nil {
		result = multierror.Append(result, err)
	}

	logger.Info("worker reaped", "exitCode", h.ExitCode())

	return result.ErrorOrNil()
}
