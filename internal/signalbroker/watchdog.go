// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"sync"

	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
)

// Watchdog remembers which shutdown events have been seen.
// Job control events are never counted, as stop/continue legitimately repeat.
type Watchdog struct {
	mu   sync.Mutex
	seen map[Event]struct{}
}

// NewWatchdog returns an empty Watchdog.
func NewWatchdog() *Watchdog {
	return &Watchdog{seen: make(map[Event]struct{})}
}

// Observe records ev and reports whether it is the second shutdown event of its kind.
func (w *Watchdog) Observe(ctx context.Context, ev Event) bool {
	if ev.Class() != ClassShutdown {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	logger := ctxlog.Component(ctx, "watchdog")

	if _, ok := w.seen[ev]; ok {
		logger.Info("received second signal of type, escalating", "event", ev.String())
		return true
	}

	logger.Info("received first signal of type", "event", ev.String())

	w.seen[ev] = struct{}{}

	return false
}
