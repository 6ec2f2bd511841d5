// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/matt-FFFFFF/sigrelay/internal/app"
	"github.com/matt-FFFFFF/sigrelay/internal/config"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
	"github.com/matt-FFFFFF/sigrelay/internal/supervisor"
)

// demoEvents are published on the bus one at a time, ending with the terminal event.
var demoEvents = []signalbroker.Event{
	signalbroker.Hangup,
	signalbroker.Stop,
	signalbroker.Continue,
	signalbroker.Interrupt,
}

// Demonstrates the manager and worker without real signals: events are published on the
// manager's bus directly. The worker is the sigrelay binary given as the first argument.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second) //nolint:mnd
	defer cancel()

	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	ctxlog.LevelVar.Set(slog.LevelDebug)

	if len(os.Args) < 2 { //nolint:mnd
		fmt.Fprintln(os.Stderr, "usage: signalhandling PATH_TO_SIGRELAY")
		os.Exit(2) //nolint:mnd
	}

	s, err := config.Default().Resolve()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	m := app.NewManager(signalbroker.Noop{}, s, supervisor.Command{
		Path: os.Args[1],
		Args: app.WorkerArgs(s),
	})

	fmt.Println("=== Signal Relay Demo ===")

	go publish(ctx, m)

	if err := m.Run(ctxlog.WithRole(ctx, "manager")); err != nil {
		fmt.Fprintln(os.Stderr, "manager failed:", err)
		os.Exit(1)
	}

	fmt.Println("worker exited cleanly")
}

func publish(ctx context.Context, m *app.Manager) {
	ticker := time.NewTicker(500 * time.Millisecond) //nolint:mnd
	defer ticker.Stop()

	next := 0

	for next < len(demoEvents) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := m.Bus.Publish(demoEvents[next])
		if err != nil {
			// Not subscribed yet.
			continue
		}

		fmt.Printf("published %s to %d subscriber(s)\n", demoEvents[next], n)

		next++
	}
}
