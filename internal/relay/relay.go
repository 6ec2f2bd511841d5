// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package relay pumps events from a signal source onto the event bus.
package relay

import (
	"context"
	"errors"

	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/eventbus"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
)

// Run publishes every event received from src until ctx is cancelled.
//
// When src reports exhaustion the relay stops polling it for good but stays alive
// until ctx is cancelled. Publishing with no subscribers is logged and ignored.
// Run returns nil on cancellation; any other publish error is returned.
func Run(ctx context.Context, src signalbroker.Source, pub eventbus.Publisher[signalbroker.Event]) error {
	logger := ctxlog.Component(ctx, "relay")

	for {
		ev, ok := src.Recv(ctx)
		if !ok {
			break
		}

		n, err := pub.Publish(ev)

		switch {
		case errors.Is(err, eventbus.ErrNoSubscribers):
			logger.Warn("no subscribers for event", "event", ev.String())
		case err != nil:
			logger.Error("publish failed", "event", ev.String(), "error", err)
			return err
		default:
			logger.Debug("published event", "event", ev.String(), "subscribers", n)
		}
	}

	if ctx.Err() == nil {
		logger.Info("signal source exhausted, idling until cancelled")
		<-ctx.Done()
	}

	logger.Debug("relay cancelled")

	return nil
}
