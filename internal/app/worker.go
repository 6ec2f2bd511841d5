// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"io"

	"github.com/matt-FFFFFF/sigrelay/internal/config"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/worker"
)

// RunWorker runs the worker loop on stdin. Reaching either the terminal signal or the
// deadline is a clean exit; a decode failure is returned.
func RunWorker(ctx context.Context, s *config.Settings, stdin io.Reader) error {
	out, err := worker.Run(ctx, stdin,
		worker.WithTerminalSignal(s.TerminalSignal),
		worker.WithDeadline(s.WorkerTimeout),
	)
	if err != nil {
		return err
	}

	ctxlog.Component(ctx, "worker").Info("worker done", "outcome", out.String())

	return nil
}
