// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the sigrelay command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/sigrelay"
	"github.com/matt-FFFFFF/sigrelay/cmd"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
)

func main() {
	// No signal handling here: the manager installs its own listeners and the worker
	// keeps the default dispositions.
	ctx := ctxlog.New(context.Background(), ctxlog.DefaultLogger)

	rootCmd := cmd.New()
	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", sigrelay.Version, sigrelay.Commit)

	if err := rootCmd.Run(ctx, os.Args); err != nil {
		ctxlog.Logger(ctx).Error("command failed", "error", err)
		os.Exit(1)
	}
}
