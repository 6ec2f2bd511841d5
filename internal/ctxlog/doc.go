// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a *slog.Logger on a context.Context.
//
// The manager and the worker each put a logger on their root context, tagged with a
// "role" attribute, and every component derives its own logger from it with
// Component. The level is shared across all loggers via LevelVar and is read from
// SIGRELAY_LOG_LEVEL at start-up.
//
// The default is a pretty console handler to format the log messages in a human-readable way.
package ctxlog
