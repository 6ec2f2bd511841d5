// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns OS signal delivery into a stream of typed Events.
//
// New installs one os/signal registration per signal kind: interrupt, hangup,
// terminate, stop (SIGTSTP by default) and continue. Recv multiplexes them. Signal
// registration is process global, so a process should create a single Signals value.
// Contexts that must not install handlers (the worker, most tests) use Noop, which
// satisfies the same Source interface.
//
// It also contains a watchdog that reports when the same shutdown event is received
// twice, which the supervisor uses to escalate to a forced kill.
package signalbroker
