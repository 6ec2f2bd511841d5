// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package supervisor owns the worker process.
//
// Spawn starts the worker in a process group of its own, so signals aimed at the
// manager's group do not reach it. Supervise then forwards every event from an
// event bus subscription with a Forwarder until the worker exits:
//
//   - PipeForwarder writes wire records to the worker's stdin.
//   - SignalForwarder re-delivers the signal to the worker's group or the manager's own group.
//
// A forwarding failure is fatal. The worker is still reaped before Supervise returns.
package supervisor
