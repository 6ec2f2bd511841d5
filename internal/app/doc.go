// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package app wires the components together for the two process roles.
//
// The manager owns the signal source, the event bus and the worker. The relay and
// the supervisor run as actors in an oklog/run group, so when the worker exits and
// the supervisor returns, the relay is cancelled.
//
// The worker runs the decode loop on its stdin and installs no signal handlers.
package app
