// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"golang.org/x/sys/unix"
)

// Class groups events by what they ask of the worker.
type Class uint8

const (
	// ClassShutdown events ask the worker to stop for good.
	ClassShutdown Class = iota + 1
	// ClassJobControl events ask the worker to suspend or resume.
	ClassJobControl
)

func (c Class) String() string {
	switch c {
	case ClassShutdown:
		return "shutdown"
	case ClassJobControl:
		return "job-control"
	default:
		return "unknown"
	}
}

// Event is a typed signal observation.
type Event uint8

// Shutdown events.
const (
	Interrupt Event = iota + 1
	Hangup
	Term
)

// Job control events.
const (
	Stop Event = iota + 4
	Continue
)

// Events lists every event, shutdown events first.
var Events = []Event{Interrupt, Hangup, Term, Stop, Continue}

// Class returns ClassShutdown or ClassJobControl. Unknown events have class 0.
func (e Event) Class() Class {
	switch e {
	case Interrupt, Hangup, Term:
		return ClassShutdown
	case Stop, Continue:
		return ClassJobControl
	default:
		return 0
	}
}

// Signal returns the signal the event stands for on the wire. Stop maps to the
// uncatchable SIGSTOP even though it is observed as SIGTSTP.
// This mapping is part of the wire contract and must not change.
func (e Event) Signal() unix.Signal {
	switch e {
	case Interrupt:
		return unix.SIGINT
	case Hangup:
		return unix.SIGHUP
	case Term:
		return unix.SIGTERM
	case Stop:
		return unix.SIGSTOP
	case Continue:
		return unix.SIGCONT
	default:
		return 0
	}
}

func (e Event) String() string {
	switch e {
	case Interrupt:
		return "interrupt"
	case Hangup:
		return "hangup"
	case Term:
		return "term"
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// FromSignal is the inverse of Event.Signal. SIGTSTP is also accepted for Stop.
func FromSignal(sig unix.Signal) (Event, bool) {
	if sig == unix.SIGTSTP {
		return Stop, true
	}

	for _, e := range Events {
		if e.Signal() == sig {
			return e, true
		}
	}

	return 0, false
}
