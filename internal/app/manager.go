// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/matt-FFFFFF/sigrelay/internal/config"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/eventbus"
	"github.com/matt-FFFFFF/sigrelay/internal/relay"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
	"github.com/matt-FFFFFF/sigrelay/internal/supervisor"
	"github.com/oklog/run"
	"golang.org/x/sys/unix"
)

// Manager supervises a single worker and forwards signal events to it.
type Manager struct {
	Source   signalbroker.Source
	Bus      *eventbus.Bus[signalbroker.Event]
	Settings *config.Settings
	Command  supervisor.Command
}

// NewManager returns a Manager with a fresh bus sized from s.
func NewManager(src signalbroker.Source, s *config.Settings, cmd supervisor.Command) *Manager {
	return &Manager{
		Source:   src,
		Bus:      eventbus.New[signalbroker.Event](s.BusCapacity),
		Settings: s,
		Command:  cmd,
	}
}

// RunManager installs the process's signal listeners and runs a Manager until the worker exits.
func RunManager(ctx context.Context, s *config.Settings, cmd supervisor.Command) error {
	src, err := signalbroker.New(ctx, signalbroker.WithStopSignal(s.StopSignal))
	if err != nil {
		return err
	}
	defer src.Close()

	return NewManager(src, s, cmd).Run(ctx)
}

// Run spawns the worker, then runs the relay and the supervisor until the worker exits.
// The result is the supervisor's: nil only if the worker exited cleanly and every
// forward succeeded.
func (m *Manager) Run(ctx context.Context) error {
	logger := ctxlog.Component(ctx, "manager")

	// Subscribe before spawning so no event between the two is lost.
	sub := m.Bus.Subscribe()
	defer sub.Close()

	h, err := supervisor.Spawn(ctx, m.Command)
	if err != nil {
		return err
	}

	fwd, err := m.forwarder(h)
	if err != nil {
		_ = h.Signal(unix.SIGKILL)
		<-h.Exited()

		return err
	}

	logger.Info("supervising worker",
		"workerPid", h.Pid(),
		"forward", m.Settings.Forward,
		"target", m.Settings.Target.String(),
		"busCapacity", m.Bus.Capacity(),
	)

	var g run.Group

	{
		relayCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return relay.Run(relayCtx, m.Source, m.Bus)
		}, func(error) {
			cancel()
		})
	}

	{
		superviseCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return supervisor.Supervise(superviseCtx, h, sub, fwd,
				supervisor.WithForceOnRepeat(m.Settings.ForceOnRepeat),
				supervisor.WithReapTimeout(m.Settings.ReapTimeout),
			)
		}, func(error) {
			cancel()
		})
	}

	start := time.Now()
	err = g.Run()

	logger.Info("manager finished", "elapsed", time.Since(start).Round(time.Millisecond).String(), "error", err)

	return err
}

func (m *Manager) forwarder(h *supervisor.Handle) (supervisor.Forwarder, error) {
	switch m.Settings.Forward {
	case config.ForwardRelay:
		return supervisor.NewPipeForwarder(h.Stdin()), nil
	case config.ForwardRedeliver:
		return supervisor.NewSignalForwarder(m.Settings.Target, h)
	default:
		return nil, fmt.Errorf("%w: forward %q", config.ErrInvalid, m.Settings.Forward)
	}
}

// WorkerCommand re-executes the current binary in worker mode with the settings the
// worker needs.
func WorkerCommand(s *config.Settings) (supervisor.Command, error) {
	exe, err := os.Executable()
	if err != nil {
		return supervisor.Command{}, errors.Join(supervisor.ErrSpawn, err)
	}

	return supervisor.Command{
		Path: exe,
		Args: WorkerArgs(s),
	}, nil
}

// WorkerArgs are the command line arguments selecting worker mode.
func WorkerArgs(s *config.Settings) []string {
	return []string{
		"--worker",
		"--worker-timeout", s.WorkerTimeout.String(),
		"--terminal-signal", unix.SignalName(s.TerminalSignal),
		"--log-format", s.LogFormat,
	}
}
