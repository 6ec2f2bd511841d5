// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package cmd contains the command-line interface (CLI) for sigrelay.
package cmd

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/sigrelay/internal/app"
	"github.com/matt-FFFFFF/sigrelay/internal/config"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

const (
	workerFlag         = "worker"
	configFlag         = "config"
	forwardFlag        = "forward"
	targetFlag         = "target"
	busCapacityFlag    = "bus-capacity"
	workerTimeoutFlag  = "worker-timeout"
	reapTimeoutFlag    = "reap-timeout"
	terminalSignalFlag = "terminal-signal"
	stopSignalFlag     = "stop-signal"
	logFormatFlag      = "log-format"
	forceOnRepeatFlag  = "force-on-repeat"

	// WorkerEnvVar selects worker mode when set to a true value.
	WorkerEnvVar = "SIGRELAY_WORKER"
	// ConfigEnvVar names the config file when --config is not given.
	ConfigEnvVar = "SIGRELAY_CONFIG"
)

// New returns the root command. Each call returns a fresh command so flag state is not
// shared between runs.
func New() *cli.Command {
	return &cli.Command{
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Name:      "sigrelay",
		Usage:     "sigrelay [--forward relay|redeliver] [--config FILE]",
		Description: `Sigrelay starts a worker copy of itself in its own process group and
forwards the interrupt, hangup, terminate, stop and continue signals it receives to that
worker. In relay mode each signal is written to the worker's stdin as a fixed size
record; in redeliver mode it is sent to the worker's process group.

The worker exits when it receives the terminal signal or when its deadline passes,
whichever comes first. The manager exits once the worker has exited.`,
		Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
		Authors: []any{
			"Matt White (matt-FFFFFF)",
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        workerFlag,
				Aliases:     []string{"runner"},
				Usage:       "Run as the worker, reading forwarded signals from stdin",
				Sources:     cli.EnvVars(WorkerEnvVar),
				DefaultText: "false",
				Hidden:      true,
				OnlyOnce:    true,
			},
			&cli.StringFlag{
				Name:      configFlag,
				Aliases:   []string{"c"},
				Usage:     "Path to a YAML config file",
				Sources:   cli.EnvVars(ConfigEnvVar),
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:     forwardFlag,
				Usage:    "Forwarding policy: relay or redeliver",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     targetFlag,
				Usage:    "Redeliver target: worker or own",
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:     busCapacityFlag,
				Usage:    "Per subscriber event buffer before the oldest events are dropped",
				OnlyOnce: true,
			},
			&cli.DurationFlag{
				Name:     workerTimeoutFlag,
				Aliases:  []string{"timeout"},
				Usage:    "How long the worker waits for the terminal signal",
				OnlyOnce: true,
			},
			&cli.DurationFlag{
				Name:     reapTimeoutFlag,
				Usage:    "Grace period for the worker during teardown before it is killed",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     terminalSignalFlag,
				Usage:    "Signal that ends the worker, e.g. SIGINT",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     stopSignalFlag,
				Usage:    "Signal observed as the stop event, e.g. SIGTSTP",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     logFormatFlag,
				Usage:    "Log format: pretty or json",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:        forceOnRepeatFlag,
				Aliases:     []string{"force"},
				Usage:       "Kill the worker once the same shutdown signal has been forwarded twice",
				DefaultText: "false",
				OnlyOnce:    true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	s, err := settings(ctx, cmd)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger := ctxlog.DefaultLogger
	if s.LogFormat == config.LogFormatJSON {
		logger = ctxlog.JSONLogger
	}

	ctx = ctxlog.New(ctx, logger)

	ctxlog.Debug(ctx, "resolved settings",
		"forward", s.Forward,
		"target", s.Target.String(),
		"busCapacity", s.BusCapacity,
		"workerTimeout", s.WorkerTimeout.String(),
		"reapTimeout", s.ReapTimeout.String(),
		"stopSignal", s.StopSignal,
		"forceOnRepeat", s.ForceOnRepeat,
	)

	if cmd.Bool(workerFlag) {
		ctx = ctxlog.WithRole(ctx, "worker")

		if err := app.RunWorker(ctx, s, cmd.Reader); err != nil {
			ctxlog.Error(ctx, "worker failed", "error", err)
			return cli.Exit(err.Error(), 1)
		}

		return nil
	}

	ctx = ctxlog.WithRole(ctx, "manager")

	wc, err := app.WorkerCommand(s)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	if err := app.RunManager(ctx, s, wc); err != nil {
		ctxlog.Error(ctx, "manager failed", "error", err)
		return cli.Exit(err.Error(), 1)
	}

	return nil
}

// settings layers the config file, then any flags given on the command line, over the
// defaults.
func settings(ctx context.Context, cmd *cli.Command) (*config.Settings, error) {
	cfg, err := config.Load(ctx, cmd.String(configFlag))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet(forwardFlag) {
		cfg.Forward = cmd.String(forwardFlag)
	}

	if cmd.IsSet(targetFlag) {
		cfg.Target = cmd.String(targetFlag)
	}

	if cmd.IsSet(busCapacityFlag) {
		cfg.BusCapacity = cmd.Int(busCapacityFlag)
	}

	if cmd.IsSet(workerTimeoutFlag) {
		cfg.WorkerTimeout = cmd.Duration(workerTimeoutFlag).String()
	}

	if cmd.IsSet(reapTimeoutFlag) {
		cfg.ReapTimeout = cmd.Duration(reapTimeoutFlag).String()
	}

	if cmd.IsSet(terminalSignalFlag) {
		cfg.TerminalSignal = cmd.String(terminalSignalFlag)
	}

	if cmd.IsSet(stopSignalFlag) {
		cfg.StopSignal = cmd.String(stopSignalFlag)
	}

	if cmd.IsSet(logFormatFlag) {
		cfg.LogFormat = cmd.String(logFormatFlag)
	}

	if cmd.IsSet(forceOnRepeatFlag) {
		force := cmd.Bool(forceOnRepeatFlag)
		cfg.ForceOnRepeat = &force
	}

	return cfg.Resolve()
}
