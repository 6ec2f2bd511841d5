// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package config loads the manager's forwarding policy from an optional YAML file.
//
// An example file:
//
//	forward: relay          # relay | redeliver
//	target: worker          # worker | own, only used by redeliver
//	bus_capacity: 16
//	worker_timeout: 10s
//	reap_timeout: 2s
//	terminal_signal: SIGINT
//	stop_signal: SIGTSTP
//	force_on_repeat: false  # kill the worker on a repeated shutdown signal
//	log_format: pretty      # pretty | json
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"github.com/matt-FFFFFF/sigrelay/internal/eventbus"
	"github.com/matt-FFFFFF/sigrelay/internal/signalbroker"
	"github.com/matt-FFFFFF/sigrelay/internal/supervisor"
	"github.com/matt-FFFFFF/sigrelay/internal/worker"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Forwarding policies.
const (
	ForwardRelay     = "relay"
	ForwardRedeliver = "redeliver"
)

// Log formats.
const (
	LogFormatPretty = "pretty"
	LogFormatJSON   = "json"
)

var (
	// ErrReadFile is returned when the config file cannot be read.
	ErrReadFile = errors.New("failed to read config file")
	// ErrParse is returned when the config file is not valid YAML for Config.
	ErrParse = errors.New("failed to parse config file")
	// ErrInvalid is returned by Resolve for out of range values.
	ErrInvalid = errors.New("invalid configuration")
)

// Config is the file representation. Durations and signals are strings so the file
// stays human readable; Resolve converts them.
type Config struct {
	Forward        string `yaml:"forward"`
	Target         string `yaml:"target"`
	BusCapacity    int    `yaml:"bus_capacity"`
	WorkerTimeout  string `yaml:"worker_timeout"`
	ReapTimeout    string `yaml:"reap_timeout"`
	TerminalSignal string `yaml:"terminal_signal"`
	StopSignal     string `yaml:"stop_signal"`
	ForceOnRepeat  *bool  `yaml:"force_on_repeat"`
	LogFormat      string `yaml:"log_format"`
}

// Settings is a validated Config.
type Settings struct {
	Forward        string
	Target         supervisor.Target
	BusCapacity    int
	WorkerTimeout  time.Duration
	ReapTimeout    time.Duration
	TerminalSignal unix.Signal
	StopSignal     string
	ForceOnRepeat  bool
	LogFormat      string
}

// Default returns the built-in configuration.
func Default() *Config {
	force := false

	return &Config{
		Forward:        ForwardRelay,
		Target:         supervisor.TargetWorker.String(),
		BusCapacity:    eventbus.DefaultCapacity,
		WorkerTimeout:  worker.DefaultDeadline.String(),
		ReapTimeout:    supervisor.DefaultReapTimeout.String(),
		TerminalSignal: unix.SignalName(worker.DefaultTerminalSignal),
		StopSignal:     signalbroker.DefaultStopSignal,
		ForceOnRepeat:  &force,
		LogFormat:      LogFormatPretty,
	}
}

// Load reads path from FsFactory() over the defaults. An empty path returns Default().
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadFile, err)
	}

	if err := yaml.UnmarshalWithOptions(data, cfg, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.Join(ErrParse, fmt.Errorf("%s: %w", path, err))
	}

	ctxlog.Component(ctx, "config").Debug("loaded config file", "path", path)

	return cfg, nil
}

// Resolve validates the configuration, reporting every problem at once.
func (c *Config) Resolve() (*Settings, error) {
	var errs []error

	s := &Settings{
		Forward:     strings.ToLower(strings.TrimSpace(c.Forward)),
		BusCapacity: c.BusCapacity,
		StopSignal:  strings.ToUpper(strings.TrimSpace(c.StopSignal)),
		LogFormat:   strings.ToLower(strings.TrimSpace(c.LogFormat)),
	}

	switch s.Forward {
	case ForwardRelay, ForwardRedeliver:
	default:
		errs = append(errs, fmt.Errorf("forward %q: want %s or %s", c.Forward, ForwardRelay, ForwardRedeliver))
	}

	target, err := supervisor.ParseTarget(c.Target)
	if err != nil {
		errs = append(errs, err)
	}

	s.Target = target

	if s.BusCapacity < 1 {
		errs = append(errs, fmt.Errorf("bus_capacity %d: must be at least 1", c.BusCapacity))
	}

	if s.WorkerTimeout, err = positiveDuration("worker_timeout", c.WorkerTimeout); err != nil {
		errs = append(errs, err)
	}

	if s.ReapTimeout, err = positiveDuration("reap_timeout", c.ReapTimeout); err != nil {
		errs = append(errs, err)
	}

	if s.TerminalSignal = unix.SignalNum(strings.ToUpper(strings.TrimSpace(c.TerminalSignal))); s.TerminalSignal == 0 {
		errs = append(errs, fmt.Errorf("terminal_signal %q: unknown signal", c.TerminalSignal))
	}

	if unix.SignalNum(s.StopSignal) == 0 {
		errs = append(errs, fmt.Errorf("stop_signal %q: unknown signal", c.StopSignal))
	}

	s.ForceOnRepeat = c.ForceOnRepeat != nil && *c.ForceOnRepeat

	switch s.LogFormat {
	case LogFormatPretty, LogFormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log_format %q: want %s or %s", c.LogFormat, LogFormatPretty, LogFormatJSON))
	}

	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalid}, errs...)...)
	}

	return s, nil
}

func positiveDuration(field, v string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", field, v, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("%s %q: must be positive", field, v)
	}

	return d, nil
}
