// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/matt-FFFFFF/sigrelay/internal/supervisor"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func memFs(t *testing.T, files map[string]string) {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}

	stubs := gostub.Stub(&FsFactory, func() afero.Fs {
		return fs
	})
	t.Cleanup(stubs.Reset)
}

func TestDefault_Resolves(t *testing.T) {
	s, err := Default().Resolve()
	require.NoError(t, err)

	assert.Equal(t, ForwardRelay, s.Forward)
	assert.Equal(t, supervisor.TargetWorker, s.Target)
	assert.Equal(t, 16, s.BusCapacity)
	assert.Equal(t, 10*time.Second, s.WorkerTimeout)
	assert.Equal(t, 2*time.Second, s.ReapTimeout)
	assert.Equal(t, unix.SIGINT, s.TerminalSignal)
	assert.Equal(t, "SIGTSTP", s.StopSignal)
	assert.False(t, s.ForceOnRepeat)
	assert.Equal(t, LogFormatPretty, s.LogFormat)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	memFs(t, map[string]string{
		"/etc/sigrelay.yaml": `
forward: redeliver
target: own
worker_timeout: 500ms
force_on_repeat: true
log_format: json
`,
	})

	cfg, err := Load(context.Background(), "/etc/sigrelay.yaml")
	require.NoError(t, err)

	s, err := cfg.Resolve()
	require.NoError(t, err)

	assert.Equal(t, ForwardRedeliver, s.Forward)
	assert.Equal(t, supervisor.TargetOwn, s.Target)
	assert.Equal(t, 500*time.Millisecond, s.WorkerTimeout)
	assert.True(t, s.ForceOnRepeat)
	assert.Equal(t, LogFormatJSON, s.LogFormat)
	// Untouched fields keep their defaults.
	assert.Equal(t, 16, s.BusCapacity)
	assert.Equal(t, unix.SIGINT, s.TerminalSignal)
}

func TestLoad_MissingFile(t *testing.T) {
	memFs(t, nil)

	_, err := Load(context.Background(), "/nope.yaml")
	require.ErrorIs(t, err, ErrReadFile)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_UnknownField(t *testing.T) {
	memFs(t, map[string]string{"/c.yaml": "forwrd: relay\n"})

	_, err := Load(context.Background(), "/c.yaml")
	require.ErrorIs(t, err, ErrParse)
}

func TestLoad_BadYAML(t *testing.T) {
	memFs(t, map[string]string{"/c.yaml": "forward: [relay\n"})

	_, err := Load(context.Background(), "/c.yaml")
	require.ErrorIs(t, err, ErrParse)
}

func TestResolve_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "forward", mutate: func(c *Config) { c.Forward = "carrier-pigeon" }},
		{name: "target", mutate: func(c *Config) { c.Target = "everyone" }},
		{name: "bus capacity", mutate: func(c *Config) { c.BusCapacity = 0 }},
		{name: "worker timeout", mutate: func(c *Config) { c.WorkerTimeout = "soon" }},
		{name: "negative reap timeout", mutate: func(c *Config) { c.ReapTimeout = "-1s" }},
		{name: "terminal signal", mutate: func(c *Config) { c.TerminalSignal = "SIGNOPE" }},
		{name: "stop signal", mutate: func(c *Config) { c.StopSignal = "SIGNOPE" }},
		{name: "log format", mutate: func(c *Config) { c.LogFormat = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			s, err := cfg.Resolve()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Nil(t, s)
		})
	}
}

func TestResolve_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Forward = "x"
	cfg.LogFormat = "y"

	_, err := cfg.Resolve()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forward")
	assert.Contains(t, err.Error(), "log_format")
}

func TestResolve_Normalises(t *testing.T) {
	cfg := Default()
	cfg.Forward = " Relay "
	cfg.TerminalSignal = "sigterm"
	cfg.StopSignal = "sigttin"

	s, err := cfg.Resolve()
	require.NoError(t, err)
	assert.Equal(t, ForwardRelay, s.Forward)
	assert.Equal(t, unix.SIGTERM, s.TerminalSignal)
	assert.Equal(t, "SIGTTIN", s.StopSignal)
}
