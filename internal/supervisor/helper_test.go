// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"github.com/matt-FFFFFF/sigrelay/internal/worker"
	"golang.org/x/sys/unix"
)

// The test binary doubles as the worker (and, for the isolation test, a manager).
const (
	helperEnv         = "SIGRELAY_SUPERVISOR_HELPER"
	helperTerminalEnv = "SIGRELAY_SUPERVISOR_HELPER_TERMINAL"
	helperDeadlineEnv = "SIGRELAY_SUPERVISOR_HELPER_DEADLINE"
)

func TestMain(m *testing.M) {
	switch os.Getenv(helperEnv) {
	case "":
		os.Exit(m.Run())
	case "worker":
		os.Exit(helperWorker())
	case "sleep":
		time.Sleep(30 * time.Second)
		os.Exit(0)
	case "manager":
		os.Exit(helperManager())
	default:
		os.Exit(2)
	}
}

func helperWorker() int {
	terminal := unix.SIGINT
	if v, err := strconv.Atoi(os.Getenv(helperTerminalEnv)); err == nil {
		terminal = unix.Signal(v)
	}

	deadline := 5 * time.Second
	if d, err := time.ParseDuration(os.Getenv(helperDeadlineEnv)); err == nil {
		deadline = d
	}

	out, err := worker.Run(context.Background(), os.Stdin,
		worker.WithTerminalSignal(terminal),
		worker.WithDeadline(deadline),
		worker.WithPollInterval(10*time.Millisecond),
	)
	if err != nil {
		return 1
	}

	if out == worker.StateTimedOut {
		return 3
	}

	return 0
}

// helperManager spawns a sleeping worker, reports its pid on stdout and then waits to be killed.
func helperManager() int {
	h, err := Spawn(context.Background(), helperCommand("sleep"))
	if err != nil {
		return 1
	}

	fmt.Println(h.Pid())
	time.Sleep(30 * time.Second)

	return 0
}

func helperCommand(mode string, env ...string) Command {
	return Command{
		Path: os.Args[0],
		Env:  append(append(os.Environ(), helperEnv+"="+mode), env...),
	}
}

func spawnHelper(t *testing.T, mode string, env ...string) *Handle {
	t.Helper()

	h, err := Spawn(t.Context(), helperCommand(mode, env...))
	if err != nil {
		t.Fatalf("spawn helper: %v", err)
	}

	t.Cleanup(func() {
		_ = h.Signal(unix.SIGKILL)
		<-h.Exited()
	})

	return h
}

func helperExec(mode string) *exec.Cmd {
	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), helperEnv+"="+mode)

	return cmd
}
