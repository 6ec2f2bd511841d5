// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/matt-FFFFFF/sigrelay/internal/ctxlog"
	"golang.org/x/sys/unix"
)

var (
	// ErrSpawn is returned when the worker process could not be started.
	ErrSpawn = errors.New("could not start worker process")
	// ErrWorkerFailed is returned when the worker exits with a non-zero status or is killed.
	ErrWorkerFailed = errors.New("worker process failed")
)

// Command describes the worker to start.
type Command struct {
	Path   string    // Executable path.
	Args   []string  // Arguments, not including the executable name.
	Env    []string  // Environment, defaults to os.Environ().
	Stdout io.Writer // Defaults to os.Stdout.
	Stderr io.Writer // Defaults to os.Stderr.
}

// Handle is the manager's exclusive ownership of a running worker.
type Handle struct {
	cmd   *exec.Cmd
	pid   int
	pgid  int
	stdin io.WriteCloser

	closeStdin sync.Once
	exited     chan struct{}
	waitErr    error
}

// Spawn starts the worker in a new process group whose id is its pid, with a piped stdin.
// There is no retry: failure is returned as ErrSpawn.
func Spawn(ctx context.Context, c Command) (*Handle, error) {
	logger := ctxlog.Component(ctx, "supervisor")

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Env = c.Env
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}

	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Join(ErrSpawn, err)
	}

	logger.Debug("starting worker", "path", c.Path, "args", c.Args)

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, errors.Join(ErrSpawn, err)
	}

	h := &Handle{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		pgid:   cmd.Process.Pid,
		stdin:  stdin,
		exited: make(chan struct{}),
	}

	// Setpgid with Pgid 0 makes the group id equal the pid; read it back to be sure.
	if pgid, err := unix.Getpgid(h.pid); err == nil {
		h.pgid = pgid
	}

	go func() {
		h.waitErr = cmd.Wait()
		close(h.exited)
	}()

	logger.Info("worker started", "workerPid", h.pid, "workerPgid", h.pgid)

	return h, nil
}

// Pid returns the worker's process id.
func (h *Handle) Pid() int { return h.pid }

// Pgid returns the worker's process group id.
func (h *Handle) Pgid() int { return h.pgid }

// Stdin returns the write end of the worker's input stream.
func (h *Handle) Stdin() io.Writer { return h.stdin }

// Exited is closed once the worker has been waited on.
func (h *Handle) Exited() <-chan struct{} { return h.exited }

// CloseStdin closes the worker's input stream. It is safe to call more than once.
func (h *Handle) CloseStdin() error {
	var err error

	h.closeStdin.Do(func() {
		err = h.stdin.Close()
	})

	return err
}

// Signal delivers sig to the worker's whole process group.
func (h *Handle) Signal(sig unix.Signal) error {
	select {
	case <-h.exited:
		return os.ErrProcessDone
	default:
	}

	if err := kill(-h.pgid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}

		return fmt.Errorf("signal worker group %d: %w", h.pgid, err)
	}

	return nil
}

// Wait blocks until the worker exits or ctx is done.
// A non-zero exit or death by signal is reported as ErrWorkerFailed.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.exited:
		return h.exitErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) exitErr() error {
	if h.waitErr == nil {
		return nil
	}

	return errors.Join(ErrWorkerFailed, h.waitErr)
}

// ExitCode returns the worker's exit code, or -1 while it is running or if it was killed.
func (h *Handle) ExitCode() int {
	select {
	case <-h.exited:
		return h.cmd.ProcessState.ExitCode()
	default:
		return -1
	}
}
