// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sys/unix"
)

// TestMain is used to run the goleak verification before and after tests.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEvent_SignalMappingIsTotalAndInjective(t *testing.T) {
	seen := make(map[unix.Signal]Event)

	for _, ev := range Events {
		sig := ev.Signal()
		require.NotZero(t, sig, "event %s has no signal", ev)

		prev, dup := seen[sig]
		require.False(t, dup, "events %s and %s share signal %d", prev, ev, sig)

		seen[sig] = ev

		back, ok := FromSignal(sig)
		require.True(t, ok)
		assert.Equal(t, ev, back)
	}

	assert.Len(t, seen, 5)
}

func TestEvent_Mapping(t *testing.T) {
	tests := []struct {
		ev    Event
		sig   unix.Signal
		class Class
		name  string
	}{
		{Interrupt, unix.SIGINT, ClassShutdown, "interrupt"},
		{Hangup, unix.SIGHUP, ClassShutdown, "hangup"},
		{Term, unix.SIGTERM, ClassShutdown, "term"},
		{Stop, unix.SIGSTOP, ClassJobControl, "stop"},
		{Continue, unix.SIGCONT, ClassJobControl, "continue"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.sig, tt.ev.Signal())
			assert.Equal(t, tt.class, tt.ev.Class())
			assert.Equal(t, tt.name, tt.ev.String())
		})
	}

	var unknown Event
	assert.Zero(t, unknown.Signal())
	assert.Equal(t, "unknown", unknown.String())
}

func TestFromSignal(t *testing.T) {
	ev, ok := FromSignal(unix.SIGTSTP)
	assert.True(t, ok)
	assert.Equal(t, Stop, ev)

	_, ok = FromSignal(unix.SIGUSR1)
	assert.False(t, ok)
}

func TestNew_SetupErrors(t *testing.T) {
	tests := []struct {
		name    string
		stop    string
		wantErr error
	}{
		{name: "uncatchable", stop: "SIGSTOP", wantErr: ErrUncatchable},
		{name: "kill", stop: "SIGKILL", wantErr: ErrUncatchable},
		{name: "unknown", stop: "SIGBOGUS", wantErr: unix.EINVAL},
		{name: "duplicate", stop: "SIGINT", wantErr: ErrDuplicateSignal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(t.Context(), WithStopSignal(tt.stop))
			require.ErrorIs(t, err, ErrSetup)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, s)
		})
	}
}

func TestRecv_DeliversEvents(t *testing.T) {
	s, err := New(t.Context(), WithBuffer(4))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	for _, want := range []Event{Hangup, Term, Continue} {
		require.NoError(t, unix.Kill(os.Getpid(), want.Signal()))

		ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
		got, ok := s.Recv(ctx)
		cancel()

		require.True(t, ok, "expected %s", want)
		assert.Equal(t, want, got)
	}
}

func TestRecv_StopObservedOnTSTP(t *testing.T) {
	s, err := New(t.Context(), WithStopSignal("SIGUSR2"))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NoError(t, unix.Kill(os.Getpid(), unix.SIGUSR2))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	got, ok := s.Recv(ctx)
	require.True(t, ok)
	assert.Equal(t, Stop, got)
	assert.Equal(t, unix.SIGSTOP, got.Signal())
}

func TestRecv_ContextCancelled(t *testing.T) {
	s, err := New(t.Context())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, ok := s.Recv(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestRecv_ExhaustionTerminality(t *testing.T) {
	orders := [][]Event{
		{Interrupt, Hangup, Term, Stop, Continue},
		{Continue, Stop, Term, Hangup, Interrupt},
		{Term, Interrupt, Continue, Hangup, Stop},
	}

	for _, order := range orders {
		t.Run(order[0].String()+"-first", func(t *testing.T) {
			s, err := New(t.Context())
			require.NoError(t, err)
			t.Cleanup(s.Close)

			byEvent := map[Event]*cursor{
				Interrupt: s.interrupt,
				Hangup:    s.hangup,
				Term:      s.term,
				Stop:      s.stop,
				Continue:  s.cont,
			}

			for i, ev := range order {
				byEvent[ev].shut()

				if i < len(order)-1 {
					// Live cursors remain, so Recv keeps waiting and never yields the closed kind.
					ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
					_, ok := s.Recv(ctx)
					cancel()
					assert.False(t, ok)
					assert.True(t, byEvent[ev].exhausted)
					assert.False(t, s.latched)
				}
			}

			start := time.Now()
			_, ok := s.Recv(t.Context())
			assert.False(t, ok, "all cursors exhausted")
			assert.Less(t, time.Since(start), time.Second, "first terminal result is immediate")
			assert.True(t, s.latched)

			for range 3 {
				ctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
				start = time.Now()
				ev, ok := s.Recv(ctx)
				cancel()

				assert.False(t, ok)
				assert.Zero(t, ev)
				assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond, "latched Recv must block, not spin")
			}
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	s, err := New(t.Context())
	require.NoError(t, err)

	s.Close()
	assert.NotPanics(t, s.Close)
}

func TestNoop(t *testing.T) {
	var src Source = Noop{}

	start := time.Now()
	ev, ok := src.Recv(t.Context())
	assert.False(t, ok)
	assert.Zero(t, ev)
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}
