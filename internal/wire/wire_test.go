// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEncode_Layout(t *testing.T) {
	b := Encode(unix.SIGINT)
	require.Len(t, b, RecordSize)
	assert.Equal(t, byte('\n'), b[RecordSize-1])
	assert.Equal(t, uint32(unix.SIGINT), binary.NativeEndian.Uint32(b[:PayloadSize]))
}

func TestRoundTrip(t *testing.T) {
	for sig := unix.Signal(0); sig <= 64; sig++ {
		got, err := Decode(Encode(sig))
		require.NoError(t, err)
		require.Equal(t, sig, got)
	}

	got, err := Decode(Encode(unix.Signal(-1)))
	require.NoError(t, err)
	assert.Equal(t, unix.Signal(-1), got)
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	line := append(Encode(unix.SIGTERM), "junk"...)

	got, err := Decode(line)
	require.NoError(t, err)
	assert.Equal(t, unix.SIGTERM, got)
}

func TestDecode_Short(t *testing.T) {
	for n := range PayloadSize {
		_, err := Decode(make([]byte, n))
		require.ErrorIs(t, err, ErrMalformedMessage, "length %d", n)
	}
}

func TestStream_RoundTrip(t *testing.T) {
	var buf bytes.Buffer

	enc := NewEncoder(&buf)
	sigs := []unix.Signal{unix.SIGINT, unix.SIGUSR1, unix.SIGHUP, unix.SIGCONT, unix.SIGSTOP}

	for _, s := range sigs {
		require.NoError(t, enc.Encode(s))
		// Flushed after every record.
		require.Equal(t, 0, buf.Len()%RecordSize)
	}

	dec := NewDecoder(&buf)

	for _, want := range sigs {
		got, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := dec.Decode()
	require.ErrorIs(t, err, io.EOF)
}

func TestDecoder_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{name: "truncated", input: Encode(unix.SIGINT)[:3]},
		{name: "payload without delimiter", input: Encode(unix.SIGINT)[:PayloadSize]},
		{name: "bad delimiter", input: []byte{2, 0, 0, 0, 'x'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecoder(bytes.NewReader(tt.input)).Decode()
			require.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestEncoder_WriteFailure(t *testing.T) {
	err := NewEncoder(brokenWriter{}).Encode(unix.SIGINT)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}
