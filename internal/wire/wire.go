// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package wire encodes signal numbers for the manager to worker stdin relay.
//
// A record is the signal number as an int32 in native byte order followed by '\n'.
// There is no other framing.
package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

const (
	// PayloadSize is the width of the encoded signal number.
	PayloadSize = 4
	// RecordSize is the payload plus the delimiter.
	RecordSize = PayloadSize + 1
	// Delimiter terminates every record.
	Delimiter = '\n'
)

// ErrMalformedMessage is returned for short or badly delimited records.
var ErrMalformedMessage = errors.New("malformed wire message")

// Encode returns the RecordSize bytes for sig.
func Encode(sig unix.Signal) []byte {
	b := make([]byte, PayloadSize, RecordSize)
	binary.NativeEndian.PutUint32(b, uint32(int32(sig)))

	return append(b, Delimiter)
}

// Decode reads the signal from the first PayloadSize bytes of line.
// Anything after the payload, including the delimiter, is ignored.
func Decode(line []byte) (unix.Signal, error) {
	if len(line) < PayloadSize {
		return 0, fmt.Errorf("%w: got %d bytes, want at least %d", ErrMalformedMessage, len(line), PayloadSize)
	}

	return unix.Signal(int32(binary.NativeEndian.Uint32(line[:PayloadSize]))), nil
}

// Encoder writes records to a buffered stream and flushes after each one.
type Encoder struct {
	w *bufio.Writer
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriterSize(w, RecordSize)}
}

// Encode writes and flushes one record.
func (e *Encoder) Encode(sig unix.Signal) error {
	if _, err := e.w.Write(Encode(sig)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}

	return nil
}

// Decoder reads fixed size records.
//
// Reading by size rather than up to the next '\n' keeps payloads containing 0x0A,
// such as SIGUSR1 on Linux, intact.
type Decoder struct {
	r   *bufio.Reader
	buf [RecordSize]byte
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode reads one record.
// It returns io.EOF if the stream ends cleanly between records, and
// ErrMalformedMessage for a truncated record or a missing delimiter.
func (d *Decoder) Decode() (unix.Signal, error) {
	n, err := io.ReadFull(d.r, d.buf[:])

	switch {
	case errors.Is(err, io.EOF):
		return 0, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return 0, fmt.Errorf("%w: truncated record of %d bytes", ErrMalformedMessage, n)
	case err != nil:
		return 0, err
	}

	if d.buf[PayloadSize] != Delimiter {
		return 0, fmt.Errorf("%w: delimiter is %#x", ErrMalformedMessage, d.buf[PayloadSize])
	}

	return Decode(d.buf[:])
}
