package sse

import (
	"context"
	"errors"
	"io"
)

const defaultReadSize = 4096

// result is one decoded value or frame error, kept in stream order.
type result[T any] struct {
	value T
	err   error
}

// TeeReader reads SSE text from a source io.Reader while simultaneously
// writing all raw bytes verbatim to a destination io.Writer.
// This effectively enables "tee" shaped reading where TeeReader.Next
// returns decoded values for consumption while writing to a separate
// destination.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │   Decoder[T]     │
// └──────────────────┘
//
// A downstream client io.Writer receives the exact copy of the stream, while
// the caller inspects decoded events. Each Read result is fed to the decoder
// as one chunk, so chunk boundaries are wherever the transport puts them.
type TeeReader[T any] struct {
	src  io.Reader
	dest io.Writer
	dec  *Decoder[T]
	buf  []byte

	queue []result[T]
	err   error
}

// NewTeeReader returns a TeeReader that decodes src with dec and writes all
// raw bytes through to dest. A nil dest discards the raw bytes.
func NewTeeReader[T any](src io.Reader, dest io.Writer, dec *Decoder[T]) *TeeReader[T] {
	if dest == nil {
		dest = io.Discard
	}

	return &TeeReader[T]{
		src:  src,
		dest: dest,
		dec:  dec,
		buf:  make([]byte, defaultReadSize),
	}
}

// Next returns the next decoded value. It blocks until a frame completes or
// the source is exhausted, and returns io.EOF once every frame, including an
// unterminated trailing one, has been returned.
//
// A *FrameError is returned for a malformed frame; the reader stays usable
// and the next call continues with the following frame. Any other error is
// from the source or destination and is returned again on every later call.
func (r *TeeReader[T]) Next() (T, error) {
	var zero T

	for {
		if len(r.queue) > 0 {
			next := r.queue[0]
			r.queue = r.queue[1:]
			return next.value, next.err
		}

		if r.err != nil {
			return zero, r.err
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			if _, werr := r.dest.Write(r.buf[:n]); werr != nil {
				r.err = werr
				continue
			}
			r.dec.feed(string(r.buf[:n]), r.push)
		}

		switch {
		case errors.Is(err, io.EOF):
			r.dec.flush(r.push)
			r.err = io.EOF
		case err != nil:
			r.err = err
		}
	}
}

func (r *TeeReader[T]) push(v T, err error) {
	r.queue = append(r.queue, result[T]{value: v, err: err})
}

// Decode reads src to completion with dec, calling fn for every decoded value
// in order. Frame errors do not stop decoding; they are returned joined once
// the source is exhausted. An error from fn, from reading src or from ctx
// stops decoding immediately. ctx is checked between reads.
func Decode[T any](ctx context.Context, src io.Reader, dec *Decoder[T], fn func(T) error) error {
	tr := NewTeeReader(src, nil, dec)

	var frameErrs []error
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		v, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return errors.Join(frameErrs...)
		}

		var fe *FrameError
		if errors.As(err, &fe) {
			frameErrs = append(frameErrs, err)
			continue
		}
		if err != nil {
			return err
		}

		if err := fn(v); err != nil {
			return err
		}
	}
}
