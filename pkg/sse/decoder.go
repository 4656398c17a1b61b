package sse

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
)

// DispatchFunc maps a frame's event kind and raw JSON data to a decoded value.
// It returns false when kind is not one it knows, in which case the frame is
// dropped (or reported as ErrUnknownEventKind in strict mode). An error means
// the kind is known but the data could not be turned into a value.
type DispatchFunc[T any] func(kind string, data json.RawMessage) (T, bool, error)

// Option configures a Decoder created with NewDecoder.
type Option func(*options)

type options struct {
	separator     string
	strict        bool
	maxFrameBytes int
	logger        *slog.Logger
}

// WithDataSeparator sets the string used to join multiple "data:" lines of a
// frame. The default is the empty string, so "data: ab" followed by
// "data: cd" yields "abcd". Use "\n" for the joining the WHATWG SSE rules prescribe.
func WithDataSeparator(sep string) Option {
	return func(o *options) {
		o.separator = sep
	}
}

// WithStrictKinds reports frames with an unrecognized event kind as
// ErrUnknownEventKind instead of silently dropping them.
func WithStrictKinds(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithMaxFrameBytes bounds the text buffered for a single incomplete frame.
// Zero, the default, means no limit.
func WithMaxFrameBytes(n int) Option {
	return func(o *options) {
		o.maxFrameBytes = n
	}
}

// WithLogger sets the logger used to report dropped frames at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Decoder incrementally decodes SSE text into values of type T.
//
// A Decoder holds the state of exactly one stream and is not safe for
// concurrent use: callers delivering chunks from several goroutines must
// serialize their calls to Feed.
type Decoder[T any] struct {
	dispatch DispatchFunc[T]
	opts     options

	// pending is the unterminated tail of the last chunk.
	pending string

	// current accumulates the lines of the frame being built.
	current Frame

	// seq counts frames completed since construction or Reset.
	seq int

	// discarding is set while the rest of an oversized frame is skipped up
	// to its terminating blank line.
	discarding bool

	// partial is set when discarded pending text ended mid-line, so the
	// next line cut continues that line rather than starting a new one.
	partial bool
}

// NewDecoder returns a Decoder that hands every complete frame to dispatch.
func NewDecoder[T any](dispatch DispatchFunc[T], opts ...Option) *Decoder[T] {
	d := &Decoder[T]{
		dispatch: dispatch,
	}
	for _, opt := range opts {
		opt(&d.opts)
	}
	if d.opts.logger == nil {
		d.opts.logger = slog.New(slog.DiscardHandler)
	}

	return d
}

// Feed appends chunk to the decoder's buffer and decodes every frame the
// buffer now completes, returning the decoded values in frame order.
//
// chunk need not align to line or frame boundaries: trailing text that does
// not yet complete a frame stays buffered for the next call and is not an
// error. Frames that are complete but invalid are reported as *FrameError
// values joined into the returned error; decoding continues past them, so the
// returned values may be non-empty even when err is not nil.
func (d *Decoder[T]) Feed(chunk string) ([]T, error) {
	var (
		values []T
		errs   []error
	)

	d.feed(chunk, func(v T, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		values = append(values, v)
	})

	return values, errors.Join(errs...)
}

// Flush decodes whatever is still buffered as one final frame, as if the
// stream had ended with a blank line. Call it once the transport reports end
// of stream.
func (d *Decoder[T]) Flush() ([]T, error) {
	var (
		values []T
		errs   []error
	)

	d.flush(func(v T, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		values = append(values, v)
	})

	return values, errors.Join(errs...)
}

// Reset discards all buffered text so the decoder can be reused for a new
// stream. A reset decoder behaves exactly like a newly constructed one.
func (d *Decoder[T]) Reset() {
	d.pending = ""
	d.current = Frame{}
	d.seq = 0
	d.discarding = false
	d.partial = false
}

// Buffered returns the number of bytes held for the incomplete frame.
func (d *Decoder[T]) Buffered() int {
	return len(d.pending) + len(d.current.Raw)
}

// emitFunc receives each decoded value or frame error in stream order.
type emitFunc[T any] func(T, error)

func (d *Decoder[T]) feed(chunk string, emit emitFunc[T]) {
	d.pending += chunk

	for {
		line, next, ok := nextLine(d.pending)
		if !ok {
			break
		}
		d.pending = d.pending[next:]

		if d.discarding {
			if line == "" && !d.partial {
				d.discarding = false
			}
			d.partial = false
			continue
		}

		if line != "" {
			d.current.addLine(line)
			continue
		}

		// A blank line with nothing accumulated is a keep-alive or a
		// leading separator.
		if !d.current.fields {
			d.current = Frame{}
			continue
		}

		d.finish(emit)
	}

	if d.discarding {
		d.dropPending()
		return
	}

	if d.opts.maxFrameBytes > 0 && d.Buffered() > d.opts.maxFrameBytes {
		d.seq++
		var zero T
		emit(zero, &FrameError{
			Seq:   d.seq,
			Event: d.current.Event,
			Err:   ErrFrameTooLarge,
		})
		d.current = Frame{}
		d.discarding = true
		d.dropPending()
	}
}

// dropPending throws away the unterminated tail while discarding. A trailing
// CR is kept since it may be the first half of a CRLF terminator.
func (d *Decoder[T]) dropPending() {
	rest, cr := strings.CutSuffix(d.pending, "\r")
	d.partial = d.partial || rest != ""
	d.pending = ""
	if cr {
		d.pending = "\r"
	}
}

func (d *Decoder[T]) flush(emit emitFunc[T]) {
	if d.discarding {
		d.pending = ""
		d.current = Frame{}
		d.discarding = false
		d.partial = false
		return
	}

	if line := strings.TrimSuffix(d.pending, "\r"); line != "" {
		d.current.addLine(line)
	}
	d.pending = ""

	if d.current.fields {
		d.finish(emit)
		return
	}
	d.current = Frame{}
}

// finish decodes the accumulated frame and clears it before emitting, so a
// malformed frame never stays in the buffer.
func (d *Decoder[T]) finish(emit emitFunc[T]) {
	frame := d.current
	d.current = Frame{}
	d.seq++

	v, ok, err := d.decodeFrame(&frame)
	if err != nil {
		var zero T
		emit(zero, &FrameError{
			Seq:   d.seq,
			Event: frame.Event,
			Raw:   frame.Raw,
			Err:   err,
		})
		return
	}
	if !ok {
		return
	}

	emit(v, nil)
}

func (d *Decoder[T]) decodeFrame(frame *Frame) (T, bool, error) {
	var zero T

	if frame.Event == "" {
		return zero, false, ErrMissingEventKind
	}

	data := frame.Data(d.opts.separator)
	if !json.Valid([]byte(data)) {
		return zero, false, ErrInvalidPayload
	}

	v, ok, err := d.dispatch(frame.Event, json.RawMessage(data))
	if err != nil {
		return zero, false, err
	}

	if !ok {
		if d.opts.strict {
			return zero, false, ErrUnknownEventKind
		}

		d.opts.logger.Debug("dropping frame with unknown event kind",
			"event", frame.Event,
			"seq", d.seq,
		)
		return zero, false, nil
	}

	return v, true, nil
}
