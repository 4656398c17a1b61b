package sse

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingEventKind indicates a terminated frame carried no "event:" field.
	ErrMissingEventKind = errors.New("missing event kind")

	// ErrInvalidPayload indicates a frame's joined data is not valid JSON.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrPayloadShapeMismatch indicates a frame's data is valid JSON but does
	// not have the shape registered for its event kind.
	ErrPayloadShapeMismatch = errors.New("payload shape mismatch")

	// ErrUnknownEventKind indicates a frame named an event kind the dispatcher
	// does not know. It is only reported when strict kinds are enabled.
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrFrameTooLarge indicates buffered text grew past the configured limit
	// without completing a frame. The buffered text is discarded.
	ErrFrameTooLarge = errors.New("frame too large")
)

// FrameError reports a failure to decode one frame. The decoder has already
// advanced past the frame when a FrameError is returned.
type FrameError struct {
	// Seq is the 1-based sequence number of the frame within the stream.
	Seq int

	// Event is the frame's event kind, if one was present.
	Event string

	// Raw is the frame text as received.
	Raw string

	Err error
}

func (e *FrameError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("sse frame %d: %v", e.Seq, e.Err)
	}

	return fmt.Sprintf("sse frame %d (%s): %v", e.Seq, e.Event, e.Err)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// FrameErrors returns the frame errors held in err, which may be a single
// *FrameError or several joined with errors.Join, in the order they were
// joined. Errors that are not frame errors are skipped.
func FrameErrors(err error) []*FrameError {
	if err == nil {
		return nil
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []*FrameError
		for _, e := range joined.Unwrap() {
			out = append(out, FrameErrors(e)...)
		}
		return out
	}

	var fe *FrameError
	if errors.As(err, &fe) {
		return []*FrameError{fe}
	}
	return nil
}
