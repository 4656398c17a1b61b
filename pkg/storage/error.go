package storage

import "errors"

// ErrNilEvent is returned when a nil event is passed to Put.
var ErrNilEvent = errors.New("cannot store nil event")

// ErrNotFound is returned when no events were recorded for a stream.
type ErrNotFound struct {
	StreamID string
}

func (e ErrNotFound) Error() string {
	if e.StreamID == "" {
		return "stream not found"
	}

	return "stream not found: " + e.StreamID
}
