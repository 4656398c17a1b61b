// Package storage records decoded stream events so streams can be replayed
// and inspected after the fact.
package storage

import (
	"context"
	"time"

	"github.com/wso2/copilotsse/pkg/eventstream"
)

// Driver defines the interface for persisting and retrieving stream events
// in a storage backend.
type Driver interface {
	// Put stores an event. Returns true if the event was newly inserted,
	// false if an event with the same ID already exists, in which case Put
	// is a no-op.
	Put(ctx context.Context, event *eventstream.StreamEvent) (bool, error)

	// Events returns every event of a stream ordered by sequence number.
	// Returns ErrNotFound if nothing was recorded for streamID.
	Events(ctx context.Context, streamID string) ([]*eventstream.StreamEvent, error)

	// Streams returns a summary of every recorded stream, most recently
	// active first.
	Streams(ctx context.Context) ([]StreamSummary, error)

	// Close closes the store and releases any resources.
	Close() error
}

// StreamSummary describes one recorded stream.
type StreamSummary struct {
	StreamID  string    `json:"stream_id"`
	Events    int       `json:"events"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
