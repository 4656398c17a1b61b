// Package inmemory provides a map-backed storage driver for tests and
// short-lived relays.
package inmemory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding both maps
	mu sync.RWMutex

	// ids holds every stored event ID for deduplication
	ids map[string]struct{}

	// streams maps a stream ID to its events in insertion order
	streams map[string][]*eventstream.StreamEvent
}

// NewDriver creates a new in-memory storer.
func NewDriver() *Driver {
	return &Driver{
		ids:     make(map[string]struct{}),
		streams: make(map[string][]*eventstream.StreamEvent),
	}
}

// Put stores an event. Returns true if the event was newly inserted,
// false if it already existed.
func (s *Driver) Put(_ context.Context, event *eventstream.StreamEvent) (bool, error) {
	if event == nil {
		return false, storage.ErrNilEvent
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[event.EventID]; ok {
		return false, nil
	}

	s.ids[event.EventID] = struct{}{}
	s.streams[event.StreamID] = append(s.streams[event.StreamID], event)
	return true, nil
}

// Events returns the events of a stream ordered by sequence number.
func (s *Driver) Events(_ context.Context, streamID string) ([]*eventstream.StreamEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events, ok := s.streams[streamID]
	if !ok {
		return nil, storage.ErrNotFound{StreamID: streamID}
	}

	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b *eventstream.StreamEvent) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return out, nil
}

// Streams summarizes every stored stream, most recently active first.
func (s *Driver) Streams(_ context.Context) ([]storage.StreamSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]storage.StreamSummary, 0, len(s.streams))
	for id, events := range s.streams {
		sum := storage.StreamSummary{
			StreamID:  id,
			Events:    len(events),
			FirstSeen: events[0].EmittedAt,
			LastSeen:  events[0].EmittedAt,
		}
		for _, ev := range events[1:] {
			if ev.EmittedAt.Before(sum.FirstSeen) {
				sum.FirstSeen = ev.EmittedAt
			}
			if ev.EmittedAt.After(sum.LastSeen) {
				sum.LastSeen = ev.EmittedAt
			}
		}
		summaries = append(summaries, sum)
	}

	slices.SortFunc(summaries, func(a, b storage.StreamSummary) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.StreamID, b.StreamID)
	})
	return summaries, nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}
