// Package eventstream defines the envelope decoded copilot events travel in
// once they leave the decoder, and the publishers that ship them.
package eventstream

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wso2/copilotsse/pkg/copilot"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeDecoded is emitted for every event decoded from a stream.
	EventTypeDecoded = "copilotsse.event.decoded"
)

// StreamEvent is a transport-neutral envelope for one decoded event.
type StreamEvent struct {
	SchemaVersion int             `json:"schema_version"`
	EventType     string          `json:"event_type"`
	EventID       string          `json:"event_id"`
	EmittedAt     time.Time       `json:"emitted_at"`
	StreamID      string          `json:"stream_id"`
	Seq           int             `json:"seq"`
	Kind          string          `json:"kind"`
	Payload       json.RawMessage `json:"payload"`
}

// NewStreamEvent wraps ev, the seq'th event of the stream, in an envelope
// with a fresh time-ordered event ID.
func NewStreamEvent(streamID string, seq int, ev copilot.Event) (*StreamEvent, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating event id: %w", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", ev.Kind(), err)
	}

	return &StreamEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeDecoded,
		EventID:       id.String(),
		EmittedAt:     time.Now().UTC(),
		StreamID:      streamID,
		Seq:           seq,
		Kind:          string(ev.Kind()),
		Payload:       payload,
	}, nil
}

// Decode turns the envelope back into a typed event using reg.
func (e *StreamEvent) Decode(reg *copilot.Registry) (copilot.Event, error) {
	ev, ok, err := reg.Dispatch(e.Kind, e.Payload)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("event %s: unknown kind %q", e.EventID, e.Kind)
	}
	return ev, nil
}
