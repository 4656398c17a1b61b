package api

import (
	"encoding/json"
	"errors"
	"slices"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/sse"
	"github.com/wso2/copilotsse/pkg/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StreamsResponse lists recorded streams.
type StreamsResponse struct {
	Count   int                     `json:"count"`
	Streams []storage.StreamSummary `json:"streams"`
}

// EventsResponse holds the recorded events of one stream.
type EventsResponse struct {
	StreamID string                     `json:"stream_id"`
	Count    int                        `json:"count"`
	Events   []*eventstream.StreamEvent `json:"events"`
}

// TranscriptResponse holds the reply assembled from one stream.
type TranscriptResponse struct {
	StreamID      string              `json:"stream_id,omitempty"`
	Transcript    *copilot.Transcript `json:"transcript"`
	HasCodeBlocks bool                `json:"has_code_blocks"`
}

// DecodedEvent is one event of a stream decoded by POST /decode.
type DecodedEvent struct {
	Seq     int             `json:"seq"`
	Kind    copilot.Kind    `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// FrameFailure is a frame POST /decode could not decode.
type FrameFailure struct {
	Seq   int    `json:"seq"`
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

// DecodeResponse is the result of POST /decode.
type DecodeResponse struct {
	Events   []DecodedEvent `json:"events"`
	Failures []FrameFailure `json:"failures"`
	TranscriptResponse
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListStreams returns a summary of every recorded stream.
func (s *Server) handleListStreams(c *fiber.Ctx) error {
	streams, err := s.driver.Streams(c.Context())
	if err != nil {
		s.logger.Error("failed to list streams", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list streams"})
	}

	return c.JSON(StreamsResponse{
		Count:   len(streams),
		Streams: streams,
	})
}

// handleStreamEvents returns the recorded events of a stream in order.
// The optional "kind" query parameter keeps only events of that kind.
func (s *Server) handleStreamEvents(c *fiber.Ctx) error {
	streamID := c.Params("id")

	kind := c.Query("kind")
	if kind != "" && !s.registry.Known(kind) {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "unknown event kind: " + kind})
	}

	events, err := s.driver.Events(c.Context(), streamID)
	if err != nil {
		return s.storageError(c, streamID, err)
	}

	if kind != "" {
		events = slices.DeleteFunc(events, func(ev *eventstream.StreamEvent) bool {
			return ev.Kind != kind
		})
	}

	return c.JSON(EventsResponse{
		StreamID: streamID,
		Count:    len(events),
		Events:   events,
	})
}

// handleStreamTranscript returns the reply assembled from a recorded stream.
func (s *Server) handleStreamTranscript(c *fiber.Ctx) error {
	streamID := c.Params("id")

	t, err := storage.Transcript(c.Context(), s.driver, s.registry, streamID)
	if err != nil {
		return s.storageError(c, streamID, err)
	}

	return c.JSON(TranscriptResponse{
		StreamID:      streamID,
		Transcript:    t,
		HasCodeBlocks: t.HasCodeBlocks(),
	})
}

// handleDecode decodes a posted event stream body. Frames that fail to decode
// are reported next to the events that did; the request itself only fails
// when the query is invalid.
//
// Query parameters:
//   - strict: "true" reports unknown event kinds as failures
//   - join: separator for multi-line data fields
func (s *Server) handleDecode(c *fiber.Ctx) error {
	opts := append([]sse.Option{}, s.config.DecoderOptions...)

	if raw := c.Query("strict"); raw != "" {
		strict, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "strict must be a boolean"})
		}
		opts = append(opts, sse.WithStrictKinds(strict))
	}
	if join := c.Query("join"); join != "" {
		opts = append(opts, sse.WithDataSeparator(join))
	}

	events, err := copilot.DecodeString(s.registry, string(c.Body()), opts...)

	resp := DecodeResponse{
		Events:   make([]DecodedEvent, 0, len(events)),
		Failures: make([]FrameFailure, 0),
		TranscriptResponse: TranscriptResponse{
			Transcript: &copilot.Transcript{},
		},
	}
	for i, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("failed to marshal decoded event", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to encode events"})
		}

		resp.Events = append(resp.Events, DecodedEvent{
			Seq:     i + 1,
			Kind:    ev.Kind(),
			Payload: payload,
		})
		resp.Transcript.Apply(ev)
	}
	for _, fe := range sse.FrameErrors(err) {
		resp.Failures = append(resp.Failures, FrameFailure{
			Seq:   fe.Seq,
			Event: fe.Event,
			Error: fe.Err.Error(),
			Raw:   fe.Raw,
		})
	}
	resp.HasCodeBlocks = resp.Transcript.HasCodeBlocks()

	return c.JSON(resp)
}

func (s *Server) storageError(c *fiber.Ctx, streamID string, err error) error {
	var notFound storage.ErrNotFound
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
	}

	s.logger.Error("failed to load stream",
		"stream_id", streamID,
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load stream"})
}
