package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/storage"
)

var (
	transcriptToolName    = "get_transcript"
	transcriptDescription = "Assemble the reply of a copilot stream recorded by the relay. Returns the concatenated text, stop reason, token usage, backend errors and whether the reply contains code blocks."

	listStreamsToolName    = "list_streams"
	listStreamsDescription = "List the copilot streams recorded by the relay, most recently active first, with their event counts."
)

// TranscriptInput represents the input arguments for the get_transcript tool.
type TranscriptInput struct {
	StreamID string `json:"stream_id" jsonschema:"the ID of a recorded stream"`
}

// TranscriptOutput represents the output of the get_transcript tool.
type TranscriptOutput struct {
	StreamID      string             `json:"stream_id"`
	Transcript    copilot.Transcript `json:"transcript"`
	HasCodeBlocks bool               `json:"has_code_blocks"`
}

// ListStreamsInput represents the input arguments for the list_streams tool.
type ListStreamsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of streams to return (default: 20)"`
}

// StreamInfo summarizes one recorded stream.
type StreamInfo struct {
	StreamID  string `json:"stream_id"`
	Events    int    `json:"events"`
	FirstSeen string `json:"first_seen"`
	LastSeen  string `json:"last_seen"`
}

// ListStreamsOutput represents the output of the list_streams tool.
type ListStreamsOutput struct {
	Streams []StreamInfo `json:"streams"`
	Count   int          `json:"count"`
}

// handleTranscript processes a get_transcript request.
func (s *Server) handleTranscript(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
	logger := s.config.Logger

	if input.StreamID == "" {
		return toolError("stream_id is required"), TranscriptOutput{}, nil
	}

	t, err := storage.Transcript(ctx, s.config.Driver, s.registry, input.StreamID)
	var notFound storage.ErrNotFound
	switch {
	case errors.As(err, &notFound):
		return toolError("No stream recorded with ID %s", input.StreamID), TranscriptOutput{}, nil
	case err != nil:
		logger.Error("failed to assemble transcript",
			"stream_id", input.StreamID,
			"error", err,
		)
		return toolError("Failed to assemble transcript: %v", err), TranscriptOutput{}, nil
	}

	output := TranscriptOutput{
		StreamID:      input.StreamID,
		Transcript:    *t,
		HasCodeBlocks: t.HasCodeBlocks(),
	}

	result, err := toolResult(output)
	if err != nil {
		logger.Error("failed to marshal transcript output", "error", err)
		return toolError("Failed to serialize results: %v", err), TranscriptOutput{}, nil
	}

	return result, output, nil
}

// handleListStreams processes a list_streams request.
func (s *Server) handleListStreams(ctx context.Context, _ *mcp.CallToolRequest, input ListStreamsInput) (*mcp.CallToolResult, ListStreamsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	streams, err := s.config.Driver.Streams(ctx)
	if err != nil {
		s.config.Logger.Error("failed to list streams", "error", err)
		return toolError("Failed to list streams: %v", err), ListStreamsOutput{}, nil
	}
	if len(streams) > limit {
		streams = streams[:limit]
	}

	output := ListStreamsOutput{
		Streams: make([]StreamInfo, 0, len(streams)),
		Count:   len(streams),
	}
	for _, sum := range streams {
		output.Streams = append(output.Streams, StreamInfo{
			StreamID:  sum.StreamID,
			Events:    sum.Events,
			FirstSeen: sum.FirstSeen.Format(time.RFC3339Nano),
			LastSeen:  sum.LastSeen.Format(time.RFC3339Nano),
		})
	}

	result, err := toolResult(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), ListStreamsOutput{}, nil
	}

	return result, output, nil
}
