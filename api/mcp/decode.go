package mcp

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/sse"
)

var (
	decodeToolName    = "decode_stream"
	decodeDescription = "Decode the raw text of a copilot server-sent event stream. Returns every decoded event in order, the frames that failed to decode with the reason, and the assembled reply."
)

// DecodeInput represents the input arguments for the decode_stream tool.
type DecodeInput struct {
	Text   string `json:"text" jsonschema:"the raw event stream text, frames separated by blank lines"`
	Strict bool   `json:"strict,omitempty" jsonschema:"report frames with unknown event kinds as errors instead of dropping them"`
	Join   string `json:"join,omitempty" jsonschema:"separator used to join the data lines of a frame (default: empty string)"`
}

// DecodedEvent is one event of a decoded stream.
type DecodedEvent struct {
	Seq     int            `json:"seq"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// FrameFailure is a frame that could not be decoded.
type FrameFailure struct {
	Seq   int    `json:"seq"`
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

// DecodeOutput represents the output of the decode_stream tool.
type DecodeOutput struct {
	Events        []DecodedEvent     `json:"events"`
	Failures      []FrameFailure     `json:"failures"`
	Transcript    copilot.Transcript `json:"transcript"`
	HasCodeBlocks bool               `json:"has_code_blocks"`
}

// handleDecode processes a decode_stream request.
func (s *Server) handleDecode(_ context.Context, _ *mcp.CallToolRequest, input DecodeInput) (*mcp.CallToolResult, DecodeOutput, error) {
	logger := s.config.Logger

	opts := append([]sse.Option{}, s.config.DecoderOptions...)
	if input.Strict {
		opts = append(opts, sse.WithStrictKinds(true))
	}
	if input.Join != "" {
		opts = append(opts, sse.WithDataSeparator(input.Join))
	}

	logger.Debug("MCP decode request",
		"bytes", len(input.Text),
		"strict", input.Strict,
	)

	events, err := copilot.DecodeString(s.registry, input.Text, opts...)

	output := DecodeOutput{
		Events:   make([]DecodedEvent, 0, len(events)),
		Failures: frameFailures(err),
	}
	for i, ev := range events {
		payload, err := payloadMap(ev)
		if err != nil {
			return toolError("Failed to serialize event %d: %v", i+1, err), DecodeOutput{}, nil
		}

		output.Events = append(output.Events, DecodedEvent{
			Seq:     i + 1,
			Kind:    string(ev.Kind()),
			Payload: payload,
		})
		output.Transcript.Apply(ev)
	}
	output.HasCodeBlocks = output.Transcript.HasCodeBlocks()

	result, err := toolResult(output)
	if err != nil {
		logger.Error("failed to marshal decode output", "error", err)
		return toolError("Failed to serialize results: %v", err), DecodeOutput{}, nil
	}

	return result, output, nil
}

func frameFailures(err error) []FrameFailure {
	frameErrs := sse.FrameErrors(err)
	failures := make([]FrameFailure, 0, len(frameErrs))
	for _, fe := range frameErrs {
		failures = append(failures, FrameFailure{
			Seq:   fe.Seq,
			Event: fe.Event,
			Error: fe.Err.Error(),
		})
	}
	return failures
}

func payloadMap(ev copilot.Event) (map[string]any, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
