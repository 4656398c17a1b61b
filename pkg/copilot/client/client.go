// Package client streams chat replies from a copilot backend, or from a
// copilotsse relay in front of one, and decodes them as they arrive.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/sse"
)

const (
	// StreamPath is the backend endpoint that answers with an event stream.
	StreamPath = "/chat/stream"

	// StreamIDHeader tags a request with the ID a relay records it under.
	StreamIDHeader = "X-Copilot-Stream-Id"

	eventStreamMediaType = "text/event-stream"
)

// ErrNotEventStream is returned when a successful response is not an event stream.
var ErrNotEventStream = errors.New("response is not an event stream")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("copilot returned status %d: %s", e.StatusCode, e.Body)
}

// Message is one turn of the conversation sent to the backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the body of a chat stream request.
type Request struct {
	Messages []Message     `json:"messages"`
	Model    string        `json:"model,omitempty"`
	Context  []ContextItem `json:"context,omitempty"`

	// StreamID is sent in StreamIDHeader. Stream fills it with a new ID when
	// empty and, when a relay answers with its own, replaces it with that one.
	StreamID string `json:"-"`
}

// ContextItem is a named piece of editor context attached to a request,
// such as the content of an open file.
type ContextItem struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Client talks to a copilot backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	registry   *copilot.Registry
	decOpts    []sse.Option
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRegistry sets the registry replies are decoded with.
func WithRegistry(reg *copilot.Registry) Option {
	return func(c *Client) {
		c.registry = reg
	}
}

// WithDecoderOptions sets options applied to the decoder of every reply.
func WithDecoderOptions(opts ...sse.Option) Option {
	return func(c *Client) {
		c.decOpts = append(c.decOpts, opts...)
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			// Replies stream for as long as generation runs
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.registry == nil {
		reg, err := copilot.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("creating event registry: %w", err)
		}
		c.registry = reg
	}

	return c, nil
}

// Stream sends req and decodes the reply, calling fn for every event as it
// arrives. fn may be nil. The assembled transcript is returned once the
// stream ends.
//
// Malformed frames do not stop the stream: they are returned joined as
// *sse.FrameError values alongside the transcript of everything that did
// decode. An error from fn stops the stream and is returned as is.
func (c *Client) Stream(ctx context.Context, req *Request, fn func(copilot.Event) error) (*copilot.Transcript, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if req.StreamID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generating stream id: %w", err)
		}
		req.StreamID = id.String()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+StreamPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", eventStreamMediaType)
	httpReq.Header.Set(StreamIDHeader, req.StreamID)

	c.logger.Debug("requesting chat stream",
		"url", httpReq.URL.String(),
		"stream_id", req.StreamID,
		"messages", len(req.Messages),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != eventStreamMediaType {
		return nil, fmt.Errorf("%w: got %q", ErrNotEventStream, resp.Header.Get("Content-Type"))
	}

	if id := resp.Header.Get(StreamIDHeader); id != "" {
		req.StreamID = id
	}

	opts := append([]sse.Option{sse.WithLogger(c.logger)}, c.decOpts...)
	transcript := &copilot.Transcript{}
	err = sse.Decode(ctx, resp.Body, copilot.NewDecoder(c.registry, opts...), func(ev copilot.Event) error {
		transcript.Apply(ev)
		if fn == nil {
			return nil
		}
		return fn(ev)
	})

	var fe *sse.FrameError
	if err != nil && !errors.As(err, &fe) {
		return nil, err
	}

	return transcript, err
}
