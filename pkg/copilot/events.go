// Package copilot defines the closed set of events a copilot backend streams
// while generating a reply, and decodes them from SSE frames.
package copilot

// Kind is the SSE event name that selects an event's payload shape.
type Kind string

const (
	KindMessageStart      Kind = "message_start"
	KindContentBlockStart Kind = "content_block_start"
	KindContentBlockDelta Kind = "content_block_delta"
	KindContentBlockStop  Kind = "content_block_stop"
	KindMessageDelta      Kind = "message_delta"
	KindMessageStop       Kind = "message_stop"
	KindError             Kind = "error"
)

// Kinds returns every known kind in stream order.
func Kinds() []Kind {
	return []Kind{
		KindMessageStart,
		KindContentBlockStart,
		KindContentBlockDelta,
		KindContentBlockStop,
		KindMessageDelta,
		KindMessageStop,
		KindError,
	}
}

// Event is a decoded copilot stream event. The set of implementations is
// closed: only the types in this package satisfy it.
type Event interface {
	Kind() Kind
	event()
}

// Usage is token accounting reported by the backend.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// MessageStart opens a reply.
type MessageStart struct {
	ID    string `json:"id,omitempty"`
	Model string `json:"model,omitempty"`
	Role  string `json:"role,omitempty"`
	Usage *Usage `json:"usage,omitempty"`
}

// ContentBlockStart opens the content block at Index.
type ContentBlockStart struct {
	Index int    `json:"index"`
	Type  string `json:"type,omitempty"`
}

// ContentBlockDelta carries the next piece of generated text.
type ContentBlockDelta struct {
	Index int    `json:"index,omitempty"`
	Text  string `json:"text"`
}

// ContentBlockStop closes the content block at Index.
type ContentBlockStop struct {
	Index int `json:"index"`
}

// MessageDelta carries reply-level changes, usually the stop reason and
// output usage.
type MessageDelta struct {
	StopReason string `json:"stop_reason,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`
}

// MessageStop closes a reply.
type MessageStop struct {
	StopReason string `json:"stop_reason,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`
}

// ErrorEvent reports a failure raised by the backend mid-stream.
type ErrorEvent struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (MessageStart) Kind() Kind      { return KindMessageStart }
func (ContentBlockStart) Kind() Kind { return KindContentBlockStart }
func (ContentBlockDelta) Kind() Kind { return KindContentBlockDelta }
func (ContentBlockStop) Kind() Kind  { return KindContentBlockStop }
func (MessageDelta) Kind() Kind      { return KindMessageDelta }
func (MessageStop) Kind() Kind       { return KindMessageStop }
func (ErrorEvent) Kind() Kind        { return KindError }

func (MessageStart) event()      {}
func (ContentBlockStart) event() {}
func (ContentBlockDelta) event() {}
func (ContentBlockStop) event()  {}
func (MessageDelta) event()      {}
func (MessageStop) event()       {}
func (ErrorEvent) event()        {}

// Interface compliance checks.
var (
	_ Event = MessageStart{}
	_ Event = ContentBlockStart{}
	_ Event = ContentBlockDelta{}
	_ Event = ContentBlockStop{}
	_ Event = MessageDelta{}
	_ Event = MessageStop{}
	_ Event = ErrorEvent{}
)
