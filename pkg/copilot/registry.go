package copilot

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wso2/copilotsse/pkg/sse"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// decoders maps each kind to the constructor for its payload type.
var decoders = map[Kind]func(json.RawMessage) (Event, error){
	KindMessageStart:      decodeAs[MessageStart],
	KindContentBlockStart: decodeAs[ContentBlockStart],
	KindContentBlockDelta: decodeAs[ContentBlockDelta],
	KindContentBlockStop:  decodeAs[ContentBlockStop],
	KindMessageDelta:      decodeAs[MessageDelta],
	KindMessageStop:       decodeAs[MessageStop],
	KindError:             decodeAs[ErrorEvent],
}

func decodeAs[E Event](data json.RawMessage) (Event, error) {
	var e E
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}

type kindSpec struct {
	schema *jsonschema.Schema
	decode func(json.RawMessage) (Event, error)
}

// Registry holds the compiled payload schema of every known kind. It is
// immutable once built and safe for concurrent use; build one per process and
// pass it to whatever decodes copilot streams.
type Registry struct {
	kinds map[Kind]kindSpec
}

// NewRegistry compiles the embedded payload schemas.
func NewRegistry() (*Registry, error) {
	c := jsonschema.NewCompiler()
	r := &Registry{
		kinds: make(map[Kind]kindSpec, len(decoders)),
	}

	for _, kind := range Kinds() {
		decode, ok := decoders[kind]
		if !ok {
			return nil, fmt.Errorf("no decoder for kind %q", kind)
		}

		name := string(kind) + ".json"
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("reading schema for %q: %w", kind, err)
		}

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema for %q: %w", kind, err)
		}
		if err := c.AddResource(name, doc); err != nil {
			return nil, fmt.Errorf("add schema resource for %q: %w", kind, err)
		}

		schema, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("compile schema for %q: %w", kind, err)
		}

		r.kinds[kind] = kindSpec{schema: schema, decode: decode}
	}

	return r, nil
}

// Known reports whether kind is one of the registered event kinds.
func (r *Registry) Known(kind string) bool {
	_, ok := r.kinds[Kind(kind)]
	return ok
}

// Dispatch decodes data as the payload of kind. It satisfies
// sse.DispatchFunc[Event]: unknown kinds return false, and data that does not
// match the kind's schema fails with sse.ErrPayloadShapeMismatch.
func (r *Registry) Dispatch(kind string, data json.RawMessage) (Event, bool, error) {
	spec, ok := r.kinds[Kind(kind)]
	if !ok {
		return nil, false, nil
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", sse.ErrInvalidPayload, err)
	}

	if err := spec.schema.Validate(inst); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", sse.ErrPayloadShapeMismatch, kind, err)
	}

	ev, err := spec.decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", sse.ErrPayloadShapeMismatch, kind, err)
	}

	return ev, true, nil
}

// NewDecoder returns an SSE decoder for one copilot stream.
func NewDecoder(r *Registry, opts ...sse.Option) *sse.Decoder[Event] {
	return sse.NewDecoder(r.Dispatch, opts...)
}

// DecodeString decodes a complete captured stream. The text is fed as one
// chunk and flushed, so a final frame without a trailing blank line still
// decodes. Frame errors from both steps are returned joined.
func DecodeString(r *Registry, text string, opts ...sse.Option) ([]Event, error) {
	dec := NewDecoder(r, opts...)

	events, feedErr := dec.Feed(text)
	rest, flushErr := dec.Flush()

	return append(events, rest...), errors.Join(feedErr, flushErr)
}
