package proxy

import (
	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/sse"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the copilot backend URL (e.g., "http://localhost:9090")
	UpstreamURL string

	// Registry decodes relayed event payloads. A default registry is built
	// when nil.
	Registry *copilot.Registry

	// Publisher is an optional event stream publisher.
	// If nil, decoded events are only recorded.
	Publisher eventstream.Publisher

	// DecoderOptions are applied to the decoder of every relayed stream.
	DecoderOptions []sse.Option
}
