// Package api provides an HTTP API server for decoding copilot streams and
// inspecting the streams the relay recorded.
package api

import (
	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/sse"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// Registry decodes event payloads. A default registry is built when nil.
	Registry *copilot.Registry

	// DecoderOptions are the defaults for POST /decode.
	DecoderOptions []sse.Option

	// MaxDecodeBytes bounds the body POST /decode accepts (defaults to 4MB).
	MaxDecodeBytes int

	// DisableMCP leaves the /mcp endpoint unmounted.
	DisableMCP bool
}
