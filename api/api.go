package api

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/wso2/copilotsse/api/mcp"
	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/storage"
)

const defaultMaxDecodeBytes = 4 * 1024 * 1024

// Server is the API server for decoding and querying copilot streams
type Server struct {
	config   Config
	driver   storage.Driver
	registry *copilot.Registry
	logger   *slog.Logger
	app      *fiber.App
}

// NewServer creates a new API server.
// The driver is injected to allow sharing with other components
// (e.g., the proxy when not run as a singleton).
func NewServer(config Config, driver storage.Driver, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if config.MaxDecodeBytes <= 0 {
		config.MaxDecodeBytes = defaultMaxDecodeBytes
	}

	reg := config.Registry
	if reg == nil {
		var err error
		reg, err = copilot.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("could not create event registry: %w", err)
		}
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Driver:         driver,
		Registry:       reg,
		DecoderOptions: config.DecoderOptions,
		Noop:           config.DisableMCP,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create MCP server: %w", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             config.MaxDecodeBytes,
	})

	s := &Server{
		config:   config,
		driver:   driver,
		registry: reg,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/streams", s.handleListStreams)
	app.Get("/streams/:id/events", s.handleStreamEvents)
	app.Get("/streams/:id/transcript", s.handleStreamTranscript)
	app.Post("/decode", s.handleDecode)

	if handler := mcpServer.Handler(); handler != nil {
		app.All("/mcp", adaptor.HTTPHandler(handler))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
