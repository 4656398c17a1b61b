// Package proxy provides a copilot relay that records the event streams it forwards.
package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/sse"
	"github.com/wso2/copilotsse/pkg/storage"
	"github.com/wso2/copilotsse/proxy/header"
	"github.com/wso2/copilotsse/proxy/worker"
)

const eventStreamMediaType = "text/event-stream"

// errorResponse is the body returned when the relay itself fails a request.
type errorResponse struct {
	Error string `json:"error"`
}

// Proxy is a transparent relay in front of a copilot backend.
// It forwards every request upstream unchanged and, for event stream
// responses, decodes the stream as it passes through and enqueues each
// decoded event for async recording via its worker pool.
type Proxy struct {
	config        Config
	driver        storage.Driver
	registry      *copilot.Registry
	workerPool    *worker.Pool
	logger        *slog.Logger
	httpClient    *http.Client
	server        *fiber.App
	headerHandler *header.Handler
}

// New creates a new Proxy.
// The driver is injected to handle async persistence of decoded events.
func New(config Config, driver storage.Driver, logger *slog.Logger) (*Proxy, error) {
	if config.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reg := config.Registry
	if reg == nil {
		var err error
		reg, err = copilot.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("could not create event registry: %w", err)
		}
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	// Add compression middleware to handle responses
	app.Use(compress.New())

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	p := &Proxy{
		config:        config,
		driver:        driver,
		registry:      reg,
		workerPool:    wp,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
		httpClient: &http.Client{
			// Copilot replies stream for as long as generation runs
			Timeout: 5 * time.Minute,
		},
	}

	// Register transparent proxy route - forwards any path to upstream
	app.All("/*", p.handleProxy)

	return p, nil
}

// Run starts the proxy server on the given listening address
func (p *Proxy) Run() error {
	p.logger.Info("starting proxy server",
		"listen", p.config.ListenAddr,
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listen(p.config.ListenAddr)
}

// RunWithListener starts the proxy server using the provided listener.
func (p *Proxy) RunWithListener(listener net.Listener) error {
	p.logger.Info("starting proxy server",
		"listen", listener.Addr().String(),
		"upstream", p.config.UpstreamURL,
	)

	return p.server.Listener(listener)
}

// Close gracefully shuts down the proxy and waits for the worker pool to drain
func (p *Proxy) Close() error {
	err := p.server.Shutdown()
	p.workerPool.Close()
	return err
}

// handleProxy forwards the request to upstream. Event stream responses are
// relayed chunk by chunk and recorded; anything else is sent back as is.
func (p *Proxy) handleProxy(c *fiber.Ctx) error {
	startTime := time.Now()

	upstreamURL := p.config.UpstreamURL + c.Path()
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		upstreamURL += "?" + string(q)
	}

	var reqBody io.Reader
	if body := c.Body(); len(body) > 0 {
		// fasthttp reuses the request buffer once the handler returns
		reqBody = bytes.NewReader(bytes.Clone(body))
	}

	// Use context.Background() instead of c.Context() because fasthttp recycles
	// its RequestCtx after the handler returns, but a streamed body is relayed
	// asynchronously in a separate goroutine and needs the upstream connection
	// to remain open.
	httpReq, err := http.NewRequestWithContext(context.Background(), c.Method(), upstreamURL, reqBody)
	if err != nil {
		p.logger.Error("failed to create upstream request", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{Error: "internal error"})
	}

	p.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	p.logger.Debug("forwarding request to upstream",
		"method", c.Method(),
		"url", upstreamURL,
	)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "upstream request failed"})
	}

	if isEventStream(httpResp) {
		return p.handleStreamingProxy(c, httpResp, startTime)
	}

	return p.handleNonStreamingProxy(c, httpResp)
}

// handleNonStreamingProxy relays a buffered upstream response.
func (p *Proxy) handleNonStreamingProxy(c *fiber.Ctx, httpResp *http.Response) error {
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		p.logger.Error("failed to read upstream response", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(errorResponse{Error: "failed to read upstream response"})
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		p.logger.Warn("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
	}

	p.headerHandler.SetClientResponseHeaders(c, httpResp)

	return c.Status(httpResp.StatusCode).Send(respBody)
}

// handleStreamingProxy relays an upstream event stream to the client and
// records it under the request's stream ID.
func (p *Proxy) handleStreamingProxy(c *fiber.Ctx, httpResp *http.Response, startTime time.Time) error {
	streamID := p.headerHandler.StreamID(c)

	p.headerHandler.SetClientResponseHeaders(c, httpResp)
	c.Set(header.StreamIDHeader, streamID)
	c.Status(httpResp.StatusCode)

	p.logger.Debug("relaying event stream",
		"stream_id", streamID,
		"path", c.Path(),
	)

	// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter.
	// SetBodyStreamWriter uses an internal PipeConns with a buffered channel
	// (capacity 4) and two bufio.Writers, which means Flush() in the callback
	// only pushes data into the pipe, NOT to the TCP socket. This causes all
	// chunks to buffer in memory before being sent to the client.
	//
	// With io.Pipe, pw.Write blocks until the reader consumes the data, and
	// the reader is fasthttp's writeBodyChunked which flushes to TCP after
	// every chunk. This gives direct backpressure and true per-chunk streaming.
	pr, pw := io.Pipe()
	go p.relayEventStream(httpResp, pw, streamID, startTime)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayEventStream copies the upstream body verbatim to pw while decoding it.
// Every decoded event is enqueued for recording in stream order.
func (p *Proxy) relayEventStream(httpResp *http.Response, pw *io.PipeWriter, streamID string, startTime time.Time) {
	// Close the upstream response body once streaming is complete.
	defer httpResp.Body.Close()

	opts := append([]sse.Option{sse.WithLogger(p.logger)}, p.config.DecoderOptions...)
	tr := sse.NewTeeReader(httpResp.Body, pw, copilot.NewDecoder(p.registry, opts...))

	var (
		seq        int
		frameFails int
	)
	for {
		ev, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		var fe *sse.FrameError
		if errors.As(err, &fe) {
			frameFails++
			p.logger.Warn("skipping malformed frame",
				"stream_id", streamID,
				"seq", fe.Seq,
				"event", fe.Event,
				"error", fe.Err,
			)
			continue
		}
		if err != nil {
			p.logger.Error("error relaying event stream",
				"stream_id", streamID,
				"error", err,
			)
			pw.CloseWithError(err)
			return
		}

		seq++
		p.enqueueEvent(streamID, seq, ev)
	}

	pw.Close()

	p.logger.Debug("event stream complete",
		"stream_id", streamID,
		"events", seq,
		"frame_errors", frameFails,
		"duration", time.Since(startTime),
	)
}

func (p *Proxy) enqueueEvent(streamID string, seq int, ev copilot.Event) {
	env, err := eventstream.NewStreamEvent(streamID, seq, ev)
	if err != nil {
		p.logger.Error("failed to build stream event",
			"stream_id", streamID,
			"seq", seq,
			"error", err,
		)
		return
	}

	// Non-blocking enqueue for async storage
	p.workerPool.Enqueue(worker.Job{Event: env})
}

func isEventStream(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mediaType == eventStreamMediaType
}
