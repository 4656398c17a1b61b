package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/logger"
	"github.com/wso2/copilotsse/pkg/storage/inmemory"
)

const decodeBody = "event: message_start\ndata: {\"id\":\"msg_1\"}\n\n" +
	"event: telemetry\ndata: {}\n\n" +
	"event: content_block_delta\ndata: not json\n\n" +
	"event: content_block_delta\ndata: {\"text\":\"Try <code lang=\\\"xml\\\">\\n<log/>\\n</code>\"}\n\n" +
	"event: message_stop\ndata: {}\n\n"

// seedStream records events as the relay would.
func seedStream(driver *inmemory.Driver, streamID string, events ...copilot.Event) {
	for i, ev := range events {
		env, err := eventstream.NewStreamEvent(streamID, i+1, ev)
		Expect(err).NotTo(HaveOccurred())
		_, err = driver.Put(context.Background(), env)
		Expect(err).NotTo(HaveOccurred())
	}
}

// do runs req against the server and decodes the JSON body into out.
func do(s *Server, req *http.Request, out any) int {
	resp, err := s.app.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if out != nil {
		Expect(json.Unmarshal(body, out)).To(Succeed(), string(body))
	}
	return resp.StatusCode
}

var _ = Describe("API Server", func() {
	var (
		server *Server
		driver *inmemory.Driver
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()

		var err error
		server, err = NewServer(Config{ListenAddr: ":0"}, driver, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			var body string
			status := do(server, httptest.NewRequest(http.MethodGet, "/ping", nil), &body)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(Equal("pong"))
		})
	})

	Context("with recorded streams", func() {
		BeforeEach(func() {
			seedStream(driver, "stream-a",
				copilot.MessageStart{ID: "msg_a", Model: "copilot-v2"},
				copilot.ContentBlockStart{Index: 0},
				copilot.ContentBlockDelta{Text: "Hello"},
				copilot.ContentBlockDelta{Text: " world"},
				copilot.MessageDelta{StopReason: "end_turn", Usage: &copilot.Usage{OutputTokens: 3}},
				copilot.MessageStop{},
			)
			seedStream(driver, "stream-b",
				copilot.MessageStart{ID: "msg_b"},
				copilot.ErrorEvent{Message: "rate limited"},
			)
		})

		It("lists streams", func() {
			var resp StreamsResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams", nil), &resp)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Count).To(Equal(2))

			ids := []string{resp.Streams[0].StreamID, resp.Streams[1].StreamID}
			Expect(ids).To(ConsistOf("stream-a", "stream-b"))
		})

		It("returns the events of a stream in order", func() {
			var resp EventsResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams/stream-a/events", nil), &resp)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.StreamID).To(Equal("stream-a"))
			Expect(resp.Count).To(Equal(6))
			Expect(resp.Events[0].Kind).To(Equal("message_start"))
			Expect(resp.Events[5].Kind).To(Equal("message_stop"))
			Expect(resp.Events[2].Seq).To(Equal(3))
		})

		It("filters events by kind", func() {
			var resp EventsResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams/stream-a/events?kind=content_block_delta", nil), &resp)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Count).To(Equal(2))
			Expect(resp.Events[0].Seq).To(Equal(3))
			Expect(resp.Events[1].Seq).To(Equal(4))
		})

		It("rejects an unknown kind filter", func() {
			var resp ErrorResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams/stream-a/events?kind=telemetry", nil), &resp)
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(resp.Error).To(Equal("unknown event kind: telemetry"))
		})

		It("assembles the transcript of a stream", func() {
			var resp TranscriptResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams/stream-a/transcript", nil), &resp)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Transcript.MessageID).To(Equal("msg_a"))
			Expect(resp.Transcript.Content).To(Equal("Hello world"))
			Expect(resp.Transcript.StopReason).To(Equal("end_turn"))
			Expect(resp.Transcript.Usage.OutputTokens).To(Equal(3))
			Expect(resp.Transcript.Blocks).To(Equal(1))
			Expect(resp.HasCodeBlocks).To(BeFalse())
		})

		It("reports backend errors in the transcript", func() {
			var resp TranscriptResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams/stream-b/transcript", nil), &resp)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Transcript.Errors).To(Equal([]string{"rate limited"}))
			Expect(resp.Transcript.Done).To(BeFalse())
		})

		It("returns 404 for unknown streams", func() {
			var resp ErrorResponse
			status := do(server, httptest.NewRequest(http.MethodGet, "/streams/missing/events", nil), &resp)
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(resp.Error).To(Equal("stream not found: missing"))

			status = do(server, httptest.NewRequest(http.MethodGet, "/streams/missing/transcript", nil), &resp)
			Expect(status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("POST /decode", func() {
		It("decodes events and reports failed frames", func() {
			var resp DecodeResponse
			status := do(server, httptest.NewRequest(http.MethodPost, "/decode", strings.NewReader(decodeBody)), &resp)
			Expect(status).To(Equal(http.StatusOK))

			Expect(resp.Events).To(HaveLen(3))
			Expect(resp.Events[0].Kind).To(Equal(copilot.KindMessageStart))
			Expect(resp.Events[1].Kind).To(Equal(copilot.KindContentBlockDelta))
			Expect(resp.Events[2].Seq).To(Equal(3))

			Expect(resp.Failures).To(HaveLen(1))
			Expect(resp.Failures[0].Seq).To(Equal(3))
			Expect(resp.Failures[0].Event).To(Equal("content_block_delta"))
			Expect(resp.Failures[0].Error).To(Equal("invalid payload"))
			Expect(resp.Failures[0].Raw).To(ContainSubstring("not json"))

			Expect(resp.Transcript.Content).To(HavePrefix("Try <code"))
			Expect(resp.HasCodeBlocks).To(BeTrue())
		})

		It("reports unknown kinds when strict", func() {
			var resp DecodeResponse
			req := httptest.NewRequest(http.MethodPost, "/decode?strict=true", strings.NewReader(decodeBody))
			status := do(server, req, &resp)
			Expect(status).To(Equal(http.StatusOK))

			Expect(resp.Failures).To(HaveLen(2))
			Expect(resp.Failures[0].Event).To(Equal("telemetry"))
			Expect(resp.Failures[0].Error).To(Equal("unknown event kind"))
		})

		It("rejects an invalid strict flag", func() {
			var resp ErrorResponse
			req := httptest.NewRequest(http.MethodPost, "/decode?strict=maybe", strings.NewReader(decodeBody))
			status := do(server, req, &resp)
			Expect(status).To(Equal(http.StatusBadRequest))
		})

		It("returns empty lists for an empty body", func() {
			var resp DecodeResponse
			status := do(server, httptest.NewRequest(http.MethodPost, "/decode", nil), &resp)
			Expect(status).To(Equal(http.StatusOK))
			Expect(resp.Events).To(BeEmpty())
			Expect(resp.Failures).To(BeEmpty())
			Expect(resp.Transcript.Events).To(Equal(0))
		})
	})

	Describe("/mcp", func() {
		It("answers MCP initialize requests", func() {
			body := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"test","version":"0.0.1"}}}`
			req := httptest.NewRequest(http.MethodPost, "http://localhost/mcp", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")

			resp, err := server.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			raw, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(raw)).To(ContainSubstring(`"name":"copilotsse"`))
		})

		It("is not mounted when disabled", func() {
			s, err := NewServer(Config{DisableMCP: true}, driver, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{}`))
			resp, err := s.app.Test(req, -1)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})
})
