package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	startFrame = "event: message_start\ndata: {\"id\":\"msg_1\"}\n\n"
	deltaFrame = "event: content_block_delta\ndata: {\"text\":\"Hello\"}\n\n"
	stopFrame  = "event: message_stop\ndata: {}\n\n"
)

var _ = Describe("Decoder", func() {
	var dec *Decoder[testEvent]

	BeforeEach(func() {
		dec = newTestDecoder()
	})

	Describe("Feed", func() {
		It("decodes a single frame", func() {
			events, err := dec.Feed(deltaFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]testEvent{
				{Kind: "content_block_delta", Data: `{"text":"Hello"}`},
			}))
		})

		It("decodes several frames from one chunk in order", func() {
			events, err := dec.Feed(startFrame + deltaFrame + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			Expect(events[0].Kind).To(Equal("message_start"))
			Expect(events[1].Kind).To(Equal("content_block_delta"))
			Expect(events[2].Kind).To(Equal("message_stop"))
		})

		It("buffers an incomplete frame without error", func() {
			events, err := dec.Feed("event: message_start\ndata: {\"id\":")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
			Expect(dec.Buffered()).To(BeNumerically(">", 0))

			events, err = dec.Feed("\"msg_1\"}\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]testEvent{
				{Kind: "message_start", Data: `{"id":"msg_1"}`},
			}))
			Expect(dec.Buffered()).To(BeZero())
		})

		It("accepts CRLF line endings", func() {
			events, err := dec.Feed("event: message_stop\r\ndata: {}\r\n\r\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal("message_stop"))
		})

		It("accepts a CRLF pair split across chunks", func() {
			events, err := dec.Feed("event: message_stop\r")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())

			events, err = dec.Feed("\ndata: {}\r\n\r")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())

			events, err = dec.Feed("\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("accepts lone CR line endings", func() {
			events, err := dec.Feed("event: message_stop\rdata: {}\r\revent: message_stop\r")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("skips keep-alive blank lines and comments", func() {
			events, err := dec.Feed("\n\n: ping\n\n" + deltaFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("ignores unknown fields", func() {
			events, err := dec.Feed("retry: 3000\nfoo: bar\n" + deltaFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("drops frames that carry only id or retry fields", func() {
			events, err := dec.Feed("id: 5\n\nretry: 3000\n\nid: 6\nretry: 10\n\n" + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]testEvent{{Kind: "message_stop", Data: "{}"}}))
		})

		It("uses the last event line of a frame", func() {
			events, err := dec.Feed("event: error\nevent: message_stop\ndata: {}\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events[0].Kind).To(Equal("message_stop"))
		})
	})

	Describe("order preservation", func() {
		It("emits every frame in order for any chunking", func() {
			stream := startFrame + deltaFrame + deltaFrame + stopFrame

			for size := 1; size <= len(stream); size++ {
				d := newTestDecoder()
				var kinds []string
				for off := 0; off < len(stream); off += size {
					end := min(off+size, len(stream))
					events, err := d.Feed(stream[off:end])
					Expect(err).NotTo(HaveOccurred())
					for _, ev := range events {
						kinds = append(kinds, ev.Kind)
					}
				}

				Expect(kinds).To(Equal([]string{
					"message_start",
					"content_block_delta",
					"content_block_delta",
					"message_stop",
				}), "chunk size %d", size)
			}
		})
	})

	Describe("chunk-boundary insensitivity", func() {
		It("yields the same event for a frame split at any offset", func() {
			whole, err := newTestDecoder().Feed(deltaFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(whole).To(HaveLen(1))

			for i := 0; i <= len(deltaFrame); i++ {
				d := newTestDecoder()
				first, err := d.Feed(deltaFrame[:i])
				Expect(err).NotTo(HaveOccurred())
				second, err := d.Feed(deltaFrame[i:])
				Expect(err).NotTo(HaveOccurred())

				Expect(append(first, second...)).To(Equal(whole), "split at %d", i)
			}
		})
	})

	Describe("failures", func() {
		It("reports a frame without an event line as missing event kind", func() {
			events, err := dec.Feed("data: {\"x\":1}\n\n")
			Expect(events).To(BeEmpty())
			Expect(err).To(MatchError(ErrMissingEventKind))

			var fe *FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Seq).To(Equal(1))
			Expect(fe.Raw).To(Equal("data: {\"x\":1}"))
		})

		It("reports non-JSON data as invalid payload", func() {
			_, err := dec.Feed("event: error\ndata: not-json\n\n")
			Expect(err).To(MatchError(ErrInvalidPayload))

			var fe *FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Event).To(Equal("error"))
		})

		It("reports an event line with no data as invalid payload", func() {
			_, err := dec.Feed("event: message_stop\n\n")
			Expect(err).To(MatchError(ErrInvalidPayload))
		})

		It("advances past a malformed frame and keeps decoding", func() {
			events, err := dec.Feed("data: {}\n\n" + deltaFrame)
			Expect(err).To(MatchError(ErrMissingEventKind))
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal("content_block_delta"))

			events, err = dec.Feed(stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("joins errors from several malformed frames", func() {
			_, err := dec.Feed("data: {}\n\nevent: error\ndata: nope\n\n")
			Expect(err).To(MatchError(ErrMissingEventKind))
			Expect(err).To(MatchError(ErrInvalidPayload))
		})

		It("surfaces dispatch errors as frame errors", func() {
			boom := errors.New("boom")
			d := NewDecoder(func(string, json.RawMessage) (testEvent, bool, error) {
				return testEvent{}, false, boom
			})

			_, err := d.Feed(deltaFrame)
			Expect(err).To(MatchError(boom))

			var fe *FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
		})
	})

	Describe("multi-line data", func() {
		It("concatenates data lines with no separator", func() {
			events, err := dec.Feed("event: message_start\ndata: {\"a\":1,\ndata: \"b\":2}\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events[0].Data).To(Equal(`{"a":1,"b":2}`))
		})

		It("loses the line break between data lines", func() {
			events, err := dec.Feed("event: message_start\ndata: \"ab\ndata: cd\"\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events[0].Data).To(Equal(`"abcd"`))
		})

		It("joins with a newline when configured", func() {
			d := newTestDecoder(WithDataSeparator("\n"))
			events, err := d.Feed("event: message_start\ndata: {\"a\":\ndata: 1}\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events[0].Data).To(Equal("{\"a\":\n1}"))
		})
	})

	Describe("unknown event kinds", func() {
		It("drops the frame without error", func() {
			events, err := dec.Feed("event: totally_unknown_kind\ndata: {\"x\":1}\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("logs the dropped frame at debug level", func() {
			var buf bytes.Buffer
			l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
			d := newTestDecoder(WithLogger(l))

			_, err := d.Feed("event: totally_unknown_kind\ndata: {}\n\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("totally_unknown_kind"))
		})

		It("reports the frame in strict mode", func() {
			d := newTestDecoder(WithStrictKinds(true))
			events, err := d.Feed("event: totally_unknown_kind\ndata: {}\n\n" + stopFrame)
			Expect(err).To(MatchError(ErrUnknownEventKind))
			Expect(events).To(HaveLen(1))
		})
	})

	Describe("Reset", func() {
		It("behaves like a new decoder after a partial frame", func() {
			_, err := dec.Feed("event: error\ndata: {\"mess")
			Expect(err).NotTo(HaveOccurred())

			dec.Reset()
			Expect(dec.Buffered()).To(BeZero())

			got, gotErr := dec.Feed(deltaFrame)
			want, wantErr := newTestDecoder().Feed(deltaFrame)
			Expect(gotErr).NotTo(HaveOccurred())
			Expect(wantErr).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		})

		It("restarts frame numbering", func() {
			_, err := dec.Feed(startFrame + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			dec.Reset()

			_, err = dec.Feed("data: {}\n\n")
			var fe *FrameError
			Expect(errors.As(err, &fe)).To(BeTrue())
			Expect(fe.Seq).To(Equal(1))
		})
	})

	Describe("Flush", func() {
		It("decodes an unterminated trailing frame", func() {
			_, err := dec.Feed("event: message_stop\ndata: {}")
			Expect(err).NotTo(HaveOccurred())

			events, err := dec.Flush()
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
			Expect(dec.Buffered()).To(BeZero())
		})

		It("treats a pre-segmented chunk as one frame", func() {
			_, err := dec.Feed("event: content_block_delta\r\ndata: {\"text\":\"hi\"}\r")
			Expect(err).NotTo(HaveOccurred())

			events, err := dec.Flush()
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]testEvent{
				{Kind: "content_block_delta", Data: `{"text":"hi"}`},
			}))
		})

		It("returns nothing for an empty buffer", func() {
			events, err := dec.Flush()
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())
		})

		It("reports a malformed trailing frame", func() {
			_, err := dec.Feed("data: {}")
			Expect(err).NotTo(HaveOccurred())

			_, err = dec.Flush()
			Expect(err).To(MatchError(ErrMissingEventKind))
		})
	})

	Describe("WithMaxFrameBytes", func() {
		It("discards an oversized incomplete frame", func() {
			d := newTestDecoder(WithMaxFrameBytes(32))
			_, err := d.Feed("event: content_block_delta\ndata: " + strings.Repeat("x", 64))
			Expect(err).To(MatchError(ErrFrameTooLarge))
			Expect(d.Buffered()).To(BeZero())

			events, err := d.Feed("\n\n" + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("skips the tail of an oversized frame without a second error", func() {
			d := newTestDecoder(WithMaxFrameBytes(32))
			_, err := d.Feed("event: content_block_delta\ndata: " + strings.Repeat("x", 64))
			Expect(err).To(MatchError(ErrFrameTooLarge))

			events, err := d.Feed("yyy\ndata: {\"more\":1}\n\n" + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]testEvent{{Kind: "message_stop", Data: "{}"}}))
		})

		It("reports a frame that keeps growing only once", func() {
			d := newTestDecoder(WithMaxFrameBytes(16))
			_, err := d.Feed("event: content_block_delta\ndata: " + strings.Repeat("x", 32))
			Expect(err).To(MatchError(ErrFrameTooLarge))

			for range 4 {
				_, err = d.Feed(strings.Repeat("y", 32))
				Expect(err).NotTo(HaveOccurred())
			}

			events, err := d.Feed("\n\n" + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("does not end discarding on the LF of a split CRLF", func() {
			d := newTestDecoder(WithMaxFrameBytes(16))
			_, err := d.Feed("event: content_block_delta\r\ndata: " + strings.Repeat("x", 32) + "\r")
			Expect(err).To(MatchError(ErrFrameTooLarge))

			events, err := d.Feed("\ndata: {}\r\n\r\n" + stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(Equal([]testEvent{{Kind: "message_stop", Data: "{}"}}))
		})

		It("drops a discarded tail on Flush", func() {
			d := newTestDecoder(WithMaxFrameBytes(16))
			_, err := d.Feed("event: content_block_delta\ndata: " + strings.Repeat("x", 32))
			Expect(err).To(MatchError(ErrFrameTooLarge))

			events, err := d.Flush()
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(BeEmpty())

			events, err = d.Feed(stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("stops discarding after Reset", func() {
			d := newTestDecoder(WithMaxFrameBytes(16))
			_, err := d.Feed("event: content_block_delta\ndata: " + strings.Repeat("x", 32))
			Expect(err).To(MatchError(ErrFrameTooLarge))

			d.Reset()
			events, err := d.Feed(stopFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("does not limit frames that complete within the chunk", func() {
			d := newTestDecoder(WithMaxFrameBytes(8))
			events, err := d.Feed(deltaFrame)
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})
	})
})
