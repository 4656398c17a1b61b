// Package storagetest holds the behaviour every storage.Driver must share,
// written as ginkgo specs the driver packages run against their backend.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo DSL
	. "github.com/onsi/gomega"    //nolint:revive // gomega DSL

	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/storage"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Event builds a stored event for tests. Events of the same stream get
// timestamps one second apart per seq.
func Event(streamID string, seq int, kind string) *eventstream.StreamEvent {
	return &eventstream.StreamEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeDecoded,
		EventID:       fmt.Sprintf("%s-%03d", streamID, seq),
		EmittedAt:     base.Add(time.Duration(seq) * time.Second),
		StreamID:      streamID,
		Seq:           seq,
		Kind:          kind,
		Payload:       json.RawMessage(fmt.Sprintf(`{"index":%d}`, seq)),
	}
}

// DriverSpecs registers the shared driver specs. newDriver is called before
// every spec and must return an empty store.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() {
			Expect(driver.Close()).To(Succeed())
		})
	})

	Describe("Put", func() {
		It("reports new inserts", func() {
			inserted, err := driver.Put(ctx, Event("s1", 1, "message_start"))
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())
		})

		It("deduplicates on event ID", func() {
			ev := Event("s1", 1, "message_start")

			_, err := driver.Put(ctx, ev)
			Expect(err).NotTo(HaveOccurred())

			inserted, err := driver.Put(ctx, ev)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			events, err := driver.Events(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))
		})

		It("rejects nil events", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilEvent))
		})
	})

	Describe("Events", func() {
		It("returns a stream's events ordered by seq", func() {
			for _, seq := range []int{3, 1, 2} {
				_, err := driver.Put(ctx, Event("s1", seq, "content_block_delta"))
				Expect(err).NotTo(HaveOccurred())
			}
			_, err := driver.Put(ctx, Event("s2", 1, "message_start"))
			Expect(err).NotTo(HaveOccurred())

			events, err := driver.Events(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(3))
			for i, ev := range events {
				Expect(ev.Seq).To(Equal(i + 1))
				Expect(ev.StreamID).To(Equal("s1"))
			}
		})

		It("round-trips every envelope field", func() {
			want := Event("s1", 7, "error")

			_, err := driver.Put(ctx, want)
			Expect(err).NotTo(HaveOccurred())

			events, err := driver.Events(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(events).To(HaveLen(1))

			got := events[0]
			Expect(got.EventID).To(Equal(want.EventID))
			Expect(got.SchemaVersion).To(Equal(want.SchemaVersion))
			Expect(got.EventType).To(Equal(want.EventType))
			Expect(got.Kind).To(Equal(want.Kind))
			Expect(got.Seq).To(Equal(want.Seq))
			Expect(got.EmittedAt.Equal(want.EmittedAt)).To(BeTrue())
			Expect(got.Payload).To(MatchJSON(want.Payload))
		})

		It("returns ErrNotFound for unknown streams", func() {
			_, err := driver.Events(ctx, "missing")

			var notFound storage.ErrNotFound
			Expect(errors.As(err, &notFound)).To(BeTrue())
			Expect(notFound.StreamID).To(Equal("missing"))
		})
	})

	Describe("Streams", func() {
		It("returns nothing for an empty store", func() {
			streams, err := driver.Streams(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(streams).To(BeEmpty())
		})

		It("summarizes streams, most recently active first", func() {
			for seq := 1; seq <= 3; seq++ {
				_, err := driver.Put(ctx, Event("older", seq, "content_block_delta"))
				Expect(err).NotTo(HaveOccurred())
			}
			for seq := 1; seq <= 5; seq++ {
				_, err := driver.Put(ctx, Event("newer", seq, "content_block_delta"))
				Expect(err).NotTo(HaveOccurred())
			}

			streams, err := driver.Streams(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(streams).To(HaveLen(2))

			Expect(streams[0].StreamID).To(Equal("newer"))
			Expect(streams[0].Events).To(Equal(5))
			Expect(streams[0].FirstSeen.Equal(base.Add(time.Second))).To(BeTrue())
			Expect(streams[0].LastSeen.Equal(base.Add(5 * time.Second))).To(BeTrue())

			Expect(streams[1].StreamID).To(Equal("older"))
			Expect(streams[1].Events).To(Equal(3))
		})
	})
}
