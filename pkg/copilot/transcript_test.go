package copilot_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/wso2/copilotsse/pkg/copilot"
)

var _ = Describe("Transcript", func() {
	It("assembles a complete reply", func() {
		t := &copilot.Transcript{}
		for _, ev := range []copilot.Event{
			copilot.MessageStart{ID: "msg_1", Model: "copilot-v2", Usage: &copilot.Usage{InputTokens: 10}},
			copilot.ContentBlockStart{Index: 0, Type: "text"},
			copilot.ContentBlockDelta{Index: 0, Text: "Use "},
			copilot.ContentBlockDelta{Index: 0, Text: "<code>log:println()</code>"},
			copilot.ContentBlockStop{Index: 0},
			copilot.MessageDelta{StopReason: "end_turn", Usage: &copilot.Usage{OutputTokens: 7}},
			copilot.MessageStop{},
		} {
			t.Apply(ev)
		}

		Expect(t.MessageID).To(Equal("msg_1"))
		Expect(t.Model).To(Equal("copilot-v2"))
		Expect(t.Content).To(Equal("Use <code>log:println()</code>"))
		Expect(t.StopReason).To(Equal("end_turn"))
		Expect(t.Usage).To(Equal(copilot.Usage{InputTokens: 10, OutputTokens: 7}))
		Expect(t.Blocks).To(Equal(1))
		Expect(t.Events).To(Equal(7))
		Expect(t.Done).To(BeTrue())
		Expect(t.HasCodeBlocks()).To(BeTrue())
		Expect(t.Failed()).To(BeFalse())
	})

	It("keeps earlier usage counts when later events omit them", func() {
		t := &copilot.Transcript{}
		t.Apply(copilot.MessageStart{Usage: &copilot.Usage{InputTokens: 3, OutputTokens: 1}})
		t.Apply(copilot.MessageDelta{Usage: &copilot.Usage{OutputTokens: 9}})
		t.Apply(copilot.MessageStop{})

		Expect(t.Usage).To(Equal(copilot.Usage{InputTokens: 3, OutputTokens: 9}))
	})

	It("lets message_stop override the stop reason", func() {
		t := &copilot.Transcript{}
		t.Apply(copilot.MessageDelta{StopReason: "max_tokens"})
		t.Apply(copilot.MessageStop{StopReason: "end_turn"})

		Expect(t.StopReason).To(Equal("end_turn"))
	})

	It("records error events", func() {
		t := &copilot.Transcript{}
		t.Apply(copilot.ErrorEvent{Code: "overloaded", Message: "try again"})

		Expect(t.Failed()).To(BeTrue())
		Expect(t.Errors).To(Equal([]string{"try again"}))
		Expect(t.Done).To(BeFalse())
	})
})
