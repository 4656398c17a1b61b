package cliui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/wso2/copilotsse/pkg/copilot"
	"github.com/wso2/copilotsse/pkg/sse"
	"github.com/wso2/copilotsse/pkg/utils"
)

// EventLine formats one decoded event as a single styled line:
// the sequence number, the kind, and the event payload as JSON.
func EventLine(seq int, ev copilot.Event) string {
	payload, err := json.Marshal(ev)
	if err != nil {
		payload = []byte(fmt.Sprintf("%+v", ev))
	}

	return fmt.Sprintf("%s %s %s",
		DimStyle.Render(fmt.Sprintf("%4d", seq)),
		KeyStyle.Render(string(ev.Kind())),
		ValueStyle.Render(string(payload)),
	)
}

// FrameErrorLine formats a frame that failed to decode.
func FrameErrorLine(fe *sse.FrameError) string {
	kind := fe.Event
	if kind == "" {
		kind = "<no event>"
	}

	line := fmt.Sprintf("%s %s %s %s",
		DimStyle.Render(fmt.Sprintf("%4d", fe.Seq)),
		FailMark,
		WarnStyle.Render(kind),
		fe.Err,
	)
	if fe.Raw != "" {
		line += " " + DimStyle.Render(utils.Truncate(fe.Raw, 60))
	}
	return line
}

// PrintTranscript writes a summary of t followed by its content. When render
// is set the content goes through RenderMarkdown so code blocks are
// highlighted; rendering failures fall back to the raw text.
func PrintTranscript(w io.Writer, t *copilot.Transcript, render bool) {
	fmt.Fprintln(w)
	summary := []string{
		KeyStyle.Render("events") + " " + ValueStyle.Render(fmt.Sprint(t.Events)),
		KeyStyle.Render("blocks") + " " + ValueStyle.Render(fmt.Sprint(t.Blocks)),
	}
	if t.Model != "" {
		summary = append(summary, KeyStyle.Render("model")+" "+ValueStyle.Render(t.Model))
	}
	if t.StopReason != "" {
		summary = append(summary, KeyStyle.Render("stop")+" "+ValueStyle.Render(t.StopReason))
	}
	if t.Usage.InputTokens > 0 || t.Usage.OutputTokens > 0 {
		summary = append(summary, KeyStyle.Render("tokens")+" "+
			ValueStyle.Render(fmt.Sprintf("%d in / %d out", t.Usage.InputTokens, t.Usage.OutputTokens)))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(summary, DimStyle.Render("  ·  ")))

	if !t.Done {
		fmt.Fprintf(w, "  %s\n", WarnStyle.Render("stream ended before message_stop"))
	}
	for _, msg := range t.Errors {
		fmt.Fprintf(w, "  %s %s\n", FailMark, msg)
	}
	fmt.Fprintln(w)

	content := t.Content
	if render && content != "" {
		if rendered, err := RenderMarkdown(content); err == nil {
			content = rendered
		}
	}
	fmt.Fprintln(w, content)
}
