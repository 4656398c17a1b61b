// Package sse decodes Server-Sent Events streams into typed events.
//
// A Decoder is fed arbitrarily chunked text as it arrives from a transport.
// It cuts the text into frames at blank lines, parses the "event:" and
// "data:" fields of each frame and hands the frame's kind and payload to a
// caller-supplied DispatchFunc, which maps them to a domain event type.
//
// This package does NOT provide SSE writer or server capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

// Frame represents a single SSE record, delimited by a blank line in the
// upstream text stream.
type Frame struct {
	// Event is the value of the "event:" field. When the field is repeated the
	// last occurrence wins.
	Event string

	// DataLines holds the trimmed value of every "data:" field in receipt order.
	DataLines []string

	// ID is the last event ID from the "id:" field, if present.
	ID string

	// Raw is the frame text as received, lines joined with "\n" and without
	// the terminating blank line.
	Raw string

	// fields is true once an event or data field has been seen. A frame
	// carrying only "id" or "retry" dispatches nothing and is dropped.
	fields bool
}

// Data joins the frame's data lines with sep.
func (f *Frame) Data(sep string) string {
	return strings.Join(f.DataLines, sep)
}

// addLine accumulates one non-blank line into the frame.
//
// A line has the form "field:value". Surrounding whitespace is trimmed from
// the value. Lines starting with ':' are comments, and unknown fields are
// ignored; both are still kept in Raw.
func (f *Frame) addLine(line string) {
	if f.Raw == "" {
		f.Raw = line
	} else {
		f.Raw += "\n" + line
	}

	if strings.HasPrefix(line, ":") {
		return
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimSpace(value)

	switch field {
	case "event":
		f.Event = value
		f.fields = true
	case "data":
		f.DataLines = append(f.DataLines, value)
		f.fields = true
	case "id":
		f.ID = value
	default:
		// "retry" and unknown fields carry nothing for decoding.
	}
}

// nextLine returns the line starting at the beginning of s and the offset just
// past its terminator. LF, CRLF and a lone CR all terminate a line. A CR at the
// very end of s is not treated as a terminator yet, since the LF of a CRLF pair
// may arrive in the next chunk.
func nextLine(s string) (string, int, bool) {
	i := strings.IndexAny(s, "\r\n")
	if i < 0 {
		return "", 0, false
	}

	if s[i] == '\r' {
		if i+1 == len(s) {
			return "", 0, false
		}
		if s[i+1] == '\n' {
			return s[:i], i + 2, true
		}
	}

	return s[:i], i + 1, true
}
