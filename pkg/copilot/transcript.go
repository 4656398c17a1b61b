package copilot

// Transcript is the reply assembled from a stream of events.
type Transcript struct {
	MessageID  string   `json:"message_id,omitempty"`
	Model      string   `json:"model,omitempty"`
	Content    string   `json:"content"`
	StopReason string   `json:"stop_reason,omitempty"`
	Usage      Usage    `json:"usage"`
	Errors     []string `json:"errors,omitempty"`
	Blocks     int      `json:"blocks"`
	Events     int      `json:"events"`
	Done       bool     `json:"done"`
}

// Apply folds ev into the transcript.
func (t *Transcript) Apply(ev Event) {
	t.Events++

	switch e := ev.(type) {
	case MessageStart:
		t.MessageID = e.ID
		t.Model = e.Model
		t.mergeUsage(e.Usage)
	case ContentBlockStart:
		t.Blocks++
	case ContentBlockDelta:
		t.Content += e.Text
	case ContentBlockStop:
	case MessageDelta:
		if e.StopReason != "" {
			t.StopReason = e.StopReason
		}
		t.mergeUsage(e.Usage)
	case MessageStop:
		if e.StopReason != "" {
			t.StopReason = e.StopReason
		}
		t.mergeUsage(e.Usage)
		t.Done = true
	case ErrorEvent:
		t.Errors = append(t.Errors, e.Message)
	}
}

// HasCodeBlocks reports whether the assembled content contains a code block.
func (t *Transcript) HasCodeBlocks() bool {
	return HasCodeBlocks(t.Content)
}

// Failed reports whether the backend raised an error event.
func (t *Transcript) Failed() bool {
	return len(t.Errors) > 0
}

// mergeUsage keeps the latest non-zero counts; input usage usually arrives
// with message_start and output usage at the end of the reply.
func (t *Transcript) mergeUsage(u *Usage) {
	if u == nil {
		return
	}
	if u.InputTokens > 0 {
		t.Usage.InputTokens = u.InputTokens
	}
	if u.OutputTokens > 0 {
		t.Usage.OutputTokens = u.OutputTokens
	}
}
