package storage

import (
	"context"
	"fmt"

	"github.com/wso2/copilotsse/pkg/copilot"
)

// Transcript assembles the reply recorded under streamID by replaying its
// events in sequence order.
func Transcript(ctx context.Context, d Driver, reg *copilot.Registry, streamID string) (*copilot.Transcript, error) {
	events, err := d.Events(ctx, streamID)
	if err != nil {
		return nil, err
	}

	t := &copilot.Transcript{}
	for _, env := range events {
		ev, err := env.Decode(reg)
		if err != nil {
			return nil, fmt.Errorf("replaying event %d of stream %s: %w", env.Seq, streamID, err)
		}
		t.Apply(ev)
	}

	return t, nil
}
