package eventstreamutils

import (
	"log/slog"

	"github.com/wso2/copilotsse/pkg/eventstream"
	"github.com/wso2/copilotsse/pkg/eventstream/kafka"
	"github.com/wso2/copilotsse/pkg/eventstream/nop"
)

type NewPublisherOpts struct {
	KafkaBrokers []string
	KafkaTopic   string
	Logger       *slog.Logger
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	if len(o.KafkaBrokers) == 0 {
		return nop.NewPublisher(), nil
	}

	return kafka.NewPublisher(kafka.Config{
		Brokers: o.KafkaBrokers,
		Topic:   o.KafkaTopic,
		Logger:  o.Logger,
	})
}
