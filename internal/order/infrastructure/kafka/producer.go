package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// NewWriter returns a producer for the outbox dispatcher. Messages carry
// their own topic; keys are hashed so one recipient's notices keep their
// order.
func NewWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}
