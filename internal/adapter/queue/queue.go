package queue

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/energy-sentinel/pkg/config"
)

// MessageQueue defines the interface for a message queue adapter
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}

// New connects to the broker selected by cfg.Driver.
func New(cfg config.QueueConfig, log *zap.Logger) (MessageQueue, error) {
	switch cfg.Driver {
	case "nats":
		return NewNATSQueue(cfg.NATSURL, log)
	case "rabbitmq":
		return NewRabbitMQQueue(cfg.RabbitMQURL, log)
	case "", "none":
		log.Info("Message queue disabled, events will be dropped")
		return NoopQueue{}, nil
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
}

// NoopQueue drops every message. Subscriptions never fire.
type NoopQueue struct{}

func (NoopQueue) Publish(string, []byte) error                  { return nil }
func (NoopQueue) Subscribe(string, func(data []byte) error) error { return nil }
func (NoopQueue) Close() error                                   { return nil }
