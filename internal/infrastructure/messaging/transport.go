package messaging

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Transport supplies the bus with a publisher and one subscriber per consumer.
type Transport interface {
	Publisher() message.Publisher
	// Subscriber returns a subscriber for the named consumer. Every consumer
	// receives its own copy of each message on a topic.
	Subscriber(consumer string) (message.Subscriber, error)
	Close() error
}

// GoChannelTransport keeps messages in process. Messages published while a topic has
// no subscriber are dropped, so the router must be running before the first publish.
type GoChannelTransport struct {
	ch *gochannel.GoChannel
}

func NewGoChannelTransport(logger *slog.Logger) *GoChannelTransport {
	return &GoChannelTransport{
		ch: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewSlogLogger(logger)),
	}
}

func (t *GoChannelTransport) Publisher() message.Publisher { return t.ch }

func (t *GoChannelTransport) Subscriber(string) (message.Subscriber, error) { return t.ch, nil }

func (t *GoChannelTransport) Close() error { return t.ch.Close() }

// KafkaTransport maps each consumer to its own consumer group.
type KafkaTransport struct {
	brokers []string
	logger  watermill.LoggerAdapter
	pub     *kafka.Publisher

	mu   sync.Mutex
	subs []*kafka.Subscriber
}

func NewKafkaTransport(brokers []string, logger *slog.Logger) (*KafkaTransport, error) {
	wl := watermill.NewSlogLogger(logger)
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:   brokers,
		Marshaler: kafka.DefaultMarshaler{},
	}, wl)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return &KafkaTransport{brokers: brokers, logger: wl, pub: pub}, nil
}

func (t *KafkaTransport) Publisher() message.Publisher { return t.pub }

func (t *KafkaTransport) Subscriber(consumer string) (message.Subscriber, error) {
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:       t.brokers,
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: consumer,
	}, t.logger)
	if err != nil {
		return nil, fmt.Errorf("kafka subscriber %s: %w", consumer, err)
	}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return sub, nil
}

func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var firstErr error
	for _, s := range t.subs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := t.pub.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
