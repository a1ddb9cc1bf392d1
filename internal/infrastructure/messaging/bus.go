package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/go-healthcare-api/internal/domain"
)

const (
	TopicUserRegistered       = "user.registered"
	TopicSendVerificationCode = "jobs.send_verification_code"
	TopicFailedJobs           = "jobs.failed"
)

type Config struct {
	MaxRetries    int
	RetryInterval time.Duration
}

// Bus publishes domain events and jobs and runs their handlers on a watermill router.
// A handler error is retried with exponential backoff; once retries are exhausted the
// message is moved to TopicFailedJobs and logged.
type Bus struct {
	transport Transport
	router    *message.Router
	logger    *slog.Logger
}

func NewBus(t Transport, cfg Config, logger *slog.Logger) (*Bus, error) {
	wl := watermill.NewSlogLogger(logger)
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 15 * time.Second}, wl)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}
	poison, err := middleware.PoisonQueue(t.Publisher(), TopicFailedJobs)
	if err != nil {
		return nil, fmt.Errorf("poison queue: %w", err)
	}
	router.AddMiddleware(
		poison,
		middleware.Retry{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInterval,
			MaxInterval:     cfg.RetryInterval * 8,
			Multiplier:      2,
			Logger:          wl,
		}.Middleware,
		middleware.Recoverer,
	)

	b := &Bus{transport: t, router: router, logger: logger}
	if err := b.subscribe("failed-jobs", TopicFailedJobs, b.logFailed); err != nil {
		return nil, err
	}
	return b, nil
}

// Dispatch publishes e to TopicUserRegistered.
func (b *Bus) Dispatch(ctx context.Context, e domain.UserRegistered) error {
	return b.publish(ctx, TopicUserRegistered, e)
}

// Enqueue publishes job to TopicSendVerificationCode.
func (b *Bus) Enqueue(ctx context.Context, job domain.SendVerificationCodeJob) error {
	return b.publish(ctx, TopicSendVerificationCode, job)
}

func (b *Bus) OnUserRegistered(name string, fn func(context.Context, domain.UserRegistered) error) error {
	return subscribe(b, name, TopicUserRegistered, fn)
}

func (b *Bus) OnSendVerificationCode(name string, fn func(context.Context, domain.SendVerificationCodeJob) error) error {
	return subscribe(b, name, TopicSendVerificationCode, fn)
}

// Run blocks until ctx is cancelled or the router is closed.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Running is closed once every handler is subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.transport.Close()
}

func (b *Bus) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.SetContext(ctx)
	if err := b.transport.Publisher().Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (b *Bus) subscribe(name, topic string, h message.NoPublishHandlerFunc) error {
	sub, err := b.transport.Subscriber(name)
	if err != nil {
		return err
	}
	b.router.AddNoPublisherHandler(name, topic, sub, h)
	return nil
}

func subscribe[T any](b *Bus, name, topic string, fn func(context.Context, T) error) error {
	return b.subscribe(name, topic, func(msg *message.Message) error {
		var v T
		if err := json.Unmarshal(msg.Payload, &v); err != nil {
			return fmt.Errorf("decode %s: %w", topic, err)
		}
		return fn(msg.Context(), v)
	})
}

func (b *Bus) logFailed(msg *message.Message) error {
	b.logger.Error("job moved to failed queue",
		"message_id", msg.UUID,
		"topic", msg.Metadata.Get(middleware.PoisonedTopicKey),
		"handler", msg.Metadata.Get(middleware.PoisonedHandlerKey),
		"reason", msg.Metadata.Get(middleware.ReasonForPoisonedKey),
	)
	return nil
}
