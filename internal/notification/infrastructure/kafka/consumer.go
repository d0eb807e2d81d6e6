package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/museo-app/marketplace/internal/notification/domain"
	"github.com/museo-app/marketplace/pkg/idempotency"
	"github.com/museo-app/marketplace/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

type Consumer struct {
	log        *slog.Logger
	reader     Reader
	svc        Deliverer
	idem       *idempotency.Store
	tracer     trace.Tracer
	firstRetry time.Duration
	maxRetry   time.Duration
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, svc Deliverer, idem *idempotency.Store) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("notification-consumer"),

		firstRetry: 500 * time.Millisecond,
		maxRetry:   30 * time.Second,
	}
}

// Run consumes until ctx is cancelled. Offsets are committed per partition,
// so a message is never skipped: a delivery that fails for a transient
// reason is retried in place until it succeeds or ctx ends, and only then is
// the next message fetched.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.firstRetry
	b.MaxInterval = c.maxRetry
	b.MaxElapsedTime = 0

	key := c.messageKey(msg)
	attempt := 0
	stale := false
	op := func() error {
		attempt++
		// A failed attempt already claimed key; release it or the retry
		// would be skipped as a duplicate.
		if stale {
			if err := c.idem.Forget(ctx, key); err != nil {
				return err
			}
			stale = false
		}
		claimed, err := c.process(ctx, msg, key)
		if err != nil && claimed {
			stale = true
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("notification delivery retrying", "offset", msg.Offset, "attempt", attempt, "wait", wait, "err", err)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		if stale {
			if ferr := c.idem.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				c.log.Warn("idempotency forget failed", "key", key, "err", ferr)
			}
		}
		return err
	}
	c.commit(ctx, msg)
	return nil
}

// process returns a nil error when msg is done with, whether delivered, a
// duplicate or unusable. Any error means it must be tried again; claimed
// reports whether key was set by this attempt.
func (c *Consumer) process(ctx context.Context, msg kafka.Message, key string) (claimed bool, err error) {
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		return false, err
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return false, nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeNotification",
		trace.WithAttributes(attribute.String("event.type", tracing.HeaderValue(msg.Headers, "event_type"))))
	defer span.End()

	var n domain.Notification
	if err := json.Unmarshal(msg.Value, &n); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		return true, nil
	}

	if err := c.svc.Deliver(msgCtx, n); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deliver failed")
		if errors.Is(err, domain.ErrMalformed) {
			c.log.Error("malformed notification dropped", "offset", msg.Offset, "err", err)
			return true, nil
		}
		return true, err
	}
	return true, nil
}

// messageKey prefers the producer's dedupe key so an event relayed twice by
// the outbox is still recognised.
func (c *Consumer) messageKey(msg kafka.Message) string {
	if k := tracing.HeaderValue(msg.Headers, "dedupe_key"); k != "" {
		return "idem:notification:" + k
	}
	return c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Warn("commit failed", "offset", msg.Offset, "err", err)
	}
}
