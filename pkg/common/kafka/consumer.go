package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultAttempts  = 5
	defaultBaseDelay = 500 * time.Millisecond
	maxDelay         = 30 * time.Second
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader    messageReader
	attempts  int
	baseDelay time.Duration
}

type EventHandler func(ctx context.Context, event models.Event) error

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	return &Consumer{reader: reader, attempts: defaultAttempts, baseDelay: defaultBaseDelay}
}

// Consume hands every event to handler until ctx is cancelled.
//
// A failing handler is retried with exponential backoff. When every attempt fails, Consume
// returns without committing the message; the group offset stays before it, so a consumer
// that rejoins the group receives it again. Committing a later message would cover it.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			message, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				logger.Log.WithError(err).Error("Failed to fetch message")
				continue
			}

			var event models.Event
			if err := json.Unmarshal(message.Value, &event); err != nil {
				logger.Log.WithError(err).Error("Failed to unmarshal event")
				c.reader.CommitMessages(ctx, message)
				continue
			}

			fields := logrus.Fields{
				"event_id":   event.ID,
				"event_type": event.Type,
				"offset":     message.Offset,
			}
			attempt := 0
			err = retry(ctx, c.attempts, c.baseDelay, func() error {
				attempt++
				err := handler(ctx, event)
				if err != nil {
					logger.Log.WithError(err).WithFields(fields).WithField("attempt", attempt).Warn("Failed to process event")
				}
				return err
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("event %s at offset %d: %w", event.ID, message.Offset, err)
			}

			if err := c.reader.CommitMessages(ctx, message); err != nil {
				logger.Log.WithError(err).Error("Failed to commit message")
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// retry runs fn up to attempts times, doubling the delay between attempts up to maxDelay.
func retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 1 {
		return fn()
	}

	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	return err
}
