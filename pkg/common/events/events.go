// Package events publishes pipeline notifications to the configured sink.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/NKI-AI/dicom-warehouse/pkg/common/config"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/errs"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/kafka"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/logger"
	"github.com/NKI-AI/dicom-warehouse/pkg/common/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const Source = "dcmw"

type Publisher interface {
	Publish(ctx context.Context, eventType string, data map[string]interface{}) error
	Close() error
}

// FromConfig builds the publisher named by EVENT_SINK.
func FromConfig(ctx context.Context, cfg *config.Config) (Publisher, error) {
	switch strings.ToLower(cfg.EventSink) {
	case "", "none":
		return Nop{}, nil
	case "kafka":
		return kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, Source), nil
	case "sqs":
		return NewSQSPublisher(ctx, cfg.SQSQueueName)
	}
	return nil, errs.NewConfigurationError(fmt.Errorf("unsupported EVENT_SINK %q", cfg.EventSink))
}

// PublishQuietly logs publish failures instead of returning them. Notifications never fail a unit.
func PublishQuietly(ctx context.Context, p Publisher, eventType string, data map[string]interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, eventType, data); err != nil {
		logger.Log.WithError(err).WithField("event_type", eventType).Warn("Event not delivered")
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, string, map[string]interface{}) error { return nil }
func (Nop) Close() error                                                  { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []models.Event
}

func (r *Recorder) Publish(_ context.Context, eventType string, data map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, kafka.NewEvent(eventType, Source, data))
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) OfType(eventType string) []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Event
	for _, e := range r.Events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type SQSPublisher struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSPublisher(ctx context.Context, queueName string) (*SQSPublisher, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})

	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: &queueName})
	if err != nil {
		return nil, fmt.Errorf("get SQS queue URL: %w", err)
	}
	return &SQSPublisher{client: client, queueURL: *resp.QueueUrl}, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, eventType string, data map[string]interface{}) error {
	event := kafka.NewEvent(eventType, Source, data)
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &p.queueURL,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event-type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("send SQS message: %w", err)
	}
	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"event_type": eventType,
	}).Debug("Event published")
	return nil
}

func (p *SQSPublisher) Close() error { return nil }
