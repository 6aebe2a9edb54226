package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/infrastructure/telemetry"
	"arc72scan/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopicPrefix = "arc72-transfers"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes every scanned round to the network's topic.
type Producer struct {
	writer messageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = defaultTopicPrefix
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           500 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer, prefix: cfg.TopicPrefix}, nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishRound writes the accepted transfers followed by a round marker.
func (p *Producer) PublishRound(ctx context.Context, result application.RoundResult) error {
	ctx, span := otel.Tracer("arc72scan/kafka").Start(ctx, "kafka.publish_round", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	topic := p.Topic(result.Network)
	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", topic),
		attribute.Int64("round", int64(result.Round)),
		attribute.Int("transfer.count", len(result.Events)),
	)

	messages, err := p.buildMessages(ctx, topic, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := p.writer.WriteMessages(ctx, messages...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Producer) buildMessages(ctx context.Context, topic string, result application.RoundResult) ([]kafka.Message, error) {
	headers := telemetry.KafkaHeaders(ctx)
	payloads := streaming.FromRound(result, telemetry.TraceIDFromContext(ctx))
	messages := make([]kafka.Message, 0, len(payloads))
	for _, msg := range payloads {
		value, err := streaming.Encode(msg)
		if err != nil {
			return nil, err
		}
		messages = append(messages, kafka.Message{
			Topic:   topic,
			Key:     []byte(msg.Key()),
			Value:   value,
			Headers: headers,
		})
	}
	return messages, nil
}

func (p *Producer) Topic(network string) string {
	return p.prefix + "-" + network
}
