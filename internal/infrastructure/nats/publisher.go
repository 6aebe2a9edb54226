package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"arc72scan/internal/application"
	"arc72scan/internal/infrastructure/telemetry"
	"arc72scan/internal/streaming"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	StreamName      = "ARC72_TRANSFERS"
	StreamSubjects  = "arc72.transfers.*"
	StreamRetention = 30 * 24 * time.Hour
)

type msgPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher mirrors scanned rounds into a JetStream stream.
type Publisher struct {
	nc *nats.Conn
	js msgPublisher
}

func NewPublisher(ctx context.Context, url string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	nc, err := nats.Connect(url,
		nats.Name("arc72scan"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Verified ARC-72 transfers per round",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", StreamName, err)
	}
	slog.Info("nats publisher ready", "url", url, "stream", StreamName)
	return &Publisher{nc: nc, js: js}, nil
}

func Subject(network string) string {
	return "arc72.transfers." + network
}

// PublishRound publishes the round's transfers and its marker. Message ids
// make a rescan of the same round idempotent within the dedupe window.
func (p *Publisher) PublishRound(ctx context.Context, result application.RoundResult) error {
	ctx, span := otel.Tracer("arc72scan/nats").Start(ctx, "nats.publish_round", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	subject := Subject(result.Network)
	span.SetAttributes(
		attribute.String("messaging.system", "nats"),
		attribute.String("messaging.destination.name", subject),
		attribute.Int64("round", int64(result.Round)),
	)

	for _, msg := range streaming.FromRound(result, telemetry.TraceIDFromContext(ctx)) {
		payload, err := streaming.Encode(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		out := nats.NewMsg(subject)
		out.Data = payload
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(out.Header))
		if _, err := p.js.PublishMsg(ctx, out, jetstream.WithMsgID(messageID(result.Network, msg))); err != nil {
			err = fmt.Errorf("publish %s: %w", msg.Key(), err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	return nil
}

func messageID(network string, msg streaming.Message) string {
	id := network + ":" + strconv.FormatUint(msg.Round, 10) + ":" + string(msg.Type)
	if msg.Type == streaming.MessageTypeTransfer {
		id += ":" + strconv.Itoa(msg.Position)
	}
	return id
}

func (p *Publisher) Close() error {
	if p.nc != nil {
		return p.nc.Drain()
	}
	return nil
}
