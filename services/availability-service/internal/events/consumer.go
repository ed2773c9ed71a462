package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/detailbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/detailbook/libs/otel"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultPricingTopic = "detailbook.pricing.changed.v1"

// PricingChanged announces that the active price of a pair was edited.
type PricingChanged struct {
	VehicleSize string `json:"vehicle_size"`
	ServiceType string `json:"service_type"`
}

// PriceInvalidator is satisfied by *storage.PriceCache.
type PriceInvalidator interface {
	Invalidate(ctx context.Context, vehicleSize, serviceType string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ConsumerConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// PricingConsumer drops cached prices when pricing changes are published.
type PricingConsumer struct {
	reader  messageReader
	cache   PriceInvalidator
	logger  *slog.Logger
	tracer  trace.Tracer
	backoff time.Duration
}

func NewPricingConsumer(logger *slog.Logger, cache PriceInvalidator, cfg ConsumerConfig) *PricingConsumer {
	if cfg.Topic == "" {
		cfg.Topic = DefaultPricingTopic
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "availability-service"
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 1e6,
	})
	return newPricingConsumer(reader, cache, logger)
}

func newPricingConsumer(reader messageReader, cache PriceInvalidator, logger *slog.Logger) *PricingConsumer {
	return &PricingConsumer{
		reader:  reader,
		cache:   cache,
		logger:  logger,
		tracer:  otelx.Tracer("events"),
		backoff: time.Second,
	}
}

func (c *PricingConsumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka read error", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			meta := kafkax.ExtractEventMeta(msg)
			c.logger.Error("pricing event handling failed", "err", err, "event_id", meta.EventID)
		}
	}
}

var errInvalidPricingEvent = errors.New("invalid pricing event")

func (c *PricingConsumer) handle(ctx context.Context, msg kafka.Message) error {
	ctx = kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := c.tracer.Start(ctx, "kafka.consume", trace.WithAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", msg.Topic),
	))
	defer span.End()

	var ev PricingChanged
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return errInvalidPricingEvent
	}
	ev.VehicleSize = strings.TrimSpace(ev.VehicleSize)
	ev.ServiceType = strings.TrimSpace(ev.ServiceType)
	if ev.VehicleSize == "" || ev.ServiceType == "" {
		return errInvalidPricingEvent
	}
	if err := c.cache.Invalidate(ctx, ev.VehicleSize, ev.ServiceType); err != nil {
		span.RecordError(err)
		return err
	}
	c.logger.Debug("price cache invalidated", "vehicle_size", ev.VehicleSize, "service_type", ev.ServiceType)
	return nil
}
