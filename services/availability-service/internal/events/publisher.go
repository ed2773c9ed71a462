package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/detailbook/libs/kafkax"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/availability"
	"github.com/md-rashed-zaman/detailbook/services/availability-service/internal/selection"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic              = "detailbook.availability.rendered.v1"
	EventAvailabilityRendered = "availability.rendered.v1"
)

// AvailabilityRendered is emitted after a session renders a day.
type AvailabilityRendered struct {
	SessionID                string `json:"session_id"`
	Date                     string `json:"date"`
	BaseDurationMinutes      int    `json:"base_duration_minutes"`
	EffectiveDurationMinutes int    `json:"effective_duration_minutes"`
	PriceCents               int    `json:"price_cents"`
	Slots                    int    `json:"slots"`
	AvailableSlots           int    `json:"available_slots"`
	RenderedAt               string `json:"rendered_at"`
}

func NewAvailabilityRendered(sessionID string, slots []availability.Slot, meta selection.RenderMeta, at time.Time) AvailabilityRendered {
	available := 0
	for _, s := range slots {
		if s.Available {
			available++
		}
	}
	return AvailabilityRendered{
		SessionID:                sessionID,
		Date:                     meta.Date.String(),
		BaseDurationMinutes:      meta.BaseDurationMinutes,
		EffectiveDurationMinutes: meta.EffectiveDurationMinutes,
		PriceCents:               meta.PriceCents,
		Slots:                    len(slots),
		AvailableSlots:           available,
		RenderedAt:               at.UTC().Format(time.RFC3339),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PublisherConfig struct {
	Brokers string
	Topic   string
	Buffer  int
	// Observe receives "queued", "dropped", "published" or "failed".
	Observe func(outcome string)
}

// Publisher queues events without blocking the caller and writes them to
// Kafka from Run. Events are dropped when the queue is full.
type Publisher struct {
	writer  messageWriter
	topic   string
	logger  *slog.Logger
	queue   chan kafka.Message
	observe func(string)
}

func NewPublisher(logger *slog.Logger, cfg PublisherConfig) *Publisher {
	brokers := kafkax.SplitBrokers(cfg.Brokers)
	var w messageWriter
	if len(brokers) > 0 {
		w = &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		}
	}
	return newPublisher(w, logger, cfg)
}

func newPublisher(w messageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Observe == nil {
		cfg.Observe = func(string) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		writer:  w,
		topic:   cfg.Topic,
		logger:  logger,
		queue:   make(chan kafka.Message, cfg.Buffer),
		observe: cfg.Observe,
	}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish enqueues ev and reports whether it was accepted.
func (p *Publisher) Publish(ctx context.Context, ev AvailabilityRendered) bool {
	if !p.Enabled() {
		return false
	}
	msg, err := p.message(ctx, ev)
	if err != nil {
		p.logger.Error("encode availability event failed", "err", err)
		p.observe("failed")
		return false
	}
	select {
	case p.queue <- msg:
		p.observe("queued")
		return true
	default:
		p.observe("dropped")
		p.logger.Warn("availability event dropped (queue full)", "session_id", ev.SessionID)
		return false
	}
}

func (p *Publisher) message(ctx context.Context, ev AvailabilityRendered) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	meta := kafkax.EventMeta{EventID: uuid.NewString(), EventType: EventAvailabilityRendered}
	return kafka.Message{
		Topic:   p.topic,
		Key:     []byte(ev.SessionID),
		Value:   payload,
		Headers: kafkax.InjectTraceHeaders(ctx, meta.Headers()),
	}, nil
}

// Run drains the queue until ctx is cancelled, then closes the writer.
func (p *Publisher) Run(ctx context.Context) {
	if !p.Enabled() {
		p.logger.Warn("availability events disabled (no kafka brokers configured)")
		return
	}
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("kafka writer close failed", "err", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-p.queue:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := p.writer.WriteMessages(writeCtx, msg)
			cancel()
			if err != nil {
				p.observe("failed")
				p.logger.Error("availability event publish failed", "err", err, "session_id", string(msg.Key))
				continue
			}
			p.observe("published")
		}
	}
}
