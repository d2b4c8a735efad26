package order

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxPoller drains unpublished outbox rows to Kafka. Publishing and
// marking are separate steps, so a crash between them re-delivers the
// event; consumers must dedupe by event id.
type OutboxPoller struct {
	tick    time.Duration
	batch   int
	records Records
	writer  messageWriter
	log     zerolog.Logger
}

func NewOutboxPoller(records Records, log zerolog.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  "order-events",
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		tick:    time.Second,
		batch:   100,
		records: records,
		writer:  w,
		log:     log.With().Str("component", "outbox-poller").Logger(),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.processUnpublished(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) processUnpublished(ctx context.Context) {
	events, err := p.records.GetUnpublishedEvents(ctx, p.batch)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return
	}

	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			p.log.Error().Err(errPublish).Int64("event_id", event.ID).Msg("failed to publish event")
			continue
		}

		if errMark := p.records.MarkEventPublished(ctx, event.ID); errMark != nil {
			p.log.Error().Err(errMark).Int64("event_id", event.ID).Msg("failed to mark event published")
			continue
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps per-order ordering
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
