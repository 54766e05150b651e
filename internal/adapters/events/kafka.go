package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hos-dispatch-service/internal/domain"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes each trigger event as JSON, keyed by assignment ID so a
// consumer sees one assignment's events in order.
type KafkaPublisher struct {
	w   *kafka.Writer
	log *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka publisher: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{w: w, log: log.With(slog.String("component", "kafka-publisher"))}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, evs []domain.MonitoringTriggerEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("kafka publish: marshal %s: %w", ev.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.AssignmentID),
			Value: b,
			Headers: []kafka.Header{
				{Key: "trigger_type", Value: []byte(ev.TriggerType)},
				{Key: "severity", Value: []byte(ev.Severity)},
			},
			Time: ev.EmittedAt,
		})
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka publish: write %d messages: %w", len(msgs), err)
	}
	p.log.Debug("published trigger events", "count", len(msgs))
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
