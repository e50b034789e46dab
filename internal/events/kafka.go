package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/i474232898/weather-dashboard/internal/observability"
	"github.com/i474232898/weather-dashboard/internal/weather"
)

// EventAlertCreated is the event name carried by every alert message.
const EventAlertCreated = "alert.created"

// messageWriter is the subset of *kafkago.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes created alerts to a Kafka topic.
// It implements weather.AlertPublisher.
type Publisher struct {
	writer  messageWriter
	metrics *observability.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewPublisher creates a Kafka producer for topic. metrics may be nil.
func NewPublisher(brokers []string, topic string, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{}, // partition by city id
		RequiredAcks: kafkago.RequireOne,
	}
	return newPublisher(w, metrics, logger)
}

func newPublisher(w messageWriter, metrics *observability.Metrics, logger *slog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		metrics: metrics,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// PublishAlert sends one alert.created message keyed by the alert's city.
func (p *Publisher) PublishAlert(ctx context.Context, alert weather.Alert) error {
	msg, err := alertMessage(alert)
	if err != nil {
		p.count("failed")
		return err
	}

	// Bounded by p.timeout alone; the caller's cancellation does not apply.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.count("failed")
		return fmt.Errorf("failed to write alert event: %w", err)
	}
	p.count("published")
	p.logger.DebugContext(ctx, "alert event published", "alert_id", alert.ID, "city_id", alert.CityID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) count(outcome string) {
	if p.metrics != nil {
		p.metrics.AlertEvents.WithLabelValues(outcome).Inc()
	}
}

type alertEvent struct {
	Event string `json:"event"`
	weather.Alert
}

func alertMessage(alert weather.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(alertEvent{Event: EventAlertCreated, Alert: alert})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(alert.CityID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventAlertCreated)},
			{Key: "severity", Value: []byte(alert.Severity)},
		},
	}, nil
}

// Nop discards alerts. It is used when no brokers are configured.
type Nop struct{}

func (Nop) PublishAlert(context.Context, weather.Alert) error { return nil }

func (Nop) Close() error { return nil }
