// Package kafka mirrors live envelopes onto a Kafka topic so downstream
// systems see the same vital/alert stream as websocket subscribers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rpm/rpm/internal/platform/events"
	"github.com/rpm/rpm/internal/platform/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is an events.Sink backed by an async kafka-go writer. Messages
// are keyed by patient id so one patient's stream stays ordered.
type Publisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	timeout time.Duration
	closed  atomic.Bool
	// observe records enqueue-to-ack latency in seconds.
	observe func(float64)
	now     func() time.Time

	messagesSent   atomic.Uint64
	messagesFailed atomic.Uint64
}

// NewPublisher builds a publisher for topic on brokers. No connection is made
// until the first message is written.
func NewPublisher(brokers []string, topic string, logger zerolog.Logger) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	p := &Publisher{
		logger:  logger.With().Str("component", "kafka_publisher").Logger(),
		timeout: 5 * time.Second,
		observe: metrics.KafkaPublishDuration.Observe,
		now:     time.Now,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.completion,
	}
	return p, nil
}

func newPublisherWithWriter(w messageWriter, logger zerolog.Logger) *Publisher {
	return &Publisher{
		writer:  w,
		logger:  logger,
		timeout: time.Second,
		observe: metrics.KafkaPublishDuration.Observe,
		now:     time.Now,
	}
}

// Broadcast implements events.Sink. Failures are logged and counted, never returned.
func (p *Publisher) Broadcast(ctx context.Context, env events.Envelope) {
	if err := p.Publish(ctx, env); err != nil {
		p.messagesFailed.Add(1)
		metrics.KafkaPublishTotal.WithLabelValues("failed").Inc()
		p.logger.Warn().Err(err).
			Str("type", string(env.Type)).
			Str("patient_id", env.PatientID).
			Msg("failed to mirror envelope to kafka")
	}
}

// Publish enqueues env on the async writer. A nil error means the message was
// accepted for delivery; the broker's answer arrives later in completion.
func (p *Publisher) Publish(ctx context.Context, env events.Envelope) error {
	if p.closed.Load() {
		return ErrPublisherClosed
	}

	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(env.PatientID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(env.Type)},
		},
		Time: p.now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	return p.writer.WriteMessages(ctx, msg)
}

// completion runs for async batches once the broker has answered. Latency is
// measured from each message's enqueue time, so it covers batching and the
// broker round trip.
func (p *Publisher) completion(msgs []kafka.Message, err error) {
	if err != nil {
		p.messagesFailed.Add(uint64(len(msgs)))
		metrics.KafkaPublishTotal.WithLabelValues("failed").Add(float64(len(msgs)))
		p.logger.Error().Err(err).Int("batch_size", len(msgs)).Msg("kafka batch failed")
		return
	}
	now := p.now()
	for _, m := range msgs {
		if !m.Time.IsZero() {
			p.observe(now.Sub(m.Time).Seconds())
		}
	}
	p.messagesSent.Add(uint64(len(msgs)))
	metrics.KafkaPublishTotal.WithLabelValues("success").Add(float64(len(msgs)))
}

// Close flushes pending batches and stops the writer. Later publishes fail
// with ErrPublisherClosed.
func (p *Publisher) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.writer.Close()
}

// Stats counts messages the broker acknowledged or rejected since start.
type Stats struct {
	MessagesSent   uint64
	MessagesFailed uint64
}

// Stats returns a snapshot of the delivery counters.
func (p *Publisher) Stats() Stats {
	return Stats{
		MessagesSent:   p.messagesSent.Load(),
		MessagesFailed: p.messagesFailed.Load(),
	}
}
