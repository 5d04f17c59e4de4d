// Package events defines the live-notification envelope and the sinks that
// deliver it.
package events

import (
	"context"
	"time"
)

// Type names the kind of payload an envelope carries.
type Type string

const (
	TypeVital Type = "vital"
	TypeAlert Type = "alert"
)

// Envelope is the wire message pushed to live subscribers.
type Envelope struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`

	// PatientID partitions the envelope on ordered transports.
	PatientID string `json:"-"`
}

// VitalPayload announces one stored measurement.
type VitalPayload struct {
	PatientID string    `json:"patient_id"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// AlertPayload announces a new or acknowledged alert.
type AlertPayload struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	Severity     string    `json:"severity"`
	Metric       string    `json:"metric"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// NewVital wraps p in a vital envelope.
func NewVital(p VitalPayload) Envelope {
	return Envelope{Type: TypeVital, Payload: p, PatientID: p.PatientID}
}

// NewAlert wraps p in an alert envelope.
func NewAlert(p AlertPayload) Envelope {
	return Envelope{Type: TypeAlert, Payload: p, PatientID: p.PatientID}
}

// Sink delivers envelopes best-effort. Implementations never block the caller
// on a slow consumer and never report delivery failures back.
type Sink interface {
	Broadcast(ctx context.Context, env Envelope)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, env Envelope)

func (f SinkFunc) Broadcast(ctx context.Context, env Envelope) { f(ctx, env) }

// Fanout forwards every envelope to each sink in order.
type Fanout []Sink

// Broadcast delivers env to every sink in order.
func (f Fanout) Broadcast(ctx context.Context, env Envelope) {
	for _, s := range f {
		if s != nil {
			s.Broadcast(ctx, env)
		}
	}
}

// Discard drops every envelope.
var Discard Sink = SinkFunc(func(context.Context, Envelope) {})
