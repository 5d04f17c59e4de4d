package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/rpm/rpm/internal/platform/events"
)

type mockWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestNewPublisher_Validation(t *testing.T) {
	if _, err := NewPublisher(nil, "rpm.events", zerolog.Nop()); err == nil {
		t.Error("expected error without brokers")
	}
	if _, err := NewPublisher([]string{"localhost:9092"}, "", zerolog.Nop()); err == nil {
		t.Error("expected error without topic")
	}
	p, err := NewPublisher([]string{"localhost:9092"}, "rpm.events", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Close()
}

func TestPublisher_KeysByPatient(t *testing.T) {
	w := &mockWriter{}
	p := newPublisherWithWriter(w, zerolog.Nop())

	p.Broadcast(context.Background(), events.NewVital(events.VitalPayload{
		PatientID: "P003",
		Metric:    "spo2",
		Value:     91,
		Timestamp: time.Now().UTC(),
	}))

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "P003" {
		t.Errorf("expected key P003, got %s", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "vital" {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "vital" {
		t.Errorf("expected vital envelope, got %v", decoded["type"])
	}
}

func TestPublisher_FailureIsSwallowed(t *testing.T) {
	w := &mockWriter{err: errors.New("leader not available")}
	p := newPublisherWithWriter(w, zerolog.Nop())

	p.Broadcast(context.Background(), events.NewAlert(events.AlertPayload{PatientID: "P001"}))

	if got := p.Stats().MessagesFailed; got != 1 {
		t.Errorf("expected 1 failed message, got %d", got)
	}
}

func TestPublisher_Closed(t *testing.T) {
	w := &mockWriter{}
	p := newPublisherWithWriter(w, zerolog.Nop())
	p.Close()
	p.Close()

	if !w.closed {
		t.Error("expected writer to be closed")
	}
	if err := p.Publish(context.Background(), events.NewAlert(events.AlertPayload{})); !errors.Is(err, ErrPublisherClosed) {
		t.Errorf("expected ErrPublisherClosed, got %v", err)
	}
}

func TestPublisher_CompletionObservesAckLatency(t *testing.T) {
	p := newPublisherWithWriter(&mockWriter{}, zerolog.Nop())
	ack := time.Date(2024, 3, 1, 10, 0, 2, 0, time.UTC)
	p.now = func() time.Time { return ack }
	var got []float64
	p.observe = func(v float64) { got = append(got, v) }

	p.completion([]kafka.Message{
		{Time: ack.Add(-2 * time.Second)},
		{Time: ack.Add(-500 * time.Millisecond)},
		{},
	}, nil)

	if len(got) != 2 || got[0] != 2 || got[1] != 0.5 {
		t.Errorf("expected latencies [2 0.5], got %v", got)
	}
	if s := p.Stats(); s.MessagesSent != 3 {
		t.Errorf("expected 3 sent, got %d", s.MessagesSent)
	}
}

func TestPublisher_CompletionFailureSkipsLatency(t *testing.T) {
	p := newPublisherWithWriter(&mockWriter{}, zerolog.Nop())
	observed := 0
	p.observe = func(float64) { observed++ }

	p.completion([]kafka.Message{{Time: time.Now()}}, errors.New("request timed out"))

	if observed != 0 {
		t.Errorf("expected no latency for failed batch, got %d observations", observed)
	}
	if s := p.Stats(); s.MessagesFailed != 1 || s.MessagesSent != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestPublisher_StampsEnqueueTime(t *testing.T) {
	w := &mockWriter{}
	p := newPublisherWithWriter(w, zerolog.Nop())
	enq := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return enq }

	if err := p.Publish(context.Background(), events.NewAlert(events.AlertPayload{PatientID: "P001"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.msgs[0].Time.Equal(enq) {
		t.Errorf("expected message time %v, got %v", enq, w.msgs[0].Time)
	}
}
