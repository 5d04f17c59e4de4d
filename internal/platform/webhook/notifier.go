// Package webhook pushes alert envelopes to external HTTP endpoints, signed
// with HMAC-SHA256 so receivers can verify the sender.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/platform/events"
	"github.com/rpm/rpm/internal/platform/metrics"
)

// Headers set on every delivery.
const (
	SignatureHeader = "X-RPM-Signature"
	DeliveryHeader  = "X-RPM-Delivery"
)

// SignPayload returns the hex HMAC-SHA256 of payload under secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature, with or without the "sha256="
// prefix, matches payload under secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(signature, "sha256=")))
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("webhook url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("webhook url %q has no host", raw)
	}
	return nil
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) { n.client = c }
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(r int) Option {
	return func(n *Notifier) { n.maxRetries = r }
}

// WithBackoff sets the base delay. Attempt n waits n times this.
func WithBackoff(d time.Duration) Option {
	return func(n *Notifier) { n.backoff = d }
}

// WithQueueSize bounds the number of alerts waiting for delivery.
func WithQueueSize(size int) Option {
	return func(n *Notifier) { n.queueSize = size }
}

// WithCriticalOnly skips warning alerts.
func WithCriticalOnly() Option {
	return func(n *Notifier) { n.criticalOnly = true }
}

type delivery struct {
	id   string
	body []byte
}

// Notifier is an events.Sink. Alert envelopes are queued and delivered by a
// single background worker, so endpoints see alerts in broadcast order. Vital
// envelopes are ignored. When the queue is full the envelope is dropped.
type Notifier struct {
	endpoints    []string
	secret       string
	client       *http.Client
	maxRetries   int
	backoff      time.Duration
	queueSize    int
	criticalOnly bool
	logger       zerolog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan delivery
	done   chan struct{}

	// stop aborts in-flight requests and backoff once Close gives up waiting.
	stop     context.Context
	stopFunc context.CancelFunc
}

// NewNotifier validates endpoints and starts the delivery worker. Callers must
// Close the notifier to stop it.
func NewNotifier(endpoints []string, secret string, logger zerolog.Logger, opts ...Option) (*Notifier, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one webhook url is required")
	}
	for _, ep := range endpoints {
		if err := validateURL(ep); err != nil {
			return nil, err
		}
	}
	n := &Notifier{
		endpoints:  endpoints,
		secret:     secret,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		queueSize:  256,
		logger:     logger.With().Str("component", "webhook").Logger(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.queue = make(chan delivery, n.queueSize)
	n.stop, n.stopFunc = context.WithCancel(context.Background())
	go n.run()
	return n, nil
}

// Broadcast implements events.Sink. It never blocks on delivery.
func (n *Notifier) Broadcast(_ context.Context, env events.Envelope) {
	if env.Type != events.TypeAlert {
		return
	}
	if n.criticalOnly {
		if p, ok := env.Payload.(events.AlertPayload); ok && p.Severity != "critical" {
			return
		}
	}
	body, err := json.Marshal(env)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to encode alert envelope")
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case n.queue <- delivery{id: uuid.NewString(), body: body}:
	default:
		metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
		n.logger.Warn().Str("patient_id", env.PatientID).Msg("webhook queue full, alert dropped")
	}
}

// Close stops accepting envelopes and waits for queued deliveries to finish.
// If ctx ends first, in-flight requests are aborted, whatever is still queued
// is dropped and ctx.Err() is returned once the worker has exited.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	select {
	case <-n.done:
		n.stopFunc()
		return nil
	case <-ctx.Done():
		n.stopFunc()
		<-n.done
		return ctx.Err()
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for d := range n.queue {
		for _, ep := range n.endpoints {
			if n.stop.Err() != nil {
				metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
				continue
			}
			n.deliver(ep, d)
		}
	}
}

func (n *Notifier) deliver(endpoint string, d delivery) {
	for attempt := 0; attempt <= n.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(n.backoff * time.Duration(attempt))
			select {
			case <-t.C:
			case <-n.stop.Done():
				t.Stop()
				metrics.WebhookDeliveries.WithLabelValues("dropped").Inc()
				return
			}
		}
		status, err := n.post(endpoint, d)
		if err == nil {
			metrics.WebhookDeliveries.WithLabelValues("success").Inc()
			return
		}
		// 4xx other than 429 will not succeed on retry
		retryable := status == 0 || status == http.StatusTooManyRequests || status >= 500
		n.logger.Warn().Err(err).
			Str("endpoint", endpoint).
			Str("delivery_id", d.id).
			Int("attempt", attempt+1).
			Bool("retryable", retryable).
			Msg("webhook delivery failed")
		if !retryable || n.stop.Err() != nil {
			break
		}
	}
	metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
}

func (n *Notifier) post(endpoint string, d delivery) (int, error) {
	req, err := http.NewRequestWithContext(n.stop, http.MethodPost, endpoint, bytes.NewReader(d.body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeliveryHeader, d.id)
	if n.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+SignPayload(d.body, n.secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}
