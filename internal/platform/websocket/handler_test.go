package websocket

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rpm/rpm/internal/platform/auth"
	"github.com/rpm/rpm/internal/platform/events"
)

func newStreamServer(t *testing.T) (*Hub, *auth.TokenManager, string) {
	t.Helper()
	hub := NewHub(zerolog.Nop())
	tokens := auth.NewTokenManager("stream-test-secret-0123456789abcdef", time.Hour)

	e := echo.New()
	NewHandler(hub, tokens).RegisterRoutes(e)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return hub, tokens, "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/stream"
}

func TestHandler_StreamDeliversEnvelopes(t *testing.T) {
	hub, tokens, url := newStreamServer(t)
	token, _, err := tokens.Issue("clinician1", auth.RoleClinician)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	waitFor(t, "subscriber registration", func() bool { return hub.ClientCount() == 1 })

	hub.Broadcast(context.Background(), events.NewAlert(events.AlertPayload{
		ID:        "a-1",
		PatientID: "P001",
		Severity:  "critical",
		Metric:    "heart_rate",
		Timestamp: time.Now().UTC(),
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type    string              `json:"type"`
		Payload events.AlertPayload `json:"payload"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "alert" || got.Payload.ID != "a-1" {
		t.Fatalf("unexpected envelope: %+v", got)
	}

	conn.Close()
	waitFor(t, "subscriber removal", func() bool { return hub.ClientCount() == 0 })
}

func TestHandler_InvalidTokenClosesWithPolicyViolation(t *testing.T) {
	hub, _, url := newStreamServer(t)

	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url+"?token=bogus", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()

	var closeErr *gorillawebsocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("expected close error, got %v", err)
	}
	if closeErr.Code != gorillawebsocket.ClosePolicyViolation {
		t.Errorf("expected close code 1008, got %d", closeErr.Code)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected no subscribers, got %d", hub.ClientCount())
	}
}
