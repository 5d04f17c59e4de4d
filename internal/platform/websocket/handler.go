package websocket

import (
	"net/http"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/rpm/rpm/internal/platform/auth"
)

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades /ws/stream requests. The bearer token travels in the
// query string because browsers cannot set headers on websocket requests.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenManager
}

// NewHandler serves the stream endpoint. Tokens are checked from the
// token query parameter.
func NewHandler(hub *Hub, tokens *auth.TokenManager) *Handler {
	return &Handler{hub: hub, tokens: tokens}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/stream", h.Stream)
}

func (h *Handler) Stream(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		return nil
	}

	if _, err := h.tokens.Parse(c.QueryParam("token")); err != nil {
		msg := gorillawebsocket.FormatCloseMessage(gorillawebsocket.ClosePolicyViolation, "invalid token")
		_ = ws.WriteControl(gorillawebsocket.CloseMessage, msg, time.Now().Add(time.Second))
		return ws.Close()
	}

	client := h.hub.NewClient(ws)
	if err := h.hub.Connect(client); err != nil {
		return ws.Close()
	}

	// Inbound frames are ignored; reading only detects the peer going away.
	ws.SetReadLimit(512)
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.Disconnect(client)
	return nil
}
