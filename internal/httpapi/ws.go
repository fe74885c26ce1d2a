package httpapi

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const wsReadTimeout = 90 * time.Second

// handleWebSocket upgrades the request and registers it as a feed
// subscriber. The connection lives until the peer goes away or the hub
// drops it.
func (s *Server) handleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.Any("error", err))
		return err
	}

	conn, err := s.hub.Subscribe(ws)
	if err != nil {
		_ = ws.Close()
		return err
	}

	go s.readPump(ws, conn.ID)
	return nil
}

// readPump drains inbound frames so close and pong control messages are
// processed. The feed is one-way; client payloads are discarded.
func (s *Server) readPump(ws *websocket.Conn, connectionID string) {
	defer s.hub.Unsubscribe(connectionID)

	_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed",
					slog.String("connection_id", connectionID),
					slog.Any("error", err),
				)
			}
			return
		}
		// Any inbound traffic also refreshes the liveness deadline.
		_ = ws.SetReadDeadline(time.Now().Add(wsReadTimeout))
	}
}
