package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/petrijr/opsflow/internal/pubsub"
)

// subscribeUpdates opens a notification subscription tied to ctx. It is
// taken before the response starts so a client that has connected never
// misses a message published afterwards.
func (s *Server) subscribeUpdates(ctx context.Context, c *gin.Context) (pubsub.Subscription, bool) {
	sub, err := s.opts.Updates.Subscribe(ctx, s.opts.UpdatesTopic)
	if err != nil {
		s.abortWithError(c, err)
		return nil, false
	}
	return sub, true
}

// GET /ws/dashboard forwards every notification as a text frame until the
// client disconnects.
func (s *Server) dashboardWebSocket(c *gin.Context) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, ok := s.subscribeUpdates(ctx, c)
	if !ok {
		return
	}
	defer sub.Close()

	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		s.logger.WarnContext(ctx, "ws_upgrade_failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	s.logger.InfoContext(ctx, "dashboard_connected", slog.String("transport", "websocket"))
	defer s.logger.InfoContext(ctx, "dashboard_disconnected", slog.String("transport", "websocket"))

	// The reader only exists to notice the close frame or a dropped socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			// A client that stops reading is disconnected instead of
			// holding its subscription open.
			if err := conn.SetWriteDeadline(time.Now().Add(s.opts.StreamWriteTimeout)); err != nil {
				return
			}
			if err := wsutil.WriteServerText(conn, msg.Payload); err != nil {
				s.logger.DebugContext(ctx, "ws_write_failed", slog.Any("error", err))
				return
			}
		}
	}
}

// GET /sse/dashboard forwards the same stream as server-sent events.
func (s *Server) dashboardSSE(c *gin.Context) {
	ctx := c.Request.Context()

	sub, ok := s.subscribeUpdates(ctx, c)
	if !ok {
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case msg, ok := <-sub.Messages():
			if !ok {
				return false
			}
			c.SSEvent("message", string(msg.Payload))
			return true
		}
	})
}
