package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/teranos/hireflow/logger"
	"github.com/teranos/hireflow/workflow"
)

// WebSocket timeouts, as in the gorilla chat example
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts same-host origins and non-browser clients without one.
// Cross-origin browser access goes through the CORS allow list on /api instead.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// Client is one /ws/events connection. It receives the events its actor may view.
type Client struct {
	server *Server
	conn   *websocket.Conn
	actor  workflow.Actor
	events <-chan workflow.Event
	cancel func()
	id     string
	log    *zap.SugaredLogger
}

// visible reports whether the client's actor may see event
func (c *Client) visible(event workflow.Event) bool {
	post := &workflow.JobPost{ID: event.JobPostID, EmployerID: event.EmployerID}
	return c.server.gate.AuthorizeView(c.actor, post).Allowed
}

// readPump discards client frames and keeps the read deadline fresh; it returns when the peer goes away
func (c *Client) readPump(done chan<- struct{}) {
	defer close(done)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.log.Warnw("WebSocket read error", logger.FieldError, err)
			}
			return
		}
	}
}

// writePump forwards visible events and pings until the peer, the subscription or the server ends
func (c *Client) writePump(peerGone <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				c.close(websocket.CloseGoingAway, "event stream closed")
				return
			}
			if !c.visible(event) {
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Debugw("WebSocket write failed", logger.FieldError, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-peerGone:
			return

		case <-c.server.ctx.Done():
			c.close(websocket.CloseGoingAway, "server shutting down")
			return
		}
	}
}

func (c *Client) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (s *Server) handleEvents(c *gin.Context) {
	actor, ok := s.actor(c)
	if !ok {
		return
	}
	if s.events == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Error: "event stream is not enabled"})
		return
	}

	// Subscribe before the handshake completes so no event after it is missed
	events, cancel := s.events.Subscribe()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		cancel()
		// Upgrade has already written the HTTP error
		s.logger.Debugw("WebSocket upgrade failed", logger.FieldError, err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		actor:  actor,
		events: events,
		cancel: cancel,
		id:     uuid.NewString(),
	}
	client.log = s.logger.With("client_id", client.id, logger.FieldActorID, actor.ID)

	s.clients.Add(1)
	s.wg.Add(1)
	client.log.Debugw("WebSocket client connected")

	peerGone := make(chan struct{})
	go client.readPump(peerGone)
	go func() {
		defer s.wg.Done()
		defer s.clients.Add(-1)
		defer conn.Close()
		defer client.cancel()
		client.writePump(peerGone)
		client.log.Debugw("WebSocket client disconnected")
	}()
}
