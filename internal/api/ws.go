package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/crdash/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024 * 64,
	WriteBufferSize: 1024 * 64,
	CheckOrigin: func(r *http.Request) bool {
		return true // the dashboard is served on localhost
	},
}

const wsWriteTimeout = 10 * time.Second

// WebSocket message types to client. Inbound messages use action type
// names and carry the action payload in data.
const (
	wsMsgState = "state"
	wsMsgError = "error"
)

// wsMessage is the envelope for WebSocket messages in both directions.
type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsStateMsg is the payload of "state" messages.
type wsStateMsg struct {
	Action string        `json:"action,omitempty"`
	Epoch  uint64        `json:"epoch"`
	State  session.State `json:"state"`
}

// wsClient delivers snapshots to one connection. Only the newest pending
// snapshot is kept; a slow client skips intermediate states.
type wsClient struct {
	conn   *websocket.Conn
	logger *slog.Logger
	states chan wsStateMsg
	errs   chan string
	done   chan struct{}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade", slog.Any("error", err))
		return
	}
	defer conn.Close()

	c := &wsClient{
		conn:   conn,
		logger: s.logger,
		states: make(chan wsStateMsg, 1),
		errs:   make(chan string, 8),
		done:   make(chan struct{}),
	}

	unsub := s.store.Subscribe(func(ev session.Event) {
		c.offer(wsStateMsg{Action: ev.Action.Type(), Epoch: ev.Epoch, State: ev.State})
	})
	defer unsub()

	// Update holds the dispatch lock, so no event can be delivered between
	// reading this snapshot and queueing it.
	s.store.Update(func(st session.State) session.Action {
		c.offer(wsStateMsg{State: st})
		return nil
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
	}()
	defer func() {
		close(c.done)
		<-writerDone
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read", slog.Any("error", err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("invalid message format")
			continue
		}

		a, err := session.DecodeAction(msg.Type, msg.Data)
		switch {
		case err != nil:
			c.sendError(err.Error())
		case a == nil:
			c.sendError("unknown message type: " + msg.Type)
		default:
			s.store.Dispatch(a)
		}
	}
}

// offer replaces any undelivered snapshot with m.
func (c *wsClient) offer(m wsStateMsg) {
	for {
		select {
		case c.states <- m:
			return
		default:
		}
		select {
		case <-c.states:
		default:
		}
	}
}

func (c *wsClient) sendError(msg string) {
	select {
	case c.errs <- msg:
	default:
		c.logger.Debug("dropping websocket error", slog.String("message", msg))
	}
}

func (c *wsClient) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case m := <-c.states:
			c.send(wsMsgState, m)
		case msg := <-c.errs:
			c.send(wsMsgError, map[string]string{"message": msg})
		}
	}
}

func (c *wsClient) send(msgType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("ws marshal", slog.Any("error", err))
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(wsMessage{Type: msgType, Data: raw}); err != nil {
		c.logger.Debug("ws write", slog.Any("error", err))
	}
}
