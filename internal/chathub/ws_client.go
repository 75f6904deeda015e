package chathub

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	commandTimeout = 10 * time.Second
)

// WebSocketClient drives a Session from a browser connection.
type WebSocketClient struct {
	SessionID string
	Conn      *websocket.Conn
	Hub       *ManagerService
	Session   *Session

	send      chan ServerEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketClient attaches a connection to the session and returns the
// client; call Run to start it.
func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, sessionID string) *WebSocketClient {
	c := &WebSocketClient{
		SessionID: sessionID,
		Conn:      conn,
		Hub:       hub,
		send:      make(chan ServerEvent, 16),
		done:      make(chan struct{}),
	}
	c.Session = hub.Attach(c)
	return c
}

func (c *WebSocketClient) GetSessionID() string { return c.SessionID }

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which closes the connection and so ends the
// read pump too.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Detach(c)
		c.Close()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("error reading message: %v", err)
			}
			break
		}

		var cmd Command
		if err := json.Unmarshal(message, &cmd); err != nil {
			log.Printf("Error decoding JSON from client %s: %v", c.SessionID, err)
			c.reply(ServerEvent{Type: EventError, Error: "malformed command"})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		err = Dispatch(ctx, c.Session, cmd)
		cancel()
		if err != nil {
			c.reply(ServerEvent{Type: EventError, Error: err.Error()})
		}
	}
}

// reply queues an event without blocking the read pump.
func (c *WebSocketClient) reply(ev ServerEvent) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		log.Printf("WARNING: Dropping %s event for slow client %s", ev.Type, c.SessionID)
	}
}

// writePump forwards session snapshots and replies to the connection.
func (c *WebSocketClient) writePump() {
	updates, stop := c.Session.Watch()
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		stop()
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(ServerEvent{Type: EventState, State: &snap}); err != nil {
				return
			}

		case ev := <-c.send:
			if err := c.write(ev); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *WebSocketClient) write(ev ServerEvent) error {
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.Conn.WriteJSON(ev); err != nil {
		log.Printf("Error writing to client %s: %v", c.SessionID, err)
		return err
	}
	return nil
}
