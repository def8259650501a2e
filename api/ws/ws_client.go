package ws

import (
	"context"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/zlnvch/layerdeck/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. add_layer may carry a file.
	maxMessageSize = 16 << 20

	// Rate limiting: 20 messages per second with a burst of 30
	messagesPerSecond = 20
	burstLimit        = 30
)

func NewClient(hub *Hub, conn *websocket.Conn, owner models.Owner) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:     hub,
		conn:    conn,
		owner:   owner,
		Send:    make(chan []byte, 128),
		inbox:   make(chan []byte, 64),
		kick:    make(chan string, 1),
		ctx:     ctx,
		cancel:  cancel,
		limiter: rate.NewLimiter(rate.Limit(messagesPerSecond), burstLimit),
	}
}

// Client is a middleman between the websocket connection and its editing
// session.
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	owner models.Owner
	Send  chan []byte // Buffered channel of outbound messages. Only the session writes to it.
	inbox chan []byte
	// Closes the session with the given reason
	kick    chan string
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.CloseCh <- c
		c.cancel()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS close error: %v", err)
			}
			return
		}

		if !c.limiter.Allow() {
			log.Printf("Closing connection for owner %s: message rate limit exceeded", c.owner.Id)
			return
		}

		select {
		case c.inbox <- messageBytes:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) WritePump(shutdownCtx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.cancel()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WS send error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-shutdownCtx.Done():
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Websocket service shutting down"),
			)
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Kick asks the session to close. Only the first reason is kept.
func (c *Client) Kick(reason string) {
	select {
	case c.kick <- reason:
	default:
	}
}
