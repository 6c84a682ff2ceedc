package gateway

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crypto-forecast/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 4096
)

// Client is one websocket stream peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu     sync.RWMutex
	symbol string
}

// Symbol returns the symbol the client currently watches.
func (c *Client) Symbol() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.symbol
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if json.Unmarshal(raw, &msg) != nil {
			continue
		}

		switch {
		case strings.EqualFold(msg.Type, "SUBSCRIBE"):
			c.subscribe(msg.Symbol)
		case msg.Ping > 0:
			pong, _ := json.Marshal(StreamMessage{Type: "pong", Ping: msg.Ping, TS: time.Now().UTC()})
			c.hub.sendTo(c, pong)
		}
	}
}

// subscribe switches the watched symbol and pushes a fresh forecast for it.
func (c *Client) subscribe(symbol string) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		out, _ := json.Marshal(StreamMessage{Type: "error", Symbol: symbol, Error: genericError, TS: time.Now().UTC()})
		c.hub.sendTo(c, out)
		return
	}

	c.mu.Lock()
	c.symbol = sym
	c.mu.Unlock()

	go c.hub.pushTo(c, sym)
}
