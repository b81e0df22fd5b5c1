package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// envelope is the wire format for every live event in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn wraps a websocket connection with identity and a write lock so
// room broadcasts, personal-channel sends and receipts may come from
// different goroutines.
type Conn struct {
	id          string
	userID      int64
	sock        *websocket.Conn
	connectedAt time.Time
	writeMu     sync.Mutex
}

func newConn(userID int64, sock *websocket.Conn) *Conn {
	return &Conn{
		id:          uuid.NewString(),
		userID:      userID,
		sock:        sock,
		connectedAt: time.Now(),
	}
}

// UserID returns the authenticated owner of the connection.
func (c *Conn) UserID() int64 { return c.userID }

// ID returns the connection id.
func (c *Conn) ID() string { return c.id }

// SendEvent writes one tagged event to the connection.
func (c *Conn) SendEvent(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	body, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sock.WriteMessage(websocket.TextMessage, body)
}

// Close closes the underlying socket.
func (c *Conn) Close() error {
	return c.sock.Close()
}
