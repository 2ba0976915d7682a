package client

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from the peer.
	maxMessageSize = 512 * 1024 // 512KB
)

// Callbacks receive transport lifecycle and message events. All callbacks
// after Dial returns are invoked from the transport's single read goroutine,
// in delivery order.
type Callbacks struct {
	OnOpen    func()
	OnMessage func(data []byte)
	OnClose   func()
	OnError   func(err error)
}

// Transport is one socket-like connection to a single endpoint.
type Transport interface {
	Send(data []byte) error
	Close() error
}

// Dialer opens transports. Tests substitute their own implementation.
type Dialer interface {
	Dial(ctx context.Context, url string, cb Callbacks) (Transport, error)
}

// wsDialer dials real WebSocket connections with gorilla/websocket.
type wsDialer struct {
	dialer *websocket.Dialer
}

// NewWSDialer returns the production Dialer.
func NewWSDialer() Dialer {
	return &wsDialer{dialer: websocket.DefaultDialer}
}

func (d *wsDialer) Dial(ctx context.Context, url string, cb Callbacks) (Transport, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if cb.OnError != nil {
			cb.OnError(err)
		}
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	conn.SetReadLimit(maxMessageSize)

	t := &wsTransport{conn: conn}
	if cb.OnOpen != nil {
		cb.OnOpen()
	}
	go t.readPump(cb)
	return t, nil
}

// wsTransport wraps a gorilla connection with a single read pump.
type wsTransport struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func (t *wsTransport) Send(data []byte) error {
	t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Close() error {
	t.closed.Store(true)
	return t.conn.Close()
}

// readPump delivers inbound frames to OnMessage until the connection dies.
// A locally initiated Close or a normal peer close ends with OnClose only;
// anything else reports OnError first, then OnClose.
func (t *wsTransport) readPump(cb Callbacks) {
	defer func() {
		t.conn.Close()
		if cb.OnClose != nil {
			cb.OnClose()
		}
	}()

	for {
		_, message, err := t.conn.ReadMessage()
		if err != nil {
			if t.closed.Load() || isExpectedClose(err) {
				return
			}
			if cb.OnError != nil {
				cb.OnError(err)
			}
			return
		}
		if cb.OnMessage != nil {
			cb.OnMessage(message)
		}
	}
}

func isExpectedClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
