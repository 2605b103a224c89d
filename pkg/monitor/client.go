// ABOUTME: Monitor client implementation
// ABOUTME: Dials an engine monitor and exposes stats and tap channels
package monitor

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Soundstage-Audio/soundstage-go/pkg/protocol"
)

// TapChunk is one decoded binary tap frame.
type TapChunk struct {
	Seq     uint64
	Payload []byte
}

// Client is a connection to an engine monitor. Stats and tap chunks
// arrive on buffered channels; slow consumers lose updates rather than
// stalling the connection.
type Client struct {
	conn  *websocket.Conn
	hello protocol.ServerHello

	stats  chan protocol.Stats
	chunks chan TapChunk
	done   chan struct{}

	closeOnce sync.Once
}

// Dial connects to a monitor at host:port, performs the hello exchange
// and starts receiving.
func Dial(addr, name string, wantTap bool) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/soundstage"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	hello := protocol.Message{
		Type: protocol.TypeClientHello,
		Payload: protocol.ClientHello{
			ClientID: uuid.New().String(),
			Name:     name,
			Version:  protocol.ProtocolVersion,
			WantTap:  wantTap,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send hello: %w", err)
	}

	var msg protocol.Message
	if err := conn.ReadJSON(&msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read server hello: %w", err)
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var se protocol.Error
		decodePayload(msg.Payload, &se)
		conn.Close()
		return nil, fmt.Errorf("server rejected connection: %s", se.Message)
	default:
		conn.Close()
		return nil, fmt.Errorf("expected %s, got %s", protocol.TypeServerHello, msg.Type)
	}

	var serverHello protocol.ServerHello
	if err := decodePayload(msg.Payload, &serverHello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bad server hello: %w", err)
	}

	c := &Client{
		conn:   conn,
		hello:  serverHello,
		stats:  make(chan protocol.Stats, 8),
		chunks: make(chan TapChunk, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		typ, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		switch typ {
		case websocket.TextMessage:
			var msg protocol.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if msg.Type != protocol.TypeServerStats {
				continue
			}
			var st protocol.Stats
			if err := decodePayload(msg.Payload, &st); err != nil {
				continue
			}
			select {
			case c.stats <- st:
			default:
			}

		case websocket.BinaryMessage:
			seq, payload, err := protocol.ParseTapChunk(data)
			if err != nil {
				continue
			}
			select {
			case c.chunks <- TapChunk{Seq: seq, Payload: payload}:
			default:
			}
		}
	}
}

// Hello returns the server's handshake response.
func (c *Client) Hello() protocol.ServerHello {
	return c.hello
}

// Stats returns the channel of counter snapshots.
func (c *Client) Stats() <-chan protocol.Stats {
	return c.stats
}

// Chunks returns the channel of tap frames.
func (c *Client) Chunks() <-chan TapChunk {
	return c.chunks
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close disconnects from the monitor.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.conn.Close()
	})
	return nil
}
