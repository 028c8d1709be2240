package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kuredoro/snake_duel/core"
)

// Frame is one server event as received by a Client.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (f Frame) Decode(v interface{}) error {
	if len(f.Data) == 0 {
		return nil
	}

	return json.Unmarshal(f.Data, v)
}

// Client is the json speaking end of /ws used by the terminal viewer.
type Client struct {
	socket *websocket.Conn

	mu     sync.Mutex
	frames chan Frame
	err    error
}

func Dial(ctx context.Context, url string) (*Client, error) {
	socket, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		socket: socket,
		frames: make(chan Frame, 64),
	}

	go c.readLoop()

	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.frames)

	for {
		var f Frame
		if err := c.socket.ReadJSON(&f); err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}

		c.frames <- f
	}
}

// Frames is closed when the connection ends; Err tells why.
func (c *Client) Frames() <-chan Frame {
	return c.frames
}

func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.err
}

func (c *Client) Send(event string, data core.ClientData) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.socket.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := c.socket.WriteJSON(core.ClientMessage{Event: event, Data: data}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}

	return nil
}

func (c *Client) Move(d core.Direction) error {
	v := d.Vector()
	return c.Send(core.EventPlayerMove, core.ClientData{X: v.X, Y: v.Y})
}

func (c *Client) Restart() error {
	return c.Send(core.EventRestartGame, core.ClientData{})
}

func (c *Client) Leave() error {
	return c.Send(core.EventLeaveRoom, core.ClientData{})
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.socket.Close()
}
