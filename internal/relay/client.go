package relay

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"sharedscriptures/api/internal/highlight"
)

// Client is one session's connection to the relay. It sends the auth event
// on dial, emits highlights with Send, and invokes the OnHighlight handler
// for every received highlight event. There is no automatic reconnect and
// no replay: a dropped connection silently misses whatever was broadcast
// during the gap, which is acceptable because persistence plus reload is
// the durability path.
type Client struct {
	ws          *websocket.Conn
	userID      string
	writeMu     sync.Mutex
	onHighlight func(highlight.Highlight)
	closeOnce   sync.Once
}

// Dial connects to the relay and authenticates as userID.
func Dial(ctx context.Context, url, userID string) (*Client, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	c := &Client{ws: ws, userID: userID}
	auth, err := authEvent(userID)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	if err := c.write(auth); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("send auth: %w", err)
	}
	return c, nil
}

// OnHighlight registers the handler for received highlight events. Must be
// set before Listen starts.
func (c *Client) OnHighlight(fn func(highlight.Highlight)) {
	c.onHighlight = fn
}

// Listen blocks reading events until the connection closes.
func (c *Client) Listen() {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		ev, err := parseEvent(payload)
		if err != nil {
			log.Printf("relay client: dropping unparseable frame: %v", err)
			continue
		}
		if ev.Type == EventHighlight && ev.Highlight != nil && c.onHighlight != nil {
			c.onHighlight(*ev.Highlight)
		}
	}
}

// Send emits a newly created highlight. Implements highlight.Channel.
func (c *Client) Send(h highlight.Highlight) error {
	payload, err := highlightEvent(h)
	if err != nil {
		return err
	}
	if err := c.write(payload); err != nil {
		return fmt.Errorf("send highlight: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.ws.Close() })
	return err
}

func (c *Client) write(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}
