package mt5

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/janosik-trading/janosik/market"
)

// TickHandler receives each streamed tick.
type TickHandler func(market.Tick)

type streamMsg struct {
	Type   string  `json:"type"` // TICK or HEARTBEAT
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Time   int64   `json:"time"`
}

const (
	reconnectBaseDelay = time.Second
	reconnectMaxDelay  = 30 * time.Second
)

// StreamTicks subscribes to the gateway's tick stream over websocket and
// invokes handler for every tick until ctx is done. Connection drops are
// retried with exponential backoff.
func (c *Client) StreamTicks(ctx context.Context, symbols []string, handler TickHandler) error {
	if len(symbols) == 0 {
		return fmt.Errorf("mt5 stream: no symbols")
	}

	wsURL, err := c.streamURL(symbols)
	if err != nil {
		return err
	}

	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := c.streamOnce(ctx, wsURL, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("tick stream disconnected", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > reconnectMaxDelay {
			delay = reconnectMaxDelay
		}
	}
}

func (c *Client) streamURL(symbols []string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("mt5 stream: bad base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/api/v1/stream/ticks"
	u.RawQuery = url.Values{"symbols": {strings.Join(symbols, ",")}}.Encode()
	return u.String(), nil
}

func (c *Client) streamOnce(ctx context.Context, wsURL string, handler TickHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	c.logger.Info("tick stream connected", "url", wsURL)

	// Close the socket when ctx is canceled so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}

		var msg streamMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("bad stream message", "error", err)
			continue
		}
		if strings.ToUpper(msg.Type) != "TICK" {
			continue
		}

		handler(market.Tick{
			Symbol: msg.Symbol,
			Bid:    msg.Bid,
			Ask:    msg.Ask,
			Time:   time.Unix(msg.Time, 0).UTC(),
		})
	}
}
