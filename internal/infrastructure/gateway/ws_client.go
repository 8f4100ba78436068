package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tempvox/internal/core/domain"
	"tempvox/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client consumes membership signals from the platform gateway over a
// websocket and feeds them to the orchestrator. Delivery is at-least-once
// and gaps across reconnects are expected; the orchestrator recounts from
// the roster, so dropped events self-heal.
type Client struct {
	url          string
	token        string
	orchestrator ports.Orchestrator
	logger       *zap.SugaredLogger

	reconnectInterval time.Duration
	maxReconnectDelay time.Duration
	pingInterval      time.Duration
}

type Config struct {
	URL               string
	Token             string
	ReconnectInterval time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
}

func NewClient(cfg Config, orchestrator ports.Orchestrator, logger *zap.SugaredLogger) *Client {
	return &Client{
		url:               cfg.URL,
		token:             cfg.Token,
		orchestrator:      orchestrator,
		logger:            logger,
		reconnectInterval: cfg.ReconnectInterval,
		maxReconnectDelay: cfg.MaxReconnectDelay,
		pingInterval:      cfg.PingInterval,
	}
}

// Run connects and consumes events until the context is cancelled,
// reconnecting with capped exponential backoff. Blocks; run it in its own
// goroutine.
func (c *Client) Run(ctx context.Context) {
	delay := c.reconnectInterval

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.consume(ctx); err != nil {
			c.logger.Warnw("gateway connection lost", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.maxReconnectDelay {
			delay = c.maxReconnectDelay
		}
	}
}

func (c *Client) consume(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return err
	}
	defer conn.Close()

	c.logger.Infow("connected to platform gateway", "url", c.url)

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	go c.pingLoop(ctx, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		var event domain.MembershipEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.logger.Warnw("malformed gateway event", "error", err)
			continue
		}

		c.handle(ctx, event)
	}
}

func (c *Client) handle(ctx context.Context, event domain.MembershipEvent) {
	var err error
	switch event.Kind {
	case domain.MemberJoined:
		err = c.orchestrator.OnMemberJoined(ctx, event.ChannelID, event.MemberID)
	case domain.MemberLeft:
		err = c.orchestrator.OnMemberLeft(ctx, event.ChannelID, event.MemberID)
	default:
		c.logger.Debugw("ignoring gateway event", "kind", event.Kind)
		return
	}
	if err != nil {
		c.logger.Errorw("membership event handling failed",
			"kind", event.Kind,
			"channel_id", event.ChannelID,
			"member_id", event.MemberID,
			"error", err,
		)
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
