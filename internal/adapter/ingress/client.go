// Package ingress pushes pipeline progress events to an ingress host over JSON-RPC.
package ingress

import (
	"context"
	"fmt"
	"net"
	"net/rpc/jsonrpc"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/bolt/v3"
)

// StageEvent is the payload of a pipeline_stage event.
type StageEvent struct {
	SessionID string `json:"session_id"`
	Task      string `json:"task"`
	Stage     string `json:"stage"`
	Status    string `json:"status"`
	Ts        int64  `json:"ts"`
}

// Client delivers events to the ingress host. Stage events go through a
// bounded queue drained by one background worker, so a slow or unreachable
// host never delays a pipeline run.
type Client struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
	logger      *bolt.Logger

	queue     chan StageEvent
	startOnce sync.Once
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// stageQueueSize bounds the stage events waiting for delivery.
const stageQueueSize = 64

// NewClient creates a client for baseURL. An empty baseURL yields a client
// whose pushes are no-ops.
func NewClient(baseURL string, logger *bolt.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		addr:        resolveRPCAddr(baseURL),
		dialTimeout: 2 * time.Second,
		callTimeout: 2 * time.Second,
		logger:      logger,
		queue:       make(chan StageEvent, stageQueueSize),
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Enabled reports whether an ingress address is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.addr != ""
}

// SendRequest represents the request body for event delivery.
type SendRequest struct {
	SessionID string                 `json:"session_id"`
	Event     map[string]interface{} `json:"event"`
}

// SendResponse represents the response for event delivery.
type SendResponse struct {
	OK        bool `json:"ok"`
	Delivered bool `json:"delivered"`
}

// PushEvent delivers one event for a session.
func (c *Client) PushEvent(ctx context.Context, sessionID string, event map[string]interface{}) error {
	if !c.Enabled() {
		return nil
	}

	req := &SendRequest{
		SessionID: sessionID,
		Event:     event,
	}

	var resp SendResponse
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	if err := c.call(ctx, "Ingress.PushEvent", req, &resp); err != nil {
		return fmt.Errorf("failed to push event to ingress: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("ingress rpc returned ok=false (delivered=%v)", resp.Delivered)
	}
	return nil
}

// PushStage queues a pipeline_stage event and returns immediately. Events are
// dropped when the queue is full or the client is closed; delivery failures
// are logged and dropped.
func (c *Client) PushStage(_ context.Context, ev StageEvent) {
	if !c.Enabled() || c.ctx.Err() != nil {
		return
	}
	if ev.Ts == 0 {
		ev.Ts = time.Now().UnixMilli()
	}
	c.startOnce.Do(func() { go c.run() })

	select {
	case c.queue <- ev:
	default:
		if c.logger != nil {
			c.logger.Warn().Str("session", ev.SessionID).Str("stage", ev.Stage).Msg("ingress queue full, dropping stage event")
		}
	}
}

// Close stops the delivery worker. Queued events that were not sent yet are dropped.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.cancel()
		started := true
		c.startOnce.Do(func() { started = false })
		if started {
			<-c.done
		}
	})
	return nil
}

func (c *Client) run() {
	defer close(c.done)
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.queue:
			c.deliver(ev)
		}
	}
}

func (c *Client) deliver(ev StageEvent) {
	err := c.PushEvent(c.ctx, ev.SessionID, map[string]interface{}{
		"type":       "pipeline_stage",
		"session_id": ev.SessionID,
		"task":       ev.Task,
		"stage":      ev.Stage,
		"status":     ev.Status,
		"ts":         ev.Ts,
	})
	if err != nil && c.logger != nil && c.ctx.Err() == nil {
		c.logger.Warn().
			Str("session", ev.SessionID).
			Str("stage", ev.Stage).
			Err(err).
			Msg("ingress push failed")
	}
}

func (c *Client) call(ctx context.Context, method string, args, reply interface{}) error {
	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client := jsonrpc.NewClient(conn)
	call := client.Go(method, args, reply, nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		return call.Error
	}
}

func resolveRPCAddr(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "://") {
		parsed, err := url.Parse(raw)
		if err == nil && parsed.Host != "" {
			return parsed.Host
		}
	}
	return raw
}
