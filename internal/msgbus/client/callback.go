package client

import (
	"context"
	"sync"

	"github.com/adred-codev/messagebus/internal/msgbus/bus"
	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/rs/zerolog"
)

// Callback receives one message drained from a CallbackClient's inbox.
type Callback func(message.Message)

// CallbackClient drains its inbox through a user-supplied Callback
// whenever the bus pokes it, the way the original's callback dispatcher
// does: a callback panic or the bus reporting an error while draining is
// logged and suppressed rather than propagated, so one misbehaving
// callback can't poison the bus (§7).
type CallbackClient struct {
	id       string
	bus      *bus.Bus
	callback Callback
	logger   zerolog.Logger

	mu         sync.Mutex
	lastReadID message.ID
}

type CallbackOption func(*CallbackClient)

func WithCallbackLogger(logger zerolog.Logger) CallbackOption {
	return func(c *CallbackClient) { c.logger = logger.With().Str("component", "callback_client").Logger() }
}

func NewCallbackClient(id string, callback Callback, opts ...CallbackOption) *CallbackClient {
	c := &CallbackClient{id: id, callback: callback}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CallbackClient) ID() string { return c.id }

// NotifyNewMessage must not block, so it hands the actual drain off to
// its own goroutine rather than running it inline on the sender's call
// stack.
func (c *CallbackClient) NotifyNewMessage() {
	go c.drainLoggingErrors(context.Background())
}

func (c *CallbackClient) drainLoggingErrors(ctx context.Context) {
	if err := c.ProcessAllUnreadMessages(ctx); err != nil {
		c.logger.Error().Err(err).Str("client_id", c.id).Msg("failed draining inbox after notification")
	}
}

// ProcessAllUnreadMessages drains every currently-unread message for
// this client through the callback, in id order, stopping at the first
// storage error.
func (c *CallbackClient) ProcessAllUnreadMessages(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		msg, ok, err := c.bus.NextUnread(ctx, c.id, c.lastReadID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		c.lastReadID = msg.ID
		c.invokeCallback(msg)
	}
}

func (c *CallbackClient) invokeCallback(msg message.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Interface("panic", r).
				Str("client_id", c.id).
				Msg("callback panicked; suppressing")
		}
	}()
	c.callback(msg)
}

func (c *CallbackClient) Register(ctx context.Context, b *bus.Bus) error {
	c.bus = b
	return b.Register(ctx, c)
}

func (c *CallbackClient) Unregister(ctx context.Context) error {
	return c.bus.Unregister(ctx, c.id)
}

func (c *CallbackClient) Send(ctx context.Context, content message.Content, recipients []string, priority message.Priority) (message.Message, error) {
	return c.bus.Send(ctx, c.id, content, recipients, priority)
}
