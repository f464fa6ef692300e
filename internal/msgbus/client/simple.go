// Package client provides ready-made Client implementations the bus
// package's narrow Client interface is satisfied by: a synchronous
// poller (SimpleClient) and a callback dispatcher (CallbackClient). The
// bus package exposes no concrete client of its own — consumers choose
// their own consumption style, per §4.5.
package client

import (
	"context"

	"github.com/adred-codev/messagebus/internal/msgbus/bus"
	"github.com/adred-codev/messagebus/internal/msgbus/message"
)

// SimpleClient polls for new messages, optionally blocking on
// WaitForNewMessage until the bus pokes it — a direct port of the
// original's threading.Event-based wait, expressed as a buffered
// notification channel instead.
type SimpleClient struct {
	id  string
	bus *bus.Bus

	notifyCh chan struct{}
}

func NewSimpleClient(id string) *SimpleClient {
	return &SimpleClient{
		id:       id,
		notifyCh: make(chan struct{}, 1),
	}
}

func (c *SimpleClient) ID() string { return c.id }

// NotifyNewMessage is called by the bus; it must not block, so it only
// ever does a non-blocking send into a capacity-1 channel, coalescing
// any number of pending notifications into "at least one is waiting".
func (c *SimpleClient) NotifyNewMessage() {
	select {
	case c.notifyCh <- struct{}{}:
	default:
	}
}

// Register attaches this client to b and creates its inbox.
func (c *SimpleClient) Register(ctx context.Context, b *bus.Bus) error {
	c.bus = b
	return b.Register(ctx, c)
}

// Unregister removes this client from its bus and destroys its inbox.
func (c *SimpleClient) Unregister(ctx context.Context) error {
	return c.bus.Unregister(ctx, c.id)
}

// Send publishes content as this client.
func (c *SimpleClient) Send(ctx context.Context, content message.Content, recipients []string, priority message.Priority) (message.Message, error) {
	return c.bus.Send(ctx, c.id, content, recipients, priority)
}

// NextUnread returns this client's next message after lastReadID.
func (c *SimpleClient) NextUnread(ctx context.Context, lastReadID message.ID) (message.Message, bool, error) {
	return c.bus.NextUnread(ctx, c.id, lastReadID)
}

// WaitForNewMessage blocks until NotifyNewMessage has fired at least
// once since the last call (or ctx is done), then clears the pending
// flag — mirroring the original's "wait then clear" Event semantics.
func (c *SimpleClient) WaitForNewMessage(ctx context.Context) error {
	select {
	case <-c.notifyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
