// Package bus implements the dispatch engine: client registry, id
// generation, recipient resolution, persistence fan-out and notification
// fan-out.
package bus

import (
	"context"
	"sync"

	"github.com/adred-codev/messagebus/internal/busmetrics"
	"github.com/adred-codev/messagebus/internal/msgbus/idgen"
	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/adred-codev/messagebus/internal/msgbus/msgbuserr"
	"github.com/adred-codev/messagebus/internal/msgbus/routing"
	"github.com/adred-codev/messagebus/internal/msgbus/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Client is the narrow surface the bus needs from a registered client.
// Defined here rather than imported from package client, so bus and
// client never import one another: client.SimpleClient and
// client.CallbackClient satisfy this structurally.
type Client interface {
	ID() string
	// NotifyNewMessage is invoked synchronously from within Send once the
	// message is durable in this client's inbox. It must not block and
	// must not call back into Send — the bus makes no reentrancy
	// guarantee.
	NotifyNewMessage()
}

// Bus is the dispatch engine. The zero value is not usable; build one
// with New.
type Bus struct {
	id        string
	machineID uint64
	gen       *idgen.Generator
	storage   storage.Backend
	logger    zerolog.Logger
	metrics   *busmetrics.Collector

	policyMu sync.RWMutex
	policy   routing.Policy

	clientsMu sync.RWMutex
	clients   map[string]Client

	rateLimiter *senderRateLimiter
}

// New builds a Bus with the given id (a random uuid if empty) over the
// given storage backend. Default routing policy is Broadcast.
func New(id string, backend storage.Backend, opts ...Option) *Bus {
	if id == "" {
		id = uuid.NewString()
	}

	b := &Bus{
		id:      id,
		storage: backend,
		policy:  routing.NewBroadcast(),
		clients: make(map[string]Client),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.gen = idgen.New(b.machineID)
	return b
}

// ID returns the bus's own id, used as the first component of every
// storage key so one physical store can host multiple buses.
func (b *Bus) ID() string { return b.id }

// SetRoutingPolicy replaces the routing policy used for messages sent
// without explicit recipients. Safe to call on a live bus.
func (b *Bus) SetRoutingPolicy(p routing.Policy) {
	b.policyMu.Lock()
	defer b.policyMu.Unlock()
	b.policy = p
}

func (b *Bus) routingPolicy() routing.Policy {
	b.policyMu.RLock()
	defer b.policyMu.RUnlock()
	return b.policy
}

// Register adds client to the registry, replacing any prior registration
// under the same id (the previous handle stops being notified), and
// creates its inbox.
func (b *Bus) Register(ctx context.Context, c Client) error {
	b.clientsMu.Lock()
	b.clients[c.ID()] = c
	b.clientsMu.Unlock()

	if err := b.storage.CreateInbox(ctx, b.id, c.ID()); err != nil {
		return err
	}
	return nil
}

// Unregister removes clientID from the registry and destroys its inbox.
// Any messages not yet consumed are discarded.
func (b *Bus) Unregister(ctx context.Context, clientID string) error {
	b.clientsMu.Lock()
	delete(b.clients, clientID)
	b.clientsMu.Unlock()

	return b.storage.RemoveInbox(ctx, b.id, clientID)
}

// Send validates, routes, persists and notifies for a new message from
// sender. recipients may be empty, letting the routing policy choose.
// The returned Message carries the id the bus assigned.
func (b *Bus) Send(ctx context.Context, sender string, content message.Content, recipients []string, priority message.Priority) (message.Message, error) {
	if sender == "" {
		return message.Message{}, msgbuserr.New(msgbuserr.KindInvalidArgument, "sender must not be empty")
	}
	if content == nil {
		content = message.Content{}
	}

	if b.rateLimiter != nil && !b.rateLimiter.allow(sender) {
		b.recordDropped("rate_limited")
		return message.Message{}, msgbuserr.New(msgbuserr.KindRateLimited, "sender exceeded its configured rate: "+sender)
	}

	id, err := b.gen.NextID(priority)
	if err != nil {
		return message.Message{}, err
	}
	msg := message.New(id, sender, content, recipients, priority)

	resolved := b.resolveRecipients(msg)

	if err := b.verifyRegistered(resolved); err != nil {
		b.recordDropped("unknown_recipient")
		return message.Message{}, err
	}

	for _, recipientID := range resolved {
		if err := b.storage.AddToInbox(ctx, b.id, recipientID, msg); err != nil {
			return message.Message{}, err
		}
		b.recordDelivered()
		b.sampleInboxDepth(ctx, recipientID)
	}
	b.recordSent()

	for _, c := range b.snapshotClients(resolved) {
		c.NotifyNewMessage()
	}

	return msg, nil
}

// resolveRecipients implements §4.4 step 2: explicit recipients pass
// through verbatim; otherwise the routing policy chooses.
func (b *Bus) resolveRecipients(msg message.Message) []string {
	if len(msg.Recipients) > 0 {
		return msg.Recipients
	}
	return b.routingPolicy().RecipientsFor(msg, b.liveClientSet())
}

// verifyRegistered implements the set-difference check of §4.4 step 1:
// every resolved recipient must currently be registered, or the whole
// send is rejected before any inbox is touched.
func (b *Bus) verifyRegistered(recipients []string) error {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	var unknown []string
	for _, id := range recipients {
		if _, ok := b.clients[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return msgbuserr.New(msgbuserr.KindUnknownRecipient, "unregistered recipient(s): "+joinIDs(unknown))
	}
	return nil
}

func (b *Bus) liveClientSet() map[string]struct{} {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	out := make(map[string]struct{}, len(b.clients))
	for id := range b.clients {
		out[id] = struct{}{}
	}
	return out
}

// snapshotClients resolves ids to live Client handles, releasing the
// registry lock before any handle's NotifyNewMessage is invoked. A
// recipient unregistered between persistence and this snapshot is
// simply skipped, matching §4.4 step 4.
func (b *Bus) snapshotClients(ids []string) []Client {
	b.clientsMu.RLock()
	defer b.clientsMu.RUnlock()

	out := make([]Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := b.clients[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// NextUnread returns clientID's minimum-id message not yet observed
// given lastReadID, delegating to the storage backend.
func (b *Bus) NextUnread(ctx context.Context, clientID string, lastReadID message.ID) (message.Message, bool, error) {
	msg, ok, err := b.storage.NextUnread(ctx, b.id, clientID, lastReadID)
	if ok {
		b.sampleInboxDepth(ctx, clientID)
	}
	return msg, ok, err
}

// RemoveReceivedMessage deletes messageID from each of recipients'
// inboxes, where recipients == ["*"] expands to every currently
// registered client id.
func (b *Bus) RemoveReceivedMessage(ctx context.Context, sender string, recipients []string, messageID message.ID) error {
	if len(recipients) == 0 {
		return msgbuserr.New(msgbuserr.KindInvalidArgument, "recipients must not be empty")
	}

	resolved := recipients
	if len(recipients) == 1 && recipients[0] == "*" {
		b.clientsMu.RLock()
		resolved = make([]string, 0, len(b.clients))
		for id := range b.clients {
			resolved = append(resolved, id)
		}
		b.clientsMu.RUnlock()
	}

	if err := b.storage.RemoveReceived(ctx, b.id, sender, resolved, messageID); err != nil {
		return err
	}
	for _, recipientID := range resolved {
		b.sampleInboxDepth(ctx, recipientID)
	}
	return nil
}

// Close releases background resources (the rate limiter's cleanup
// goroutine, if one was configured).
func (b *Bus) Close() {
	if b.rateLimiter != nil {
		b.rateLimiter.Close()
	}
}

func (b *Bus) recordSent() {
	if b.metrics != nil {
		b.metrics.MessagesSent.WithLabelValues(b.id).Inc()
	}
}

func (b *Bus) recordDelivered() {
	if b.metrics != nil {
		b.metrics.MessagesDelivered.WithLabelValues(b.id).Inc()
	}
}

func (b *Bus) recordDropped(reason string) {
	if b.metrics != nil {
		b.metrics.MessagesDropped.WithLabelValues(b.id, reason).Inc()
	}
}

// sampleInboxDepth re-reads clientID's current inbox size from storage and
// updates the gauge. Best-effort: a sampling failure is logged and
// swallowed rather than surfaced to the caller, since it must never turn
// a successful Send/NextUnread/RemoveReceivedMessage into an error.
func (b *Bus) sampleInboxDepth(ctx context.Context, clientID string) {
	if b.metrics == nil {
		return
	}
	depth, err := b.storage.InboxDepth(ctx, b.id, clientID)
	if err != nil {
		b.logger.Warn().Err(err).Str("client_id", clientID).Msg("failed to sample inbox depth")
		return
	}
	b.metrics.InboxDepth.WithLabelValues(b.id, clientID).Set(float64(depth))
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += id
	}
	return out
}
