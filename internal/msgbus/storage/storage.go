// Package storage defines the Backend contract every persistence
// implementation (in-memory, file, Redis sorted-set, Postgres) satisfies,
// plus the shared error-wrapping helper they all use.
package storage

import (
	"context"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/adred-codev/messagebus/internal/msgbus/msgbuserr"
)

// Backend is the per-bus, per-client inbox store the bus dispatch engine
// delegates persistence to. Every operation is keyed first by busID so a
// single physical store can host multiple co-hosted buses.
type Backend interface {
	// CreateInbox is idempotent; backends that auto-materialize storage
	// on first write may treat this as a no-op.
	CreateInbox(ctx context.Context, busID, clientID string) error

	// RemoveInbox deletes all messages for (busID, clientID). Idempotent
	// on an already-absent inbox.
	RemoveInbox(ctx context.Context, busID, clientID string) error

	// AddToInbox inserts msg into recipientID's ordered inbox, ordered by
	// message id.
	AddToInbox(ctx context.Context, busID, recipientID string, msg message.Message) error

	// NextUnread returns the inbox's minimum-id message not yet observed
	// given lastReadID, or ok=false if the inbox has nothing left to
	// offer. Pop-on-read backends (memorystore, filestore, redisstore)
	// remove what they return, discarding any popped message whose id
	// equals lastReadID; the cursor backend (pgstore) leaves the inbox
	// unchanged and returns the smallest id greater than lastReadID.
	NextUnread(ctx context.Context, busID, recipientID string, lastReadID message.ID) (msg message.Message, ok bool, err error)

	// RemoveReceived deletes, for each id in recipientIDs, any message
	// with (sender=senderID, id=messageID) from that recipient's inbox.
	// Silent if absent.
	RemoveReceived(ctx context.Context, busID, senderID string, recipientIDs []string, messageID message.ID) error

	// InboxDepth reports how many messages are currently stored for
	// (busID, clientID), for gauges and diagnostics. An inbox that was
	// never created or has since been removed reports 0, not an error.
	InboxDepth(ctx context.Context, busID, clientID string) (int, error)
}

// WrapErr wraps a backend-specific I/O failure as a KindStorageError,
// tagging it with which backend and operation failed.
func WrapErr(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	return msgbuserr.Wrap(msgbuserr.KindStorageError, backend+"."+op, err)
}
