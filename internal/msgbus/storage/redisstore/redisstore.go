// Package redisstore implements storage.Backend as one Redis sorted set
// per (bus, client) inbox: score is the message id, member is the
// message's serialized JSON form.
package redisstore

import (
	"context"
	"errors"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/adred-codev/messagebus/internal/msgbus/storage"
	"github.com/redis/go-redis/v9"
)

var errMemberNotString = errors.New("redisstore: sorted set member was not a string")

const backendName = "redisstore"

// Store is a storage.Backend backed by Redis sorted sets. Redis already
// materializes a key on its first write and reaps it on ZREM-to-empty,
// so CreateInbox is a no-op and RemoveInbox is a plain DEL.
type Store struct {
	client *redis.Client
}

func New(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(busID, clientID string) string {
	return busID + ":" + clientID
}

func (s *Store) CreateInbox(context.Context, string, string) error {
	return nil
}

func (s *Store) RemoveInbox(ctx context.Context, busID, clientID string) error {
	if err := s.client.Del(ctx, key(busID, clientID)).Err(); err != nil {
		return storage.WrapErr(backendName, "remove_inbox", err)
	}
	return nil
}

func (s *Store) AddToInbox(ctx context.Context, busID, recipientID string, msg message.Message) error {
	data, err := msg.Serialize()
	if err != nil {
		return storage.WrapErr(backendName, "add_to_inbox", err)
	}
	z := redis.Z{Score: float64(msg.ID), Member: data}
	if err := s.client.ZAdd(ctx, key(busID, recipientID), z).Err(); err != nil {
		return storage.WrapErr(backendName, "add_to_inbox", err)
	}
	return nil
}

// NextUnread pops the minimum-score member and, if it duplicates
// lastReadID, discards it and pops again — the same pop-on-read
// reconciliation memorystore and filestore apply, via Redis's ZPopMin
// rather than a peek-then-conditional-ZREM.
func (s *Store) NextUnread(ctx context.Context, busID, recipientID string, lastReadID message.ID) (message.Message, bool, error) {
	k := key(busID, recipientID)
	for {
		popped, err := s.client.ZPopMin(ctx, k, 1).Result()
		if err != nil {
			return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
		}
		if len(popped) == 0 {
			return message.Message{}, false, nil
		}

		member, ok := popped[0].Member.(string)
		if !ok {
			return message.Message{}, false, storage.WrapErr(backendName, "next_unread", errMemberNotString)
		}
		msg, err := message.Deserialize([]byte(member))
		if err != nil {
			return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
		}
		if msg.ID == lastReadID {
			continue
		}
		return msg, true, nil
	}
}

func (s *Store) InboxDepth(ctx context.Context, busID, clientID string) (int, error) {
	n, err := s.client.ZCard(ctx, key(busID, clientID)).Result()
	if err != nil {
		return 0, storage.WrapErr(backendName, "inbox_depth", err)
	}
	return int(n), nil
}

func (s *Store) RemoveReceived(ctx context.Context, busID, senderID string, recipientIDs []string, messageID message.ID) error {
	for _, recipientID := range recipientIDs {
		k := key(busID, recipientID)
		members, err := s.client.ZRangeWithScores(ctx, k, 0, -1).Result()
		if err != nil {
			return storage.WrapErr(backendName, "remove_received", err)
		}

		var toRemove []interface{}
		for _, z := range members {
			raw, ok := z.Member.(string)
			if !ok {
				continue
			}
			msg, err := message.Deserialize([]byte(raw))
			if err != nil {
				continue
			}
			if msg.Sender == senderID && msg.ID == messageID {
				toRemove = append(toRemove, raw)
			}
		}
		if len(toRemove) == 0 {
			continue
		}
		if err := s.client.ZRem(ctx, k, toRemove...).Err(); err != nil {
			return storage.WrapErr(backendName, "remove_received", err)
		}
	}
	return nil
}
