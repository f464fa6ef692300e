// Package filestore implements storage.Backend by persisting each
// (bus, client) inbox as a JSON array file under a configured root
// directory, per spec's file backend layout: "<bus_id>/<client_id>.json".
package filestore

import (
	"container/heap"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/adred-codev/messagebus/internal/msgbus/storage"
)

const backendName = "filestore"

type inboxKey struct {
	busID, clientID string
}

// Store is a storage.Backend backed by one JSON file per inbox. Each
// mutating operation reads the whole file, mutates in memory, and
// rewrites it — atomicity is per-operation (the single rewrite), not
// cross-operation.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[inboxKey]*sync.Mutex
}

func New(root string) *Store {
	return &Store{root: root, locks: make(map[inboxKey]*sync.Mutex)}
}

func (s *Store) lockFor(key inboxKey) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *Store) path(busID, clientID string) string {
	return filepath.Join(s.root, busID, clientID+".json")
}

func (s *Store) CreateInbox(_ context.Context, busID, clientID string) error {
	dir := filepath.Join(s.root, busID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storage.WrapErr(backendName, "create_inbox", err)
	}
	path := s.path(busID, clientID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.writeHeap(path, nil); err != nil {
			return storage.WrapErr(backendName, "create_inbox", err)
		}
	}
	return nil
}

func (s *Store) RemoveInbox(_ context.Context, busID, clientID string) error {
	key := inboxKey{busID, clientID}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(busID, clientID))
	if err != nil && !os.IsNotExist(err) {
		return storage.WrapErr(backendName, "remove_inbox", err)
	}
	return nil
}

func (s *Store) AddToInbox(_ context.Context, busID, recipientID string, msg message.Message) error {
	key := inboxKey{busID, recipientID}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(busID, recipientID)
	h, err := s.readHeap(path)
	if err != nil {
		return storage.WrapErr(backendName, "add_to_inbox", err)
	}
	heap.Push(h, msg)
	if err := s.writeHeap(path, *h); err != nil {
		return storage.WrapErr(backendName, "add_to_inbox", err)
	}
	return nil
}

func (s *Store) NextUnread(_ context.Context, busID, recipientID string, lastReadID message.ID) (message.Message, bool, error) {
	key := inboxKey{busID, recipientID}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(busID, recipientID)
	h, err := s.readHeap(path)
	if err != nil {
		return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
	}

	for h.Len() > 0 {
		msg := heap.Pop(h).(message.Message)
		if msg.ID == lastReadID {
			continue
		}
		if err := s.writeHeap(path, *h); err != nil {
			return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
		}
		return msg, true, nil
	}
	if err := s.writeHeap(path, *h); err != nil {
		return message.Message{}, false, storage.WrapErr(backendName, "next_unread", err)
	}
	return message.Message{}, false, nil
}

func (s *Store) InboxDepth(_ context.Context, busID, clientID string) (int, error) {
	key := inboxKey{busID, clientID}
	lock := s.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	h, err := s.readHeap(s.path(busID, clientID))
	if err != nil {
		return 0, storage.WrapErr(backendName, "inbox_depth", err)
	}
	return h.Len(), nil
}

func (s *Store) RemoveReceived(_ context.Context, busID, senderID string, recipientIDs []string, messageID message.ID) error {
	for _, recipientID := range recipientIDs {
		key := inboxKey{busID, recipientID}
		lock := s.lockFor(key)
		lock.Lock()
		err := func() error {
			defer lock.Unlock()
			path := s.path(busID, recipientID)
			h, err := s.readHeap(path)
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			kept := (*h)[:0]
			for _, msg := range *h {
				if msg.Sender == senderID && msg.ID == messageID {
					continue
				}
				kept = append(kept, msg)
			}
			*h = kept
			heap.Init(h)
			return s.writeHeap(path, *h)
		}()
		if err != nil {
			return storage.WrapErr(backendName, "remove_received", err)
		}
	}
	return nil
}

func (s *Store) readHeap(path string) (*messageHeap, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		h := messageHeap{}
		return &h, nil
	}
	if err != nil {
		return nil, err
	}
	var h messageHeap
	if len(data) > 0 {
		if err := json.Unmarshal(data, &h); err != nil {
			return nil, fmt.Errorf("filestore: corrupt inbox file %s: %w", path, err)
		}
	}
	heap.Init(&h)
	return &h, nil
}

func (s *Store) writeHeap(path string, h messageHeap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if h == nil {
		h = messageHeap{}
	}
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

type messageHeap []message.Message

func (h messageHeap) Len() int            { return len(h) }
func (h messageHeap) Less(i, j int) bool  { return h[i].ID < h[j].ID }
func (h messageHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *messageHeap) Push(x interface{}) { *h = append(*h, x.(message.Message)) }
func (h *messageHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
