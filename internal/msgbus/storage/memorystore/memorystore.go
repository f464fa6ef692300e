// Package memorystore implements storage.Backend as an in-process
// mapping of bus id -> client id -> a min-heap of messages ordered by id.
package memorystore

import (
	"container/heap"
	"context"
	"sync"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
)

const backendName = "memorystore"

type inboxKey struct {
	busID, clientID string
}

// Store is a storage.Backend. The zero value is not usable; build one
// with New. Safe for concurrent use: each inbox has its own lock, so
// unrelated clients never contend.
type Store struct {
	mu     sync.RWMutex
	inboxes map[inboxKey]*inbox
}

func New() *Store {
	return &Store{inboxes: make(map[inboxKey]*inbox)}
}

type inbox struct {
	mu sync.Mutex
	h  messageHeap
}

func (s *Store) getOrCreate(key inboxKey) *inbox {
	s.mu.RLock()
	ib, ok := s.inboxes[key]
	s.mu.RUnlock()
	if ok {
		return ib
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ib, ok := s.inboxes[key]; ok {
		return ib
	}
	ib = &inbox{}
	heap.Init(&ib.h)
	s.inboxes[key] = ib
	return ib
}

func (s *Store) CreateInbox(_ context.Context, busID, clientID string) error {
	s.getOrCreate(inboxKey{busID, clientID})
	return nil
}

func (s *Store) RemoveInbox(_ context.Context, busID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inboxes, inboxKey{busID, clientID})
	return nil
}

func (s *Store) AddToInbox(_ context.Context, busID, recipientID string, msg message.Message) error {
	ib := s.getOrCreate(inboxKey{busID, recipientID})
	ib.mu.Lock()
	defer ib.mu.Unlock()
	heap.Push(&ib.h, msg)
	return nil
}

func (s *Store) NextUnread(_ context.Context, busID, recipientID string, lastReadID message.ID) (message.Message, bool, error) {
	s.mu.RLock()
	ib, ok := s.inboxes[inboxKey{busID, recipientID}]
	s.mu.RUnlock()
	if !ok {
		return message.Message{}, false, nil
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()

	for ib.h.Len() > 0 {
		msg := heap.Pop(&ib.h).(message.Message)
		if msg.ID == lastReadID {
			// A duplicate of what was already returned to this client;
			// discard and keep looking.
			continue
		}
		return msg, true, nil
	}
	return message.Message{}, false, nil
}

func (s *Store) InboxDepth(_ context.Context, busID, clientID string) (int, error) {
	s.mu.RLock()
	ib, ok := s.inboxes[inboxKey{busID, clientID}]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.h.Len(), nil
}

func (s *Store) RemoveReceived(_ context.Context, busID, senderID string, recipientIDs []string, messageID message.ID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, recipientID := range recipientIDs {
		ib, ok := s.inboxes[inboxKey{busID, recipientID}]
		if !ok {
			continue
		}
		ib.mu.Lock()
		ib.h.removeMatching(senderID, messageID)
		ib.mu.Unlock()
	}
	return nil
}

// messageHeap is a container/heap.Interface over message.Message ordered
// by id ascending.
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

// removeMatching rebuilds the heap without any message matching
// (sender, id); §4.3 names this "remove-by-predicate", O(n).
func (h *messageHeap) removeMatching(sender string, id message.ID) {
	kept := (*h)[:0]
	for _, msg := range *h {
		if msg.Sender == sender && msg.ID == id {
			continue
		}
		kept = append(kept, msg)
	}
	*h = kept
	heap.Init(h)
}
