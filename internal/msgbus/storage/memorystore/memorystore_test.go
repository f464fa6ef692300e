package memorystore

import (
	"context"
	"testing"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndNextUnreadOrdersByID(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateInbox(ctx, "bus1", "A"))

	low := message.New(30, "sender", message.Content{}, nil, message.PriorityLOW)
	high := message.New(10, "sender", message.Content{}, nil, message.PriorityHIGH)
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", low))
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", high))

	msg, ok, err := s.NextUnread(ctx, "bus1", "A", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.ID(10), msg.ID)

	msg, ok, err = s.NextUnread(ctx, "bus1", "A", msg.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.ID(30), msg.ID)
}

func TestNextUnreadEmptyInboxReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateInbox(ctx, "bus1", "A"))

	_, ok, err := s.NextUnread(ctx, "bus1", "A", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextUnreadUnknownInboxReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, ok, err := s.NextUnread(ctx, "bus1", "nonexistent", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveReceivedDeletesOnlyMatching(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateInbox(ctx, "bus1", "B"))
	require.NoError(t, s.CreateInbox(ctx, "bus1", "C"))

	msg := message.New(1, "A", message.Content{}, nil, message.PriorityNORMAL)
	require.NoError(t, s.AddToInbox(ctx, "bus1", "B", msg))
	require.NoError(t, s.AddToInbox(ctx, "bus1", "C", msg))

	require.NoError(t, s.RemoveReceived(ctx, "bus1", "A", []string{"B"}, msg.ID))

	_, ok, err := s.NextUnread(ctx, "bus1", "B", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := s.NextUnread(ctx, "bus1", "C", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, msg.ID, got.ID)
}

func TestRemoveInboxDestroysAllMessages(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateInbox(ctx, "bus1", "A"))
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", message.New(1, "x", message.Content{}, nil, message.PriorityNORMAL)))

	require.NoError(t, s.RemoveInbox(ctx, "bus1", "A"))

	_, ok, err := s.NextUnread(ctx, "bus1", "A", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNextUnreadSkipsDuplicateOfLastReadID(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateInbox(ctx, "bus1", "A"))

	msg := message.New(5, "sender", message.Content{}, nil, message.PriorityNORMAL)
	next := message.New(6, "sender", message.Content{}, nil, message.PriorityNORMAL)
	// Simulate a redelivered duplicate of an already-consumed id sitting
	// alongside the next real message.
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", msg))
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", next))

	got, ok, err := s.NextUnread(ctx, "bus1", "A", msg.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next.ID, got.ID)
}

func TestInboxDepthTracksAddsAndPops(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateInbox(ctx, "bus1", "A"))

	depth, err := s.InboxDepth(ctx, "bus1", "A")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", message.New(1, "x", message.Content{}, nil, message.PriorityNORMAL)))
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", message.New(2, "x", message.Content{}, nil, message.PriorityNORMAL)))

	depth, err = s.InboxDepth(ctx, "bus1", "A")
	require.NoError(t, err)
	assert.Equal(t, 2, depth)

	_, _, err = s.NextUnread(ctx, "bus1", "A", 0)
	require.NoError(t, err)

	depth, err = s.InboxDepth(ctx, "bus1", "A")
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestInboxDepthOfUnknownInboxIsZero(t *testing.T) {
	ctx := context.Background()
	s := New()
	depth, err := s.InboxDepth(ctx, "bus1", "nonexistent")
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestBusIDIsolatesInboxes(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", message.New(1, "x", message.Content{}, nil, message.PriorityNORMAL)))

	_, ok, err := s.NextUnread(ctx, "bus2", "A", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}
