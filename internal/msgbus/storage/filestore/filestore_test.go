package filestore

import (
	"context"
	"testing"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAndNextUnreadPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s1 := New(dir)
	require.NoError(t, s1.CreateInbox(ctx, "bus1", "A"))
	require.NoError(t, s1.AddToInbox(ctx, "bus1", "A", message.New(20, "x", message.Content{}, nil, message.PriorityNORMAL)))
	require.NoError(t, s1.AddToInbox(ctx, "bus1", "A", message.New(5, "x", message.Content{}, nil, message.PriorityNORMAL)))

	// A fresh Store over the same root directory observes what was
	// written, since each op rewrites the file.
	s2 := New(dir)
	msg, ok, err := s2.NextUnread(ctx, "bus1", "A", 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, message.ID(5), msg.ID)
}

func TestNextUnreadEmptyDirectoryReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	_, ok, err := s.NextUnread(ctx, "bus1", "nobody", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveInboxDeletesFile(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
	require.NoError(t, s.CreateInbox(ctx, "bus1", "A"))
	require.NoError(t, s.AddToInbox(ctx, "bus1", "A", message.New(1, "x", message.Content{}, nil, message.PriorityNORMAL)))
	require.NoError(t, s.RemoveInbox(ctx, "bus1", "A"))

	_, ok, err := s.NextUnread(ctx, "bus1", "A", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing an already-absent inbox is idempotent.
	require.NoError(t, s.RemoveInbox(ctx, "bus1", "A"))
}

func TestInboxDepthTracksAddsAndPops(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
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

func TestRemoveReceivedDeletesMatchingOnly(t *testing.T) {
	ctx := context.Background()
	s := New(t.TempDir())
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
