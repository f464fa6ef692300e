package pgstore

import (
	"context"
	"os"
	"testing"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to Postgres named by TEST_POSTGRES_DSN, creating
// the schema and skipping the test when unset.
func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping pgstore integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, Schema)
	require.NoError(t, err)

	t.Cleanup(func() { pool.Close() })
	return New(pool), ctx
}

func TestCursorDialectReturnsStrictlyGreaterID(t *testing.T) {
	s, ctx := newTestStore(t)
	busID := "test-bus-cursor"
	t.Cleanup(func() { _ = s.RemoveInbox(ctx, busID, "A") })

	low := message.New(10, "x", message.Content{"k": message.NewString("v")}, nil, message.PriorityNORMAL)
	high := message.New(20, "x", message.Content{"k": message.NewString("v")}, nil, message.PriorityNORMAL)
	require.NoError(t, s.AddToInbox(ctx, busID, "A", low))
	require.NoError(t, s.AddToInbox(ctx, busID, "A", high))

	first, ok, err := s.NextUnread(ctx, busID, "A", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, low.ID, first.ID)

	// The cursor dialect doesn't delete on read: calling again with the
	// same lastReadID must return the same message, not advance.
	again, ok, err := s.NextUnread(ctx, busID, "A", 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, low.ID, again.ID)

	second, ok, err := s.NextUnread(ctx, busID, "A", first.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, high.ID, second.ID)
}

func TestInboxDepthTracksAddsAndReads(t *testing.T) {
	s, ctx := newTestStore(t)
	busID := "test-bus-depth"
	t.Cleanup(func() { _ = s.RemoveInbox(ctx, busID, "A") })

	depth, err := s.InboxDepth(ctx, busID, "A")
	require.NoError(t, err)
	require.Equal(t, 0, depth)

	require.NoError(t, s.AddToInbox(ctx, busID, "A", message.New(1, "x", message.Content{}, nil, message.PriorityNORMAL)))
	require.NoError(t, s.AddToInbox(ctx, busID, "A", message.New(2, "x", message.Content{}, nil, message.PriorityNORMAL)))

	depth, err = s.InboxDepth(ctx, busID, "A")
	require.NoError(t, err)
	require.Equal(t, 2, depth)

	// The cursor dialect never deletes on read, so depth is unaffected by
	// NextUnread.
	_, _, err = s.NextUnread(ctx, busID, "A", 0)
	require.NoError(t, err)

	depth, err = s.InboxDepth(ctx, busID, "A")
	require.NoError(t, err)
	require.Equal(t, 2, depth)
}

func TestRemoveReceivedAppliesToNamedRecipientsOnly(t *testing.T) {
	s, ctx := newTestStore(t)
	busID := "test-bus-remove"
	t.Cleanup(func() {
		_ = s.RemoveInbox(ctx, busID, "B")
		_ = s.RemoveInbox(ctx, busID, "C")
	})

	msg := message.New(1, "A", message.Content{}, nil, message.PriorityNORMAL)
	require.NoError(t, s.AddToInbox(ctx, busID, "B", msg))
	require.NoError(t, s.AddToInbox(ctx, busID, "C", msg))

	require.NoError(t, s.RemoveReceived(ctx, busID, "A", []string{"B"}, msg.ID))

	_, ok, err := s.NextUnread(ctx, busID, "B", 0)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = s.NextUnread(ctx, busID, "C", 0)
	require.NoError(t, err)
	require.True(t, ok)
}
