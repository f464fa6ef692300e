package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	content := Content{"text": NewString("hello"), "count": NewNumber(3)}
	msg := New(42, "agent-a", content, []string{"agent-b", "agent-c"}, PriorityHIGH,
		WithTopic("greetings"))

	data, err := msg.Serialize()
	require.NoError(t, err)

	got, err := Deserialize(data)
	require.NoError(t, err)

	assert.True(t, msg.Equal(got))
	require.NotNil(t, got.Topic)
	assert.Equal(t, "greetings", *got.Topic)
	assert.Equal(t, msg.ThreadID, got.ThreadID)
}

func TestNewDefaultsThreadIDToOwnID(t *testing.T) {
	msg := New(7, "agent-a", Content{}, nil, PriorityNORMAL)
	assert.Equal(t, msg.ID, msg.ThreadID)
}

func TestWithThreadIDOverridesDefault(t *testing.T) {
	msg := New(7, "agent-a", Content{}, nil, PriorityNORMAL, WithThreadID(1))
	assert.Equal(t, ID(1), msg.ThreadID)
}

func TestEqualIgnoresMetadataFields(t *testing.T) {
	a := New(1, "agent-a", Content{"k": NewString("v")}, []string{"b"}, PriorityNORMAL, WithTopic("x"))
	b := New(1, "agent-a", Content{"k": NewString("v")}, []string{"b"}, PriorityNORMAL, WithTopic("y"), WithThreadID(99))
	assert.True(t, a.Equal(b))
}

func TestEqualDetectsContentDifference(t *testing.T) {
	a := New(1, "agent-a", Content{"k": NewString("v")}, []string{"b"}, PriorityNORMAL)
	b := New(1, "agent-a", Content{"k": NewString("different")}, []string{"b"}, PriorityNORMAL)
	assert.False(t, a.Equal(b))
}

func TestLessOrdersByID(t *testing.T) {
	a := New(1, "x", Content{}, nil, PriorityNORMAL)
	b := New(2, "x", Content{}, nil, PriorityNORMAL)
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}

func TestPropertyStringCoversClosedSet(t *testing.T) {
	msg := New(5, "agent-a", Content{"k": NewString("v")}, []string{"b", "c"}, PriorityHIGH)

	assert.Equal(t, "5", PropertyString(msg, PropertyID))
	assert.Equal(t, "agent-a", PropertyString(msg, PropertySender))
	assert.Equal(t, "2", PropertyString(msg, PropertyPriority))
	assert.JSONEq(t, `{"k":"v"}`, PropertyString(msg, PropertyContent))
	assert.JSONEq(t, `["b","c"]`, PropertyString(msg, PropertyRecipients))
}
