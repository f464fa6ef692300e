// Package message defines the wire-level value objects the bus routes:
// priorities, packed identifiers, and the Message envelope itself.
package message

import (
	"encoding/json"
	"reflect"
	"strconv"
)

// Priority orders delivery: 0 is URGENT (highest), 7 is LOWEST. Lower
// numeric value sorts earlier once packed into an ID (see idgen).
type Priority uint8

const (
	PriorityURGENT       Priority = 0
	PriorityIMPORTANT    Priority = 1
	PriorityHIGH         Priority = 2
	PriorityABOVE_NORMAL Priority = 3
	PriorityNORMAL       Priority = 4
	PriorityLOW          Priority = 5
	PriorityVERY_LOW     Priority = 6
	PriorityLOWEST       Priority = 7
)

// Property names the message fields HashBased routing is allowed to hash
// over. The recognised set is closed to the five constants below;
// PropertyString renders any other Property value as the empty string.
type Property string

const (
	PropertyID         Property = "id"
	PropertyContent    Property = "content"
	PropertyRecipients Property = "recipients"
	PropertySender     Property = "sender"
	PropertyPriority   Property = "priority"
)

// ID is a packed 64-bit identifier: see idgen for the bit layout. Natural
// integer ordering of ID equals delivery order (priority, then time, then
// machine, then sequence).
type ID uint64

// Message is a value object routed by the bus. Two messages are Equal iff
// their id, sender, content, recipients and priority match; ThreadID,
// InReplyTo and Topic are metadata that don't participate in equality,
// matching the original's __eq__.
type Message struct {
	ID         ID       `json:"id"`
	Sender     string   `json:"sender"`
	Content    Content  `json:"content"`
	Recipients []string `json:"recipients"`
	Priority   Priority `json:"priority"`
	ThreadID   ID       `json:"thread_id"`
	InReplyTo  *ID      `json:"in_reply_to,omitempty"`
	Topic      *string  `json:"topic,omitempty"`
}

// New builds a Message whose ThreadID defaults to id, starting its own
// thread, unless overridden by opts.
func New(id ID, sender string, content Content, recipients []string, priority Priority, opts ...Option) Message {
	m := Message{
		ID:         id,
		Sender:     sender,
		Content:    content,
		Recipients: recipients,
		Priority:   priority,
		ThreadID:   id,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

type Option func(*Message)

func WithThreadID(threadID ID) Option {
	return func(m *Message) { m.ThreadID = threadID }
}

func WithInReplyTo(id ID) Option {
	return func(m *Message) { m.InReplyTo = &id }
}

func WithTopic(topic string) Option {
	return func(m *Message) { m.Topic = &topic }
}

// Less orders messages by id ascending.
func (m Message) Less(other Message) bool {
	return m.ID < other.ID
}

// Equal mirrors the original Python Message.__eq__: id, sender, content,
// recipients and priority must all match.
func (m Message) Equal(other Message) bool {
	return m.ID == other.ID &&
		m.Sender == other.Sender &&
		reflect.DeepEqual(m.Content, other.Content) &&
		reflect.DeepEqual(m.Recipients, other.Recipients) &&
		m.Priority == other.Priority
}

// Serialize renders the message to the self-describing JSON form used by
// the file and Redis storage backends.
func (m Message) Serialize() ([]byte, error) {
	return json.Marshal(m)
}

// Deserialize is the inverse of Serialize; deserialize(serialize(m)) == m
// up to Equal.
func Deserialize(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}

// PropertyString renders the named message property the way HashBased
// routing wants it: a stable string suitable for hashing, not a debug
// representation.
func PropertyString(m Message, prop Property) string {
	switch prop {
	case PropertyID:
		return strconv.FormatUint(uint64(m.ID), 10)
	case PropertyContent:
		return m.Content.String()
	case PropertyRecipients:
		b, _ := json.Marshal(m.Recipients)
		return string(b)
	case PropertySender:
		return m.Sender
	case PropertyPriority:
		return strconv.FormatUint(uint64(m.Priority), 10)
	default:
		return ""
	}
}
