package routing

import "github.com/adred-codev/messagebus/internal/msgbus/message"

// DirectOrFallback passes a message's explicit recipients through
// unchanged, falling back to a single fixed recipient when none were
// given. The fallback id does not need to be registered at construction
// time; the bus is responsible for rejecting a send whose resolved
// recipient isn't registered.
type DirectOrFallback struct {
	FallbackID string
}

func NewDirectOrFallback(fallbackID string) DirectOrFallback {
	return DirectOrFallback{FallbackID: fallbackID}
}

func (p DirectOrFallback) RecipientsFor(msg message.Message, _ map[string]struct{}) []string {
	if len(msg.Recipients) > 0 {
		out := make([]string, len(msg.Recipients))
		copy(out, msg.Recipients)
		return out
	}
	return []string{p.FallbackID}
}
