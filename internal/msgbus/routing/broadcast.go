package routing

import (
	"sort"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
)

// Broadcast routes a message to every registered client except its
// sender. Iteration order is unspecified by the contract but must be
// deterministic within a call, so results are sorted.
type Broadcast struct{}

func NewBroadcast() Broadcast { return Broadcast{} }

func (Broadcast) RecipientsFor(msg message.Message, clients map[string]struct{}) []string {
	out := make([]string, 0, len(clients))
	for id := range clients {
		if id == msg.Sender {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
