// Package routing provides pluggable recipient-selection policies: pure
// functions from (message, live client ids) to a recipient list, with no
// access to storage or the bus itself.
package routing

import "github.com/adred-codev/messagebus/internal/msgbus/message"

// Policy selects recipients for a message that was sent without explicit
// recipients. clients is the set of currently registered client ids;
// implementations must not mutate it.
type Policy interface {
	RecipientsFor(msg message.Message, clients map[string]struct{}) []string
}
