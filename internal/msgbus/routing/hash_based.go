package routing

import (
	"crypto/sha256"
	"math/big"
	"sort"
	"strings"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
)

// DefaultHashProperties is a reasonable default property set for a
// HashBased policy built from configuration rather than code: shard on
// content alone, so identical payloads from different senders still
// land on the same recipient.
var DefaultHashProperties = []message.Property{message.PropertyContent}

// HashBased deterministically shards a message to exactly one recipient:
// a SHA-256 digest over the concatenation of the selected message
// properties' string renderings, interpreted as a big integer and
// reduced modulo the number of registered clients, indexes into the
// clients' ids sorted into a stable order. This is sharding, not a
// consistent hash — adding or removing a client reshuffles every
// message's chosen recipient.
type HashBased struct {
	Properties []message.Property
}

func NewHashBased(properties ...message.Property) HashBased {
	return HashBased{Properties: properties}
}

func (p HashBased) RecipientsFor(msg message.Message, clients map[string]struct{}) []string {
	if len(clients) == 0 {
		return nil
	}

	ids := make([]string, 0, len(clients))
	for id := range clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	for _, prop := range p.Properties {
		sb.WriteString(message.PropertyString(msg, prop))
	}

	digest := sha256.Sum256([]byte(sb.String()))
	n := new(big.Int).SetBytes(digest[:])
	mod := big.NewInt(int64(len(ids)))
	idx := new(big.Int).Mod(n, mod).Int64()

	return []string{ids[idx]}
}
