// Package idgen generates the bus's 64-bit message identifiers: a
// priority-aware variant of a Twitter-snowflake id, packing priority,
// timestamp, machine id and an intra-millisecond sequence into a single
// uint64 so that natural integer ordering is also delivery ordering.
package idgen

import (
	"sync"
	"time"

	"github.com/adred-codev/messagebus/internal/msgbus/message"
	"github.com/adred-codev/messagebus/internal/msgbus/msgbuserr"
)

// Epoch is the reference point IDs measure milliseconds from: 2023-01-01
// UTC. Kept fixed so ids generated by different processes stay
// comparable as long as they share a machine id space.
var Epoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

const (
	priorityBitmask = 0x7   // 3 bits
	sequenceBitmask = 0xFFF // 12 bits

	priorityShift  = 61
	timestampShift = 22
	machineIDShift = 12

	// machineIDInsertMask is applied when packing the machine id in.
	// machineIDExtractMask is applied when reading it back out, and
	// spans 10 bits (timestampShift-machineIDShift) rather than the
	// 8 bits used on insert. The asymmetry is preserved from the
	// original generator rather than "fixed": since insertion keeps only
	// the low 8 bits, the top 2 bits of the field are always zero, and a
	// machine id above 255 unpacks as its low 8 bits only.
	machineIDInsertMask  = 0xFF
	machineIDExtractMask = (1 << (timestampShift - machineIDShift)) - 1
)

// Generator issues monotonically-packed ids for one machine id. It is
// safe for concurrent use. One Generator serves every priority, since
// the priority is packed into each id's top bits; the bus uses a single
// Generator for all of its sends.
type Generator struct {
	mu            sync.Mutex
	machineID     uint64
	sequence      uint64
	lastTimestamp int64
	now           func() int64
}

// New builds a Generator for the given machine id. machineID is masked
// to 8 bits on insert, so a value above 255 is packed as its low 8 bits
// (see machineIDExtractMask) and is not unique against another machine
// id that shares those low 8 bits.
func New(machineID uint64) *Generator {
	return &Generator{
		machineID:     machineID,
		lastTimestamp: -1,
		now:           func() int64 { return time.Now().UnixMilli() },
	}
}

// NextID produces the next id for the given priority. It returns a
// *msgbuserr.Error of KindClockMovedBackwards if wall-clock time is
// observed to move backwards relative to the previous call.
func (g *Generator) NextID(priority message.Priority) (message.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	timestamp := g.now()
	if timestamp < g.lastTimestamp {
		return 0, msgbuserr.New(msgbuserr.KindClockMovedBackwards, "clock moved backwards")
	}

	if timestamp == g.lastTimestamp {
		g.sequence = (g.sequence + 1) & sequenceBitmask
		if g.sequence == 0 {
			for timestamp <= g.lastTimestamp {
				timestamp = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTimestamp = timestamp

	return Pack(priority, timestamp, g.machineID, g.sequence), nil
}

// Pack assembles an id from its components. timestamp is a Unix
// millisecond timestamp (not relative to Epoch).
func Pack(priority message.Priority, timestampMillis int64, machineID, sequence uint64) message.ID {
	p := (uint64(priority) & priorityBitmask) << priorityShift
	t := (uint64(timestampMillis-Epoch)) << timestampShift
	m := (machineID & machineIDInsertMask) << machineIDShift
	s := sequence & sequenceBitmask
	return message.ID(p | t | m | s)
}

// Unpacked holds the components extracted from a packed ID.
type Unpacked struct {
	Priority        message.Priority
	TimestampMillis int64
	MachineID       uint64
	Sequence        uint64
}

// Unpack reverses Pack.
func Unpack(id message.ID) Unpacked {
	v := uint64(id)
	priority := (v >> priorityShift) & priorityBitmask
	timestampDelta := (v >> timestampShift) & ((1 << (priorityShift - timestampShift)) - 1)
	machineID := (v >> machineIDShift) & machineIDExtractMask
	sequence := v & sequenceBitmask

	return Unpacked{
		Priority:        message.Priority(priority),
		TimestampMillis: int64(timestampDelta) + Epoch,
		MachineID:       machineID,
		Sequence:        sequence,
	}
}
