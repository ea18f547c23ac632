package state

import (
	"fmt"
	"sync/atomic"
)

// An ID carries the ordinal of the node that issued it in its top NodeBits
// bits and a per-node sequence number below. Nodes with distinct ordinals
// never issue the same id.
const (
	NodeBits     = 8
	SequenceBits = 32 - NodeBits
	MaxSequence  = 1<<SequenceBits - 1
)

// MakeID composes an id from a node ordinal and a sequence number.
func MakeID(node uint8, seq uint32) ID {
	return ID(uint32(node)<<SequenceBits | seq&MaxSequence)
}

// Node returns the ordinal of the node that issued id.
func (id ID) Node() uint8 {
	return uint8(uint32(id) >> SequenceBits)
}

// Sequence returns the per-node part of id.
func (id ID) Sequence() uint32 {
	return uint32(id) & MaxSequence
}

// IDGenerator hands out session-unique ids for one node. The zero value is
// ready to use for node 0. Sequences start at 1, so a zero ID never names a
// live object.
type IDGenerator struct {
	node uint8
	last atomic.Uint32
}

func NewIDGenerator(node uint8) *IDGenerator {
	return &IDGenerator{node: node}
}

func (g *IDGenerator) Node() uint8 {
	return g.node
}

// Next returns a fresh id. It is safe for concurrent use. It panics once the
// node's sequence space is used up.
func (g *IDGenerator) Next() ID {
	seq := g.last.Add(1)
	if seq > MaxSequence {
		panic(fmt.Sprintf("state: id sequence of node %d exhausted", g.node))
	}
	return MakeID(g.node, seq)
}

// Create returns a default state with a fresh id.
func (g *IDGenerator) Create(objectType ObjectType) State {
	return New(g.Next(), objectType)
}

// Last reports the most recently issued id, or zero if none was issued.
func (g *IDGenerator) Last() ID {
	seq := g.last.Load()
	if seq == 0 {
		return 0
	}
	return MakeID(g.node, seq)
}

// Observe moves the generator past id so ids adopted from received snapshots
// are never issued again locally. Ids issued by other nodes are ignored.
func (g *IDGenerator) Observe(id ID) {
	if id.Node() != g.node {
		return
	}
	seq := id.Sequence()
	for {
		last := g.last.Load()
		if seq <= last {
			return
		}
		if g.last.CompareAndSwap(last, seq) {
			return
		}
	}
}
