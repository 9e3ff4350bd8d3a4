// Package comms moves messages between agents over a lossy, range-limited,
// multi-hop network. Each agent owns a Node; delivery is store-and-forward
// and advances once per simulation tick.
package comms

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

// Config holds the radio settings shared by every node
type Config struct {
	RangeM           float64
	MaxRelayHops     int
	RelayProbability float64

	// MaxQueueLength bounds the inbound queue; the oldest message is evicted
	// on overflow. Zero means unbounded.
	MaxQueueLength int
}

// Peer is anything a node can hand a message to
type Peer interface {
	ID() int
	Receive(msg *Message)
}

// PeerLocator finds the peers whose position lies inside area, excluding
// the caller. Results must come back in a stable order.
type PeerLocator interface {
	PeersInRange(area geo.Circle, exclude int) []Peer
}

// Stats counts what a node did with its traffic
type Stats struct {
	Transmitted     int64
	Delivered       int64
	Relayed         int64
	RelayDropped    int64
	HopLimitDropped int64
	Evicted         int64
}

// Node is one agent's radio: an inbound queue of messages held for reading
// or relaying and an outbound queue of locally originated messages.
type Node struct {
	id      int
	cfg     Config
	rng     *rand.Rand
	locator PeerLocator
	log     logger.Logger

	coverage geo.Circle
	inbound  []*Message
	outbound []*Message
	stats    Stats
}

// NewNode creates the radio for agent id. rng supplies every random draw the
// node makes, including message IDs.
func NewNode(id int, cfg Config, rng *rand.Rand, locator PeerLocator) *Node {
	if rng == nil {
		panic("comms: nil random source")
	}
	if locator == nil {
		panic("comms: nil peer locator")
	}
	if cfg.MaxRelayHops < 0 {
		panic(fmt.Sprintf("comms: negative relay hop limit %d", cfg.MaxRelayHops))
	}
	return &Node{
		id:       id,
		cfg:      cfg,
		rng:      rng,
		locator:  locator,
		log:      logger.WithPrefix("comms").WithField("agent", id),
		coverage: geo.Circle{Radius: cfg.RangeM},
	}
}

// ID returns the owning agent's ID
func (n *Node) ID() int { return n.id }

// Location returns the current coverage centre
func (n *Node) Location() geo.Point { return n.coverage.Center }

// SetLocation recentres coverage without stepping
func (n *Node) SetLocation(p geo.Point) { n.coverage.Center = p }

// Stats returns the node's counters
func (n *Node) Stats() Stats { return n.stats }

// InboundLen returns the number of held inbound messages
func (n *Node) InboundLen() int { return len(n.inbound) }

// OutboundLen returns the number of messages waiting to go out
func (n *Node) OutboundLen() int { return len(n.outbound) }

// Transmit queues a new message originated by this node. dest is an agent
// ID or BroadcastID. The message leaves on the next Step.
func (n *Node) Transmit(payload Payload, dest int, now int64) *Message {
	if payload == nil {
		panic("comms: transmit with nil payload")
	}
	id, err := uuid.NewRandomFromReader(n.rng)
	if err != nil {
		panic(fmt.Sprintf("comms: message id: %v", err))
	}
	msg := &Message{
		ID:          id,
		Origin:      n.id,
		Destination: dest,
		Hops:        0,
		Time:        now,
		Payload:     payload,
	}
	n.outbound = append(n.outbound, msg)
	n.stats.Transmitted++
	return msg
}

// Receive takes ownership of msg into the inbound queue
func (n *Node) Receive(msg *Message) {
	if msg == nil || msg.Payload == nil {
		panic("comms: receive with nil message or payload")
	}
	n.inbound = append(n.inbound, msg)
	if n.cfg.MaxQueueLength > 0 && len(n.inbound) > n.cfg.MaxQueueLength {
		drop := len(n.inbound) - n.cfg.MaxQueueLength
		n.stats.Evicted += int64(drop)
		n.log.Debugf("Inbound queue full, evicting %d oldest", drop)
		n.inbound = append(n.inbound[:0], n.inbound[drop:]...)
	}
}

// Incoming returns every held message the owner may read: those unicast to
// it and all broadcasts, in arrival order. Unicast messages are consumed;
// broadcasts stay queued until the next relay pass.
func (n *Node) Incoming() []*Message {
	var out []*Message
	kept := n.inbound[:0]
	for _, msg := range n.inbound {
		switch {
		case msg.IsFor(n.id):
			out = append(out, msg)
		case msg.IsBroadcast():
			out = append(out, msg)
			kept = append(kept, msg)
		default:
			kept = append(kept, msg)
		}
	}
	clearTail(n.inbound, len(kept))
	n.inbound = kept
	return out
}

// Step advances the node by one tick: recentre on at, relay or drop every
// held message not addressed to this node, then send every outbound message
// to all peers in range.
func (n *Node) Step(at geo.Point) {
	n.coverage.Center = at
	peers := n.locator.PeersInRange(n.coverage, n.id)

	kept := n.inbound[:0]
	for _, msg := range n.inbound {
		if msg.IsFor(n.id) {
			kept = append(kept, msg)
			continue
		}
		n.relay(msg, peers)
	}
	clearTail(n.inbound, len(kept))
	n.inbound = kept

	for _, msg := range n.outbound {
		n.deliver(msg, peers)
	}
	clearTail(n.outbound, 0)
	n.outbound = n.outbound[:0]
}

func (n *Node) relay(msg *Message, peers []Peer) {
	if msg.Hops >= n.cfg.MaxRelayHops {
		n.stats.HopLimitDropped++
		return
	}
	if n.rng.Float64() >= n.cfg.RelayProbability {
		n.stats.RelayDropped++
		return
	}
	for _, p := range peers {
		c := msg.Clone()
		c.Hops++
		p.Receive(c)
	}
	n.stats.Relayed++
	if len(peers) > 0 {
		n.log.Debugf("Relayed %s to %d peers", msg, len(peers))
	}
}

func (n *Node) deliver(msg *Message, peers []Peer) {
	for _, p := range peers {
		p.Receive(msg.Clone())
		n.stats.Delivered++
	}
}

// clearTail nils the slots past keep so dropped messages can be collected
func clearTail(q []*Message, keep int) {
	for i := keep; i < len(q); i++ {
		q[i] = nil
	}
}
