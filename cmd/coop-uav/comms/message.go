package comms

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

// BroadcastID addresses a message to every agent
const BroadcastID = -1

// Kind identifies a payload variant
type Kind int

const (
	KindBeliefSnapshot Kind = iota + 1
	KindAuctionAnnounce
	KindBid
)

func (k Kind) String() string {
	switch k {
	case KindBeliefSnapshot:
		return "belief_snapshot"
	case KindAuctionAnnounce:
		return "auction_announce"
	case KindBid:
		return "bid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Payload is the closed set of message bodies. Only this package defines
// implementations.
type Payload interface {
	Kind() Kind
	clone() Payload
}

// BeliefSnapshot carries a full copy of the sender's world belief
type BeliefSnapshot struct {
	Belief *belief.WorldBelief
}

func (BeliefSnapshot) Kind() Kind { return KindBeliefSnapshot }

func (p BeliefSnapshot) clone() Payload {
	return BeliefSnapshot{Belief: p.Belief.Clone()}
}

// AuctionAnnounce opens bidding on a task for the enclosed target
type AuctionAnnounce struct {
	Task   tasking.TaskType
	Target *belief.TargetBelief
}

func (AuctionAnnounce) Kind() Kind { return KindAuctionAnnounce }

func (p AuctionAnnounce) clone() Payload {
	return AuctionAnnounce{Task: p.Task, Target: p.Target.Clone()}
}

// Bid answers an announcement with the bidder's suitability score
type Bid struct {
	Task     tasking.TaskType
	TargetID int
	Score    float64
}

func (Bid) Kind() Kind { return KindBid }

func (p Bid) clone() Payload { return p }

// Message is the envelope moved between comms nodes. Nodes never share a
// Message: every hand-off to a peer is a Clone.
type Message struct {
	ID          uuid.UUID
	Origin      int
	Destination int
	Hops        int
	Time        int64
	Payload     Payload
}

// Kind returns the payload variant
func (m *Message) Kind() Kind { return m.Payload.Kind() }

// IsBroadcast reports whether the message is addressed to everyone
func (m *Message) IsBroadcast() bool { return m.Destination == BroadcastID }

// IsFor reports whether the message is unicast to id
func (m *Message) IsFor(id int) bool { return m.Destination == id }

// Clone returns a deep copy of the envelope and payload
func (m *Message) Clone() *Message {
	c := *m
	c.Payload = m.Payload.clone()
	return &c
}

func (m *Message) String() string {
	dest := "all"
	if !m.IsBroadcast() {
		dest = fmt.Sprint(m.Destination)
	}
	return fmt.Sprintf("%s %d->%s hops=%d", m.Kind(), m.Origin, dest, m.Hops)
}
