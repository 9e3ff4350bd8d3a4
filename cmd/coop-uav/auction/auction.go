// Package auction runs the decentralized bidding each agent uses to claim
// monitor and attack tasks. There is no auctioneer: an announcement invites
// bids, bids fold into the agent's task status, and ownership settles as task
// statuses converge through belief merges.
package auction

import (
	"fmt"
	"sort"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

// Phase is where an agent's auction stands
type Phase int

const (
	Announced Phase = iota
	Bidding
	Won
	Lost
	Completed
)

func (p Phase) String() string {
	switch p {
	case Announced:
		return "announced"
	case Bidding:
		return "bidding"
	case Won:
		return "won"
	case Lost:
		return "lost"
	case Completed:
		return "complete"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Key identifies an auction on one agent
type Key struct {
	Task     tasking.TaskType
	TargetID int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Task, k.TargetID)
}

// Auction is one agent's view of the bidding for a task
type Auction struct {
	Key       Key
	Phase     Phase
	StartedAt int64
	Announcer int

	// Bids received from other agents, by bidder
	Bids map[int]float64
}

// Active reports whether the auction has not reached completion
func (a *Auction) Active() bool {
	return a.Phase != Completed
}

// Transition records a phase change produced by Step or Complete
type Transition struct {
	Key  Key
	From Phase
	To   Phase
}

// Transmitter sends payloads; *comms.Node satisfies it
type Transmitter interface {
	Transmit(payload comms.Payload, dest int, now int64) *comms.Message
}

// Scorer rates how well the owning agent suits a task. ok is false when the
// agent cannot perform it at all.
type Scorer interface {
	Score(task tasking.TaskType, target *belief.TargetBelief) (score float64, ok bool)
}

// Manager runs the auctions of one agent
type Manager struct {
	agentID  int
	beliefs  *belief.Store
	tx       Transmitter
	scorer   Scorer
	auctions map[Key]*Auction
	log      logger.Logger
}

// NewManager creates the auction manager for agentID
func NewManager(agentID int, beliefs *belief.Store, tx Transmitter, scorer Scorer) *Manager {
	if beliefs == nil || tx == nil || scorer == nil {
		panic("auction: nil collaborator")
	}
	return &Manager{
		agentID:  agentID,
		beliefs:  beliefs,
		tx:       tx,
		scorer:   scorer,
		auctions: make(map[Key]*Auction),
		log:      logger.WithPrefix("auction").WithField("agent", agentID),
	}
}

// Auction returns the auction for key, if any
func (m *Manager) Auction(key Key) (*Auction, bool) {
	a, ok := m.auctions[key]
	return a, ok
}

// Keys returns every auction key in a stable order
func (m *Manager) Keys() []Key {
	keys := make([]Key, 0, len(m.auctions))
	for k := range m.auctions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TargetID != keys[j].TargetID {
			return keys[i].TargetID < keys[j].TargetID
		}
		return keys[i].Task < keys[j].Task
	})
	return keys
}

// StartAuction announces task for a target this agent knows about. It fails
// if an auction for the same key is still active on this agent.
func (m *Manager) StartAuction(task tasking.TaskType, targetID int, now int64) bool {
	key := Key{Task: task, TargetID: targetID}
	if a, ok := m.auctions[key]; ok && a.Active() {
		m.log.Warnf("Auction %s already %s, not restarting", key, a.Phase)
		return false
	}
	target, ok := m.beliefs.Target(targetID)
	if !ok {
		panic(fmt.Sprintf("auction: start for unknown target %d", targetID))
	}

	a := &Auction{Key: key, Phase: Announced, StartedAt: now, Announcer: m.agentID, Bids: make(map[int]float64)}
	m.auctions[key] = a

	if score, ok := m.scorer.Score(task, target); ok {
		m.claim(target, task, score, now)
		a.Phase = Bidding
	}
	m.tx.Transmit(comms.AuctionAnnounce{Task: task, Target: target.Clone()}, comms.BroadcastID, now)
	m.log.Debugf("Announced %s", key)
	return true
}

// OnAnnounce handles an announcement from another agent: adopt its view of
// the target and, unless already competing, answer with a bid.
func (m *Manager) OnAnnounce(msg *comms.Message, now int64) bool {
	ann, ok := msg.Payload.(comms.AuctionAnnounce)
	if !ok || msg.Origin == m.agentID {
		return false
	}
	m.beliefs.MergeTarget(ann.Target)

	key := Key{Task: ann.Task, TargetID: ann.Target.ID}
	if a, ok := m.auctions[key]; ok && a.Active() {
		return false
	}
	target, _ := m.beliefs.Target(key.TargetID)
	if target.Status.Record(key.Task).State == tasking.Complete {
		return false
	}
	score, ok := m.scorer.Score(key.Task, target)
	if !ok {
		return false
	}

	m.auctions[key] = &Auction{Key: key, Phase: Bidding, StartedAt: now, Announcer: msg.Origin, Bids: make(map[int]float64)}
	m.claim(target, key.Task, score, now)
	m.tx.Transmit(comms.Bid{Task: key.Task, TargetID: key.TargetID, Score: score}, msg.Origin, now)
	m.log.Debugf("Bid %.3f on %s announced by %d", score, key, msg.Origin)
	return true
}

// OnBid records a bid addressed to this agent and folds it into the local
// task status
func (m *Manager) OnBid(msg *comms.Message) bool {
	bid, ok := msg.Payload.(comms.Bid)
	if !ok || msg.Origin == m.agentID {
		return false
	}
	key := Key{Task: bid.Task, TargetID: bid.TargetID}
	if a, ok := m.auctions[key]; ok {
		a.Bids[msg.Origin] = bid.Score
	}
	target, ok := m.beliefs.Target(bid.TargetID)
	if !ok {
		return false
	}
	return target.Status.Record(bid.Task).Merge(tasking.TaskRecord{
		AgentID:   msg.Origin,
		Score:     bid.Score,
		State:     tasking.Bidding,
		Timestamp: msg.Time,
	})
}

// Bid claims an open task without announcing it. The claim spreads with the
// next belief snapshot. It fails when the task is complete, the agent cannot
// perform it or its score does not beat the current holder.
func (m *Manager) Bid(task tasking.TaskType, targetID int, now int64) (float64, bool) {
	target, ok := m.beliefs.Target(targetID)
	if !ok || target.Status.Destroyed {
		return 0, false
	}
	rec := target.Status.Record(task)
	if rec.State == tasking.Complete {
		return 0, false
	}
	score, ok := m.scorer.Score(task, target)
	if !ok || score <= rec.Score {
		return 0, false
	}

	key := Key{Task: task, TargetID: targetID}
	a, exists := m.auctions[key]
	if !exists || !a.Active() {
		a = &Auction{Key: key, StartedAt: now, Announcer: rec.AgentID, Bids: make(map[int]float64)}
		m.auctions[key] = a
	}
	a.Phase = Bidding
	m.claim(target, task, score, now)
	return score, true
}

// Step resolves every active auction against the local task status
func (m *Manager) Step(now int64) []Transition {
	var out []Transition
	for _, key := range m.Keys() {
		a := m.auctions[key]
		if !a.Active() {
			continue
		}
		target, ok := m.beliefs.Target(key.TargetID)
		if !ok {
			continue
		}
		rec := target.Status.Record(key.Task)

		next := a.Phase
		switch {
		case rec.State == tasking.Complete:
			next = Completed
		case rec.AgentID == m.agentID:
			next = Won
			if rec.State == tasking.Bidding {
				rec.State = tasking.Assigned
				rec.Timestamp = now
			}
		case rec.Claimed():
			next = Lost
		}
		if next != a.Phase {
			out = append(out, Transition{Key: key, From: a.Phase, To: next})
			a.Phase = next
		}
	}
	return out
}

// Complete marks this agent's task on a target done. destroyed also marks
// the target destroyed.
func (m *Manager) Complete(task tasking.TaskType, targetID int, destroyed bool, now int64) (Transition, bool) {
	target, ok := m.beliefs.Target(targetID)
	if !ok {
		return Transition{}, false
	}
	target.Status.Complete(task, m.agentID, now)
	if destroyed {
		target.Status.Destroyed = true
	}

	key := Key{Task: task, TargetID: targetID}
	a, ok := m.auctions[key]
	if !ok || !a.Active() {
		return Transition{}, false
	}
	t := Transition{Key: key, From: a.Phase, To: Completed}
	a.Phase = Completed
	return t, true
}

// Won returns the keys of every auction this agent currently holds
func (m *Manager) Won() []Key {
	var out []Key
	for _, key := range m.Keys() {
		if m.auctions[key].Phase == Won {
			out = append(out, key)
		}
	}
	return out
}

func (m *Manager) claim(target *belief.TargetBelief, task tasking.TaskType, score float64, now int64) {
	target.Status.Record(task).Merge(tasking.TaskRecord{
		AgentID:   m.agentID,
		Score:     score,
		State:     tasking.Bidding,
		Timestamp: now,
	})
}
