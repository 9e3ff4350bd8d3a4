package auction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/tasking"
)

type sent struct {
	payload comms.Payload
	dest    int
}

type recorder struct {
	origin int
	out    []sent
}

func (r *recorder) Transmit(p comms.Payload, dest int, now int64) *comms.Message {
	r.out = append(r.out, sent{payload: p, dest: dest})
	return &comms.Message{Origin: r.origin, Destination: dest, Time: now, Payload: p}
}

// last returns the most recent transmission as a received message
func (r *recorder) last() *comms.Message {
	return r.out[len(r.out)-1].toMessage(r.origin)
}

func (s sent) toMessage(origin int) *comms.Message {
	return &comms.Message{Origin: origin, Destination: s.dest, Payload: s.payload}
}

type fixedScorer map[tasking.TaskType]float64

func (f fixedScorer) Score(task tasking.TaskType, _ *belief.TargetBelief) (float64, bool) {
	s, ok := f[task]
	return s, ok
}

type agent struct {
	id    int
	store *belief.Store
	tx    *recorder
	mgr   *Manager
}

func newAgent(id int, scores fixedScorer) *agent {
	store := belief.NewStore(belief.DefaultConfig(), id, 2, 2)
	tx := &recorder{origin: id}
	return &agent{id: id, store: store, tx: tx, mgr: NewManager(id, store, tx, scores)}
}

func (a *agent) sees(targetID int) {
	a.store.ObserveTarget(belief.Observation{TargetID: targetID, TypeIndex: 0, TypeProb: 0.9, Confidence: 1}, 10)
}

func TestStartAuctionIsIdempotentUntilComplete(t *testing.T) {
	a := newAgent(1, fixedScorer{tasking.Monitor: 0.5})
	a.sees(7)

	require.True(t, a.mgr.StartAuction(tasking.Monitor, 7, 100))
	assert.False(t, a.mgr.StartAuction(tasking.Monitor, 7, 200))
	assert.False(t, a.mgr.StartAuction(tasking.Monitor, 7, 300))
	assert.Len(t, a.tx.out, 1, "only one announcement goes out")

	ann, ok := a.tx.out[0].payload.(comms.AuctionAnnounce)
	require.True(t, ok)
	assert.Equal(t, comms.BroadcastID, a.tx.out[0].dest)
	assert.Equal(t, 7, ann.Target.ID)

	auc, _ := a.mgr.Auction(Key{Task: tasking.Monitor, TargetID: 7})
	assert.Equal(t, Bidding, auc.Phase)

	// A different task on the same target is a different auction.
	assert.True(t, a.mgr.StartAuction(tasking.Attack, 7, 300))
	auc, _ = a.mgr.Auction(Key{Task: tasking.Attack, TargetID: 7})
	assert.Equal(t, Announced, auc.Phase, "no attack capability, no self bid")

	_, ok = a.mgr.Complete(tasking.Monitor, 7, false, 400)
	require.True(t, ok)
	assert.True(t, a.mgr.StartAuction(tasking.Monitor, 7, 500))
}

func TestStartAuctionUnknownTargetPanics(t *testing.T) {
	a := newAgent(1, fixedScorer{})
	assert.Panics(t, func() { a.mgr.StartAuction(tasking.Monitor, 99, 0) })
}

func TestAnnounceBidResolve(t *testing.T) {
	announcer := newAgent(1, fixedScorer{tasking.Monitor: 0.4})
	bidder := newAgent(2, fixedScorer{tasking.Monitor: 0.8})
	announcer.sees(5)

	require.True(t, announcer.mgr.StartAuction(tasking.Monitor, 5, 100))
	require.True(t, bidder.mgr.OnAnnounce(announcer.tx.last(), 110))

	// The bidder learned the target from the announcement and claims it.
	tb, ok := bidder.store.Target(5)
	require.True(t, ok)
	assert.Equal(t, 2, tb.Status.Monitor.AgentID)

	bidMsg := bidder.tx.last()
	assert.Equal(t, 1, bidMsg.Destination)
	bid := bidMsg.Payload.(comms.Bid)
	assert.Equal(t, 0.8, bid.Score)

	// Same announcement again: already competing.
	assert.False(t, bidder.mgr.OnAnnounce(announcer.tx.out[0].toMessage(1), 120))

	require.True(t, announcer.mgr.OnBid(bidMsg))
	auc, _ := announcer.mgr.Auction(Key{Task: tasking.Monitor, TargetID: 5})
	assert.Equal(t, 0.8, auc.Bids[2])

	trans := announcer.mgr.Step(130)
	require.Len(t, trans, 1)
	assert.Equal(t, Transition{Key: Key{tasking.Monitor, 5}, From: Bidding, To: Lost}, trans[0])

	trans = bidder.mgr.Step(130)
	require.Len(t, trans, 1)
	assert.Equal(t, Won, trans[0].To)
	tb, _ = bidder.store.Target(5)
	assert.Equal(t, tasking.Assigned, tb.Status.Monitor.State)
	assert.Equal(t, []Key{{tasking.Monitor, 5}}, bidder.mgr.Won())

	// Nothing changes without new information.
	assert.Empty(t, bidder.mgr.Step(140))
}

func TestCompletionSpreadsAndTerminates(t *testing.T) {
	a := newAgent(1, fixedScorer{tasking.Attack: 0.9})
	b := newAgent(2, fixedScorer{tasking.Attack: 0.3})
	a.sees(3)
	require.True(t, a.mgr.StartAuction(tasking.Attack, 3, 0))
	require.True(t, b.mgr.OnAnnounce(a.tx.last(), 5))

	b.mgr.Step(10)
	a.mgr.Step(10)

	tr, ok := a.mgr.Complete(tasking.Attack, 3, true, 50)
	require.True(t, ok)
	assert.Equal(t, Completed, tr.To)

	// b learns of the completion through a belief merge.
	b.store.Merge(a.store.Snapshot())
	trans := b.mgr.Step(60)
	require.Len(t, trans, 1)
	assert.Equal(t, Completed, trans[0].To)

	tb, _ := b.store.Target(3)
	assert.True(t, tb.Status.Destroyed)
	assert.Equal(t, 1, tb.Status.Attack.AgentID)

	// Announcements for completed tasks draw no bids.
	c := newAgent(3, fixedScorer{tasking.Attack: 1})
	c.store.Merge(a.store.Snapshot())
	assert.False(t, c.mgr.OnAnnounce(a.tx.out[0].toMessage(1), 70))
}

func TestOwnMessagesIgnored(t *testing.T) {
	a := newAgent(1, fixedScorer{tasking.Monitor: 0.5})
	a.sees(2)
	a.mgr.StartAuction(tasking.Monitor, 2, 0)
	assert.False(t, a.mgr.OnAnnounce(a.tx.last(), 1))
	assert.False(t, a.mgr.OnBid(&comms.Message{Origin: 1, Destination: 1, Payload: comms.Bid{TargetID: 2, Score: 9}}))
}

func TestBidOnOpenTask(t *testing.T) {
	holder := newAgent(1, fixedScorer{tasking.Monitor: 0.4})
	holder.sees(5)
	require.True(t, holder.mgr.StartAuction(tasking.Monitor, 5, 0))

	weak := newAgent(2, fixedScorer{tasking.Monitor: 0.3})
	weak.store.Merge(holder.store.Snapshot())
	_, ok := weak.mgr.Bid(tasking.Monitor, 5, 10)
	assert.False(t, ok, "does not beat the holder")
	_, ok = weak.mgr.Bid(tasking.Monitor, 99, 10)
	assert.False(t, ok, "unknown target")

	strong := newAgent(3, fixedScorer{tasking.Monitor: 0.8})
	strong.store.Merge(holder.store.Snapshot())
	score, ok := strong.mgr.Bid(tasking.Monitor, 5, 10)
	require.True(t, ok)
	assert.Equal(t, 0.8, score)
	assert.Empty(t, strong.tx.out, "bids on open tasks are not announced")

	trans := strong.mgr.Step(20)
	require.Len(t, trans, 1)
	assert.Equal(t, Transition{Key: Key{tasking.Monitor, 5}, From: Bidding, To: Won}, trans[0])

	// The former holder loses once the stronger claim reaches it, and can
	// win the task back with a better score.
	holder.store.Merge(strong.store.Snapshot())
	trans = holder.mgr.Step(30)
	require.Len(t, trans, 1)
	assert.Equal(t, Lost, trans[0].To)

	holder.mgr.scorer = fixedScorer{tasking.Monitor: 0.9}
	_, ok = holder.mgr.Bid(tasking.Monitor, 5, 40)
	require.True(t, ok)
	auc, _ := holder.mgr.Auction(Key{Task: tasking.Monitor, TargetID: 5})
	assert.Equal(t, Bidding, auc.Phase)

	holder.mgr.Complete(tasking.Monitor, 5, false, 50)
	_, ok = holder.mgr.Bid(tasking.Monitor, 5, 60)
	assert.False(t, ok, "complete tasks take no bids")
}
