package comms

import (
	"sort"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/geo"
)

// Network is the default PeerLocator: every registered node is reachable when
// its current location lies inside the caller's coverage.
type Network struct {
	nodes []*Node
}

// NewNetwork returns an empty network
func NewNetwork() *Network {
	return &Network{}
}

// Add registers n. Nodes are kept in ascending ID order.
func (net *Network) Add(n *Node) {
	net.nodes = append(net.nodes, n)
	sort.Slice(net.nodes, func(i, j int) bool { return net.nodes[i].ID() < net.nodes[j].ID() })
}

// Nodes returns the registered nodes in ID order
func (net *Network) Nodes() []*Node {
	return net.nodes
}

// PeersInRange implements PeerLocator
func (net *Network) PeersInRange(area geo.Circle, exclude int) []Peer {
	var peers []Peer
	for _, n := range net.nodes {
		if n.ID() == exclude {
			continue
		}
		if area.Contains(n.Location()) {
			peers = append(peers, n)
		}
	}
	return peers
}

// Stats sums the counters of every node
func (net *Network) Stats() Stats {
	var total Stats
	for _, n := range net.nodes {
		s := n.Stats()
		total.Transmitted += s.Transmitted
		total.Delivered += s.Delivered
		total.Relayed += s.Relayed
		total.RelayDropped += s.RelayDropped
		total.HopLimitDropped += s.HopLimitDropped
		total.Evicted += s.Evicted
	}
	return total
}
