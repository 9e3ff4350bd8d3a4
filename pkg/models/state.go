package models

// StateUpdate is the per-tick snapshot mirrored to observers
type StateUpdate struct {
	Tick    int64         `json:"tick"`
	TimeMs  int64         `json:"time_ms"`
	Agents  []AgentState  `json:"agents"`
	Targets []TargetState `json:"targets"`
	Comms   CommsStats    `json:"comms"`
}

// AgentState is one UAV's pose and tasking at the end of a tick
type AgentState struct {
	ID         int     `json:"id"`
	North      float64 `json:"north"`
	East       float64 `json:"east"`
	Heading    float64 `json:"heading"`
	Mode       string  `json:"mode"`
	Task       string  `json:"task,omitempty"`
	TargetID   int     `json:"target_id"`
	QueueDepth int     `json:"queue_depth"`
	Ammo       int     `json:"ammo"`
}

// TargetState is one target's ground truth at the end of a tick
type TargetState struct {
	ID        int     `json:"id"`
	Type      int     `json:"type"`
	North     float64 `json:"north"`
	East      float64 `json:"east"`
	Destroyed bool    `json:"destroyed"`
}

// CommsStats aggregates message counters across the fleet
type CommsStats struct {
	Transmitted     int64 `json:"transmitted"`
	Delivered       int64 `json:"delivered"`
	Relayed         int64 `json:"relayed"`
	RelayDropped    int64 `json:"relay_dropped"`
	HopLimitDropped int64 `json:"hop_limit_dropped"`
	Evicted         int64 `json:"evicted"`
}

// Add accumulates o into s
func (s *CommsStats) Add(o CommsStats) {
	s.Transmitted += o.Transmitted
	s.Delivered += o.Delivered
	s.Relayed += o.Relayed
	s.RelayDropped += o.RelayDropped
	s.HopLimitDropped += o.HopLimitDropped
	s.Evicted += o.Evicted
}
