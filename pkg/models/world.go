package models

// WorldInit describes the static world and fleet sent to an observer when it
// connects.
type WorldInit struct {
	RunID          string       `json:"run_id"`
	Simulation     string       `json:"simulation"`
	Seed           int64        `json:"seed"`
	Rows           int          `json:"rows"`
	Cols           int          `json:"cols"`
	CellSizeM      float64      `json:"cell_size_m"`
	NumTargetTypes int          `json:"num_target_types"`
	TickMs         int64        `json:"tick_ms"`
	CommsRangeM    float64      `json:"comms_range_m"`
	Agents         []AgentInfo  `json:"agents"`
	Targets        []TargetInfo `json:"targets"`
}

// AgentInfo is the static description of one UAV
type AgentInfo struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	HasWeapon   bool    `json:"has_weapon"`
	SpeedMps    float64 `json:"speed_mps"`
	SensorRange float64 `json:"sensor_range_m"`
}

// TargetInfo is the ground-truth description of one target
type TargetInfo struct {
	ID    int     `json:"id"`
	Type  int     `json:"type"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// SimTime announces the simulation clock
type SimTime struct {
	Tick   int64 `json:"tick"`
	TimeMs int64 `json:"time_ms"`
}

// SetStepRate asks the simulation to pace ticks. Zero or negative runs
// unpaced; 1.0 is real time.
type SetStepRate struct {
	RealtimeFactor float64 `json:"realtime_factor"`
}

// Shutdown signals the end of a run
type Shutdown struct {
	Reason string `json:"reason"`
	Tick   int64  `json:"tick"`
}
