package config

import (
	"fmt"
	"time"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/belief"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/comms"
	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/core"
)

// SimulationConfig holds the complete simulation configuration
type SimulationConfig struct {
	// Basic simulation settings
	Simulation SimulationSettings `yaml:"simulation"`

	// Search area
	World WorldConfig `yaml:"world"`

	// UAV fleet
	Fleet FleetConfig `yaml:"fleet"`

	// Ground truth targets
	Targets TargetsConfig `yaml:"targets"`

	// Sensor model
	Sensor SensorConfig `yaml:"sensor"`

	// Radio model
	Comms CommsConfig `yaml:"comms"`

	// Belief fusion
	Belief BeliefConfig `yaml:"belief"`

	// Task allocation
	Tasking TaskingConfig `yaml:"tasking"`

	// Engagement parameters
	Engagement EngagementConfig `yaml:"engagement"`

	// Observer mirror
	Mirror MirrorConfig `yaml:"mirror"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// SimulationSettings holds basic simulation settings
type SimulationSettings struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	TickInterval time.Duration `yaml:"tick_interval"`
	MaxTicks     int           `yaml:"max_ticks"`
	Seed         int64         `yaml:"seed"`

	// RealtimeFactor paces ticks against the wall clock; 0 runs unpaced
	RealtimeFactor float64 `yaml:"realtime_factor"`

	// RequireExploration keeps the run going after the strike ends until
	// every target has been found and half the fleet believes the world known
	RequireExploration bool `yaml:"require_exploration"`
}

// WorldConfig defines the search grid
type WorldConfig struct {
	Rows           int     `yaml:"rows"`
	Cols           int     `yaml:"cols"`
	CellSizeM      float64 `yaml:"cell_size_m"`
	NumTargetTypes int     `yaml:"num_target_types"`
}

// FleetConfig defines the UAVs
type FleetConfig struct {
	NumAgents      int     `yaml:"num_agents"`
	SpeedMps       float64 `yaml:"speed_mps"`
	SensorRangeM   float64 `yaml:"sensor_range_m"`
	ArmedFraction  float64 `yaml:"armed_fraction"` // 0.0 to 1.0
	AmmoCapacity   int     `yaml:"ammo_capacity"`
	LaunchPattern  string  `yaml:"launch_pattern"` // "line", "corner", "random"
	SearchPattern  string  `yaml:"search_pattern"` // "random", "lawnmower", "uncertain"
	ArrivalRadiusM float64 `yaml:"arrival_radius_m"`
}

// TargetsConfig defines the ground truth targets
type TargetsConfig struct {
	Count int `yaml:"count"`

	// TypeWeights sets the relative frequency of each target type. Empty
	// means uniform.
	TypeWeights []float64 `yaml:"type_weights,omitempty"`
}

// SensorConfig defines the detection model
type SensorConfig struct {
	DetectionProbability   float64 `yaml:"detection_probability"`
	FalseAlarmProbability  float64 `yaml:"false_alarm_probability"` // false tracks per agent per second
	ClassificationAccuracy float64 `yaml:"classification_accuracy"`
}

// CommsConfig defines the radio model
type CommsConfig struct {
	MaxRangeM        float64 `yaml:"max_range_m"`
	MaxRelayHops     int     `yaml:"max_relay_hops"`
	RelayProbability float64 `yaml:"relay_probability"` // 0.0 to 1.0
	MaxQueueLength   int     `yaml:"max_queue_length"`
}

// BeliefConfig defines belief fusion
type BeliefConfig struct {
	Alpha                 float64       `yaml:"alpha"`
	BroadcastInterval     time.Duration `yaml:"broadcast_interval"`
	ConfidenceDecayPerSec float64       `yaml:"confidence_decay_per_sec"`
	ProbabilityFloor      float64       `yaml:"probability_floor"`
	WorldKnownUncertainty float64       `yaml:"world_known_uncertainty"`
}

// TaskingConfig defines task allocation
type TaskingConfig struct {
	MonitorDwell      time.Duration `yaml:"monitor_dwell"`
	ScoreDistanceRefM float64       `yaml:"score_distance_ref_m"`

	// DetectionThreshold is the type confidence at which a sighting is
	// treated as a target worth announcing
	DetectionThreshold float64 `yaml:"detection_threshold"`
}

// EngagementConfig defines engagement parameters
type EngagementConfig struct {
	RangeM          float64   `yaml:"range_m"`
	KillProbability float64   `yaml:"kill_probability"`
	TypeModifiers   []float64 `yaml:"type_modifiers,omitempty"`
}

// MirrorConfig defines the observer mirror
type MirrorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
	QueueSize  int    `yaml:"queue_size"`
	Compress   bool   `yaml:"compress"`
}

// LoggingConfig defines logging and reporting settings
type LoggingConfig struct {
	ConsoleLevel    string `yaml:"console_level"` // "debug", "info", "warn", "error"
	EnableReport    bool   `yaml:"enable_report"`
	ReportFormat    string `yaml:"report_format"` // "json", "markdown", "both"
	OutputPath      string `yaml:"output_path"`
	EventBufferSize int    `yaml:"event_buffer_size"`
	RecordEvents    bool   `yaml:"record_events"`
	RunIndex        bool   `yaml:"run_index"`
}

// Validate checks if the configuration is valid
func (c *SimulationConfig) Validate() error {
	if c.Simulation.Name == "" {
		return fmt.Errorf("simulation name is required")
	}

	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}

	if c.Simulation.MaxTicks <= 0 {
		return fmt.Errorf("max ticks must be positive")
	}

	if c.World.Rows <= 0 || c.World.Cols <= 0 || c.World.CellSizeM <= 0 {
		return fmt.Errorf("world grid dimensions must be positive")
	}

	if c.World.NumTargetTypes <= 0 {
		return fmt.Errorf("number of target types must be positive")
	}

	if c.Fleet.NumAgents <= 0 {
		return fmt.Errorf("number of agents must be positive")
	}

	if c.Fleet.SpeedMps <= 0 || c.Fleet.SensorRangeM <= 0 {
		return fmt.Errorf("agent speed and sensor range must be positive")
	}

	if c.Fleet.ArmedFraction < 0 || c.Fleet.ArmedFraction > 1 {
		return fmt.Errorf("armed fraction must be between 0.0 and 1.0")
	}

	switch c.Fleet.LaunchPattern {
	case "line", "corner", "random":
	default:
		return fmt.Errorf("launch pattern must be line, corner or random")
	}

	switch c.Fleet.SearchPattern {
	case "random", "lawnmower", "uncertain":
	default:
		return fmt.Errorf("search pattern must be random, lawnmower or uncertain")
	}

	if c.Targets.Count < 0 {
		return fmt.Errorf("target count cannot be negative")
	}

	if len(c.Targets.TypeWeights) > 0 && len(c.Targets.TypeWeights) != c.World.NumTargetTypes {
		return fmt.Errorf("type weights must have one entry per target type")
	}

	// Validate probability ranges
	for name, p := range map[string]float64{
		"detection probability":   c.Sensor.DetectionProbability,
		"false alarm probability": c.Sensor.FalseAlarmProbability,
		"classification accuracy": c.Sensor.ClassificationAccuracy,
		"relay probability":       c.Comms.RelayProbability,
		"kill probability":        c.Engagement.KillProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be between 0.0 and 1.0", name)
		}
	}

	if c.Comms.MaxRangeM <= 0 {
		return fmt.Errorf("comms range must be positive")
	}

	if c.Comms.MaxRelayHops < 0 {
		return fmt.Errorf("max relay hops cannot be negative")
	}

	if c.Comms.MaxQueueLength < 0 {
		return fmt.Errorf("max queue length cannot be negative")
	}

	if err := c.BeliefSettings().Validate(); err != nil {
		return fmt.Errorf("belief: %w", err)
	}

	if c.Tasking.MonitorDwell < 0 {
		return fmt.Errorf("monitor dwell cannot be negative")
	}

	if c.Mirror.Enabled && c.Mirror.ListenAddr == "" {
		return fmt.Errorf("mirror listen address is required when the mirror is enabled")
	}

	switch c.Logging.ReportFormat {
	case "", "json", "markdown", "both":
	default:
		return fmt.Errorf("report format must be json, markdown or both")
	}

	return nil
}

// TickMs returns the tick interval in simulated milliseconds
func (c *SimulationConfig) TickMs() int64 {
	return c.Simulation.TickInterval.Milliseconds()
}

// BeliefSettings returns the fusion configuration
func (c *SimulationConfig) BeliefSettings() belief.Config {
	return belief.Config{
		Alpha:                 c.Belief.Alpha,
		NumTargetTypes:        c.World.NumTargetTypes,
		ProbabilityFloor:      c.Belief.ProbabilityFloor,
		ConfidenceDecayPerSec: c.Belief.ConfidenceDecayPerSec,
		BroadcastIntervalMs:   c.Belief.BroadcastInterval.Milliseconds(),
		WorldKnownUncertainty: c.Belief.WorldKnownUncertainty,
	}
}

// CommsSettings returns the radio configuration
func (c *SimulationConfig) CommsSettings() comms.Config {
	return comms.Config{
		RangeM:           c.Comms.MaxRangeM,
		MaxRelayHops:     c.Comms.MaxRelayHops,
		RelayProbability: c.Comms.RelayProbability,
		MaxQueueLength:   c.Comms.MaxQueueLength,
	}
}

// EngagementSettings returns the attack model
func (c *SimulationConfig) EngagementSettings() core.EngagementConfig {
	return core.EngagementConfig{
		RangeM:          c.Engagement.RangeM,
		KillProbability: c.Engagement.KillProbability,
		TypeModifiers:   c.Engagement.TypeModifiers,
	}
}

// String returns a human-readable representation of the configuration
func (c *SimulationConfig) String() string {
	return fmt.Sprintf(`Simulation Configuration:
  Name: %s
  Description: %s
  Tick Interval: %v
  Max Ticks: %d
  Seed: %d

World:
  Grid: %dx%d cells of %.0f m
  Target Types: %d
  Targets: %d

Fleet:
  Agents: %d
  Speed: %.1f m/s
  Sensor Range: %.0f m
  Armed Fraction: %.2f
  Ammo Capacity: %d

Comms:
  Range: %.0f m
  Max Relay Hops: %d
  Relay Probability: %.2f
  Max Queue Length: %d

Belief:
  Alpha: %.2f
  Broadcast Interval: %v
  Confidence Decay: %.3f /s

Mirror:
  Enabled: %t
  Listen Address: %s

Logging:
  Console Level: %s
  Report Enabled: %t
  Report Format: %s`,
		c.Simulation.Name,
		c.Simulation.Description,
		c.Simulation.TickInterval,
		c.Simulation.MaxTicks,
		c.Simulation.Seed,
		c.World.Rows,
		c.World.Cols,
		c.World.CellSizeM,
		c.World.NumTargetTypes,
		c.Targets.Count,
		c.Fleet.NumAgents,
		c.Fleet.SpeedMps,
		c.Fleet.SensorRangeM,
		c.Fleet.ArmedFraction,
		c.Fleet.AmmoCapacity,
		c.Comms.MaxRangeM,
		c.Comms.MaxRelayHops,
		c.Comms.RelayProbability,
		c.Comms.MaxQueueLength,
		c.Belief.Alpha,
		c.Belief.BroadcastInterval,
		c.Belief.ConfidenceDecayPerSec,
		c.Mirror.Enabled,
		c.Mirror.ListenAddr,
		c.Logging.ConsoleLevel,
		c.Logging.EnableReport,
		c.Logging.ReportFormat,
	)
}

// GetDefaultConfig returns the default cooperative search-and-strike scenario
func GetDefaultConfig() *SimulationConfig {
	return &SimulationConfig{
		Simulation: SimulationSettings{
			Name:         "coop-uav",
			Description:  "Cooperative UAV search, track and strike with decentralized tasking",
			TickInterval: 100 * time.Millisecond,
			MaxTicks:     6000,
			Seed:         1,
		},

		World: WorldConfig{
			Rows:           20,
			Cols:           20,
			CellSizeM:      50,
			NumTargetTypes: 2,
		},

		Fleet: FleetConfig{
			NumAgents:      6,
			SpeedMps:       20,
			SensorRangeM:   120,
			ArmedFraction:  0.5,
			AmmoCapacity:   2,
			LaunchPattern:  "line",
			SearchPattern:  "random",
			ArrivalRadiusM: 5,
		},

		Targets: TargetsConfig{
			Count: 4,
		},

		Sensor: SensorConfig{
			DetectionProbability:   0.9,
			FalseAlarmProbability:  0.05,
			ClassificationAccuracy: 0.8,
		},

		Comms: CommsConfig{
			MaxRangeM:        300,
			MaxRelayHops:     3,
			RelayProbability: 0.8,
			MaxQueueLength:   256,
		},

		Belief: BeliefConfig{
			Alpha:                 0.5,
			BroadcastInterval:     time.Second,
			ConfidenceDecayPerSec: 0.02,
			ProbabilityFloor:      0.001,
			WorldKnownUncertainty: 0.2,
		},

		Tasking: TaskingConfig{
			MonitorDwell:       5 * time.Second,
			ScoreDistanceRefM:  250,
			DetectionThreshold: 0.6,
		},

		Engagement: EngagementConfig{
			RangeM:          60,
			KillProbability: 0.7,
		},

		Mirror: MirrorConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:8765",
			QueueSize:  64,
			Compress:   true,
		},

		Logging: LoggingConfig{
			ConsoleLevel:    "info",
			EnableReport:    true,
			ReportFormat:    "both",
			OutputPath:      "./runs/",
			EventBufferSize: 10000,
			RecordEvents:    true,
			RunIndex:        true,
		},
	}
}
