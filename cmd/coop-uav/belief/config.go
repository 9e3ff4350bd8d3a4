package belief

import "fmt"

// Config controls fusion and the periodic broadcast
type Config struct {
	// Alpha is the weight given to the fresher source in a merge
	Alpha float64

	NumTargetTypes int

	// ProbabilityFloor clamps target type probabilities away from 0 and 1.
	// Zero disables clamping.
	ProbabilityFloor float64

	// ConfidenceDecayPerSec is subtracted from target confidence per
	// simulated second
	ConfidenceDecayPerSec float64

	// BroadcastIntervalMs is the simulated time between belief broadcasts
	BroadcastIntervalMs int64

	// WorldKnownUncertainty is the mean entropy at or below which an agent
	// believes the whole world has been explored
	WorldKnownUncertainty float64
}

// DefaultConfig returns the default fusion settings
func DefaultConfig() Config {
	return Config{
		Alpha:                 0.5,
		NumTargetTypes:        2,
		ProbabilityFloor:      0.001,
		ConfidenceDecayPerSec: 0.02,
		BroadcastIntervalMs:   1000,
		WorldKnownUncertainty: 0.2,
	}
}

// Validate checks the settings
func (c Config) Validate() error {
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0,1], got %v", c.Alpha)
	}
	if c.NumTargetTypes < 1 {
		return fmt.Errorf("num_target_types must be at least 1")
	}
	if c.ProbabilityFloor < 0 || c.ProbabilityFloor >= 0.5 {
		return fmt.Errorf("probability_floor must be in [0,0.5), got %v", c.ProbabilityFloor)
	}
	if c.ConfidenceDecayPerSec < 0 {
		return fmt.Errorf("confidence_decay_per_sec cannot be negative")
	}
	if c.BroadcastIntervalMs <= 0 {
		return fmt.Errorf("broadcast_interval_ms must be positive")
	}
	return nil
}
