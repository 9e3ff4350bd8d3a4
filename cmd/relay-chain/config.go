package relaychain

import (
	"fmt"
	"time"
)

// Config holds the configuration for the relay chain demo
type Config struct {
	NumAgents        int
	SpacingM         float64
	CommsRangeM      float64
	RelayProbability float64
	MaxRelayHops     int
	BroadcastEvery   time.Duration
	TickInterval     time.Duration
	MaxTicks         int
	Realtime         bool
}

// DefaultConfig returns a three agent chain where only neighbours can talk
func DefaultConfig() *Config {
	return &Config{
		NumAgents:        3,
		SpacingM:         200,
		CommsRangeM:      250,
		RelayProbability: 1,
		MaxRelayHops:     3,
		BroadcastEvery:   2 * time.Second,
		TickInterval:     100 * time.Millisecond,
		MaxTicks:         100,
	}
}

// ValidateAndParse validates and parses the raw parameters into a Config
func ValidateAndParse(params map[string]interface{}) (*Config, error) {
	config := DefaultConfig()

	// Parse num_agents
	if v, ok := params["num_agents"]; ok {
		switch val := v.(type) {
		case int:
			config.NumAgents = val
		case float64:
			config.NumAgents = int(val)
		default:
			return nil, fmt.Errorf("num_agents must be an integer")
		}
	}
	if config.NumAgents < 2 || config.NumAgents > 10 {
		return nil, fmt.Errorf("num_agents must be between 2 and 10")
	}

	// Parse spacing_m
	if v, ok := params["spacing_m"]; ok {
		f, err := toFloat("spacing_m", v)
		if err != nil {
			return nil, err
		}
		config.SpacingM = f
	}
	if config.SpacingM < 2*sensorRangeM {
		return nil, fmt.Errorf("spacing_m must be at least %.0f so only the first agent sees the target", 2*sensorRangeM)
	}

	// Parse comms_range_m
	if v, ok := params["comms_range_m"]; ok {
		f, err := toFloat("comms_range_m", v)
		if err != nil {
			return nil, err
		}
		config.CommsRangeM = f
	}
	if config.CommsRangeM <= 0 {
		return nil, fmt.Errorf("comms_range_m must be positive")
	}

	// Parse relay_probability
	if v, ok := params["relay_probability"]; ok {
		f, err := toFloat("relay_probability", v)
		if err != nil {
			return nil, err
		}
		config.RelayProbability = f
	}
	if config.RelayProbability < 0 || config.RelayProbability > 1 {
		return nil, fmt.Errorf("relay_probability must be between 0 and 1")
	}

	// Parse max_relay_hops
	if v, ok := params["max_relay_hops"]; ok {
		switch val := v.(type) {
		case int:
			config.MaxRelayHops = val
		case float64:
			config.MaxRelayHops = int(val)
		default:
			return nil, fmt.Errorf("max_relay_hops must be an integer")
		}
	}
	if config.MaxRelayHops < 0 {
		return nil, fmt.Errorf("max_relay_hops cannot be negative")
	}

	// Parse broadcast_interval
	if v, ok := params["broadcast_interval"]; ok {
		d, err := toDuration("broadcast_interval", v)
		if err != nil {
			return nil, err
		}
		config.BroadcastEvery = d
	}
	if config.BroadcastEvery <= 0 {
		return nil, fmt.Errorf("broadcast_interval must be positive")
	}

	// Parse tick_interval
	if v, ok := params["tick_interval"]; ok {
		d, err := toDuration("tick_interval", v)
		if err != nil {
			return nil, err
		}
		config.TickInterval = d
	}
	if config.TickInterval < time.Millisecond || config.TickInterval > time.Second {
		return nil, fmt.Errorf("tick_interval must be between 1ms and 1s")
	}

	// Parse max_ticks
	if v, ok := params["max_ticks"]; ok {
		switch val := v.(type) {
		case int:
			config.MaxTicks = val
		case float64:
			config.MaxTicks = int(val)
		default:
			return nil, fmt.Errorf("max_ticks must be an integer")
		}
	}
	if config.MaxTicks < 1 {
		return nil, fmt.Errorf("max_ticks must be positive")
	}

	// Parse realtime
	if v, ok := params["realtime"]; ok {
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("realtime must be a boolean")
		}
		config.Realtime = b
	}

	return config, nil
}

func toFloat(name string, v interface{}) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}

// toDuration accepts a duration string or a number of seconds
func toDuration(name string, v interface{}) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case int:
		return time.Duration(val) * time.Second, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid %s format: %w", name, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("%s must be a duration", name)
	}
}
