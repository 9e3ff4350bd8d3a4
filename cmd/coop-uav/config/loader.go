package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*SimulationConfig, error) {
	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Unset sections keep their defaults
	config := GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads config from file or returns default, with environment overrides
func LoadConfigOrDefault(path string) (*SimulationConfig, error) {
	var config *SimulationConfig
	var err error

	if path != "" {
		config, err = LoadConfig(path)
		if err != nil {
			logger.Warnf("Could not load config from %s: %v", path, err)
			config = nil
		}
	}

	// Try default locations if no config loaded yet
	if config == nil {
		defaultPaths := []string{
			"config.yaml",
			"coop-uav.yaml",
			filepath.Join("cmd", "coop-uav", "config.yaml"),
		}

		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				config, err = LoadConfig(p)
				if err == nil {
					logger.Infof("Loaded config from: %s", p)
					break
				}
			}
		}
	}

	if config == nil {
		logger.Info("Using default configuration")
		config = GetDefaultConfig()
	}

	// Always apply environment variable overrides
	MergeWithEnvironment(config)

	return config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *SimulationConfig, path string) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// MergeWithCLIOverrides applies CLI parameter overrides to the configuration.
// Numeric values may arrive as int, int64 or float64 depending on whether
// they came from a prompt or a YAML manifest default.
func MergeWithCLIOverrides(config *SimulationConfig, overrides map[string]interface{}) {
	for key, value := range overrides {
		switch key {
		case "num_agents":
			if count, ok := asInt(value); ok && count > 0 {
				config.Fleet.NumAgents = count
			}
		case "num_targets":
			if count, ok := asInt(value); ok && count >= 0 {
				config.Targets.Count = count
			}
		case "seed":
			if seed, ok := asInt(value); ok {
				config.Simulation.Seed = int64(seed)
			}
		case "max_ticks":
			if ticks, ok := asInt(value); ok && ticks > 0 {
				config.Simulation.MaxTicks = ticks
			}
		case "grid_size":
			if size, ok := asInt(value); ok && size > 0 {
				config.World.Rows = size
				config.World.Cols = size
			}
		case "armed_fraction":
			if frac, ok := asFloat(value); ok && frac >= 0 && frac <= 1 {
				config.Fleet.ArmedFraction = frac
			}
		case "comms_range_m":
			if r, ok := asFloat(value); ok && r > 0 {
				config.Comms.MaxRangeM = r
			}
		case "max_relay_hops":
			if hops, ok := asInt(value); ok && hops >= 0 {
				config.Comms.MaxRelayHops = hops
			}
		case "relay_probability":
			if prob, ok := asFloat(value); ok && prob >= 0 && prob <= 1 {
				config.Comms.RelayProbability = prob
			}
		case "alpha":
			if alpha, ok := asFloat(value); ok && alpha > 0 && alpha <= 1 {
				config.Belief.Alpha = alpha
			}
		case "realtime_factor":
			if f, ok := asFloat(value); ok && f >= 0 {
				config.Simulation.RealtimeFactor = f
			}
		case "tick_interval":
			switch v := value.(type) {
			case time.Duration:
				if v > 0 {
					config.Simulation.TickInterval = v
				}
			case string:
				if d, err := time.ParseDuration(v); err == nil && d > 0 {
					config.Simulation.TickInterval = d
				}
			}
		case "search_pattern":
			if pattern, ok := value.(string); ok {
				for _, valid := range []string{"random", "lawnmower", "uncertain"} {
					if pattern == valid {
						config.Fleet.SearchPattern = pattern
						break
					}
				}
			}
		case "launch_pattern":
			if pattern, ok := value.(string); ok {
				for _, valid := range []string{"line", "corner", "random"} {
					if pattern == valid {
						config.Fleet.LaunchPattern = pattern
						break
					}
				}
			}
		case "mirror_addr":
			if addr, ok := value.(string); ok && addr != "" {
				config.Mirror.Enabled = true
				config.Mirror.ListenAddr = addr
			}
		case "output_path":
			if path, ok := value.(string); ok && path != "" {
				config.Logging.OutputPath = path
			}
		case "require_exploration":
			if require, ok := value.(bool); ok {
				config.Simulation.RequireExploration = require
			}
		case "enable_report":
			if enable, ok := value.(bool); ok {
				config.Logging.EnableReport = enable
			}
		case "log_level":
			if level, ok := value.(string); ok {
				for _, valid := range []string{"debug", "info", "warn", "error"} {
					if level == valid {
						config.Logging.ConsoleLevel = level
						break
					}
				}
			}
		}
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// LoadConfigWithOverrides loads config and applies both environment and CLI overrides
func LoadConfigWithOverrides(path string, cliOverrides map[string]interface{}) (*SimulationConfig, error) {
	config, err := LoadConfigOrDefault(path)
	if err != nil {
		return nil, err
	}

	// Apply CLI overrides after environment variables
	if cliOverrides != nil {
		MergeWithCLIOverrides(config, cliOverrides)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed after overrides: %w", err)
	}

	return config, nil
}

// MergeWithEnvironment merges config with SWARM_* environment variables
func MergeWithEnvironment(config *SimulationConfig) {
	if seed := os.Getenv("SWARM_SEED"); seed != "" {
		if s, err := strconv.ParseInt(seed, 10, 64); err == nil {
			config.Simulation.Seed = s
		}
	}

	if ticks := os.Getenv("SWARM_MAX_TICKS"); ticks != "" {
		if n, err := strconv.Atoi(ticks); err == nil && n > 0 {
			config.Simulation.MaxTicks = n
		}
	}

	if interval := os.Getenv("SWARM_TICK_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			config.Simulation.TickInterval = d
		}
	}

	// Override entity counts
	if agents := os.Getenv("SWARM_NUM_AGENTS"); agents != "" {
		if count, err := strconv.Atoi(agents); err == nil && count > 0 {
			config.Fleet.NumAgents = count
		}
	}

	if targets := os.Getenv("SWARM_NUM_TARGETS"); targets != "" {
		if count, err := strconv.Atoi(targets); err == nil && count >= 0 {
			config.Targets.Count = count
		}
	}

	// Override radio model
	if rng := os.Getenv("SWARM_COMMS_RANGE_M"); rng != "" {
		if r, err := strconv.ParseFloat(rng, 64); err == nil && r > 0 {
			config.Comms.MaxRangeM = r
		}
	}

	if hops := os.Getenv("SWARM_MAX_RELAY_HOPS"); hops != "" {
		if n, err := strconv.Atoi(hops); err == nil && n >= 0 {
			config.Comms.MaxRelayHops = n
		}
	}

	if prob := os.Getenv("SWARM_RELAY_PROBABILITY"); prob != "" {
		if p, err := strconv.ParseFloat(prob, 64); err == nil && p >= 0 && p <= 1 {
			config.Comms.RelayProbability = p
		}
	}

	if alpha := os.Getenv("SWARM_ALPHA"); alpha != "" {
		if a, err := strconv.ParseFloat(alpha, 64); err == nil && a > 0 && a <= 1 {
			config.Belief.Alpha = a
		}
	}

	// Override mirror
	if addr := os.Getenv("SWARM_MIRROR_ADDR"); addr != "" {
		config.Mirror.Enabled = true
		config.Mirror.ListenAddr = addr
	}

	// Override logging level
	if logLevel := os.Getenv("SWARM_LOG_LEVEL"); logLevel != "" {
		for _, valid := range []string{"debug", "info", "warn", "error"} {
			if strings.ToLower(logLevel) == valid {
				config.Logging.ConsoleLevel = valid
				break
			}
		}
	}

	// Override report settings
	if enable := os.Getenv("SWARM_ENABLE_REPORT"); enable != "" {
		if b, err := strconv.ParseBool(enable); err == nil {
			config.Logging.EnableReport = b
		}
	}

	if out := os.Getenv("SWARM_OUTPUT_PATH"); out != "" {
		config.Logging.OutputPath = out
	}
}
