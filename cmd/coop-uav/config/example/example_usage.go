package main

import (
	"os"

	"github.com/picogrid/swarm-autonomy/cmd/coop-uav/config"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
)

func main() {
	logger.LogSection("Swarm Configuration Demo")

	// 1. Load from YAML file, falling back to defaults
	logger.Info("1. Loading configuration...")
	base, err := config.LoadConfigOrDefault("config.yaml")
	if err != nil {
		logger.Fatalf("Could not load config: %v", err)
	}

	// 2. Environment overrides
	logger.Info("2. Applying environment overrides...")
	_ = os.Setenv("SWARM_NUM_AGENTS", "10")
	_ = os.Setenv("SWARM_RELAY_PROBABILITY", "0.6")
	config.MergeWithEnvironment(base)

	// 3. CLI overrides
	logger.Info("3. Applying CLI overrides...")
	config.MergeWithCLIOverrides(base, map[string]interface{}{
		"max_relay_hops": 2,
		"search_pattern": "lawnmower",
		"log_level":      "debug",
	})

	if err := base.Validate(); err != nil {
		logger.Errorf("%s Configuration validation failed: %v", logger.IconError, err)
		os.Exit(1)
	}
	logger.Success("Configuration validation passed")

	logger.LogSubSection("Final configuration")
	logger.LogKeyValues(map[string]interface{}{
		"agents":            base.Fleet.NumAgents,
		"targets":           base.Targets.Count,
		"grid":              base.World.Rows * base.World.Cols,
		"relay_probability": base.Comms.RelayProbability,
		"max_relay_hops":    base.Comms.MaxRelayHops,
		"alpha":             base.Belief.Alpha,
	})
	logger.Info("\n" + base.String())
}
