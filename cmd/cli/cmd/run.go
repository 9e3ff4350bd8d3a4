package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/picogrid/swarm-autonomy/pkg/config"
	"github.com/picogrid/swarm-autonomy/pkg/logger"
	"github.com/picogrid/swarm-autonomy/pkg/simulation"
	"github.com/picogrid/swarm-autonomy/pkg/utils"

	// Import simulations to register them
	_ "github.com/picogrid/swarm-autonomy/cmd/coop-uav/simulation"
	_ "github.com/picogrid/swarm-autonomy/cmd/relay-chain"
)

var runCmd = &cobra.Command{
	Use:   "run [simulation]",
	Short: "Run a simulation",
	Long: `Run a simulation interactively or with specified parameters.

Run options resolve from flags, then the active profile, then
$HOME/.swarm-sim/config.yaml and SWARM_* environment variables.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringP("simulation", "s", "", "simulation name to run")
	runCmd.Flags().StringP("params", "p", "", "parameters file (YAML)")
	runCmd.Flags().Int64("seed", 0, "random seed (0 uses the configured seed)")
	runCmd.Flags().Int("ticks", 0, "maximum ticks (0 uses the configured limit)")
	runCmd.Flags().String("mirror-addr", "", "serve the observer mirror on this address, e.g. 127.0.0.1:8765")
	runCmd.Flags().StringP("output", "o", "", "directory for reports, recordings and the run index")

	_ = viper.BindPFlag("seed", runCmd.Flags().Lookup("seed"))
	_ = viper.BindPFlag("ticks", runCmd.Flags().Lookup("ticks"))
	_ = viper.BindPFlag("mirror-addr", runCmd.Flags().Lookup("mirror-addr"))
	_ = viper.BindPFlag("output", runCmd.Flags().Lookup("output"))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	profile, err := activeProfile()
	if err != nil {
		return err
	}

	simName, err := selectSimulation(cmd, args, profile)
	if err != nil {
		return fmt.Errorf("failed to select simulation: %w", err)
	}

	sim, err := simulation.DefaultRegistry.Get(simName)
	if err != nil {
		return fmt.Errorf("failed to get simulation: %w", err)
	}

	params, err := resolveParameters(cmd, simName, profile)
	if err != nil {
		return fmt.Errorf("failed to get parameters: %w", err)
	}

	if err := sim.Configure(params); err != nil {
		return fmt.Errorf("failed to configure simulation: %w", err)
	}

	env := runEnvironment(cmd, profile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		logger.Warn("\nReceived interrupt signal, stopping simulation...")
		if err := sim.Stop(); err != nil {
			logger.Errorf("Failed to stop simulation: %v", err)
		}
		// A second signal cancels outright
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger.LogSection(fmt.Sprintf("Starting %s", sim.Name()))
	if err := sim.Run(ctx, env); err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	logger.Success("Simulation completed successfully")
	return nil
}

// activeProfile returns the profile named by --profile, else the selected
// one, else nil
func activeProfile() (*config.Profile, error) {
	profiles, err := config.LoadProfiles()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if profileName != "" {
		p, ok := profiles.Find(profileName)
		if !ok {
			return nil, fmt.Errorf("profile %s not found", profileName)
		}
		return p, nil
	}
	p, _ := profiles.Active()
	return p, nil
}

// runEnvironment layers flags over the profile over viper (config file, env)
func runEnvironment(cmd *cobra.Command, profile *config.Profile) simulation.RunEnvironment {
	env := simulation.RunEnvironment{
		Seed:       viper.GetInt64("seed"),
		MaxTicks:   viper.GetInt("ticks"),
		MirrorAddr: viper.GetString("mirror-addr"),
		OutputDir:  viper.GetString("output"),
	}
	if profile == nil {
		return env
	}

	flags := cmd.Flags()
	if !flags.Changed("seed") && profile.Seed != 0 {
		env.Seed = profile.Seed
	}
	if !flags.Changed("ticks") && profile.MaxTicks != 0 {
		env.MaxTicks = profile.MaxTicks
	}
	if !flags.Changed("mirror-addr") && profile.MirrorAddr != "" {
		env.MirrorAddr = profile.MirrorAddr
	}
	if !flags.Changed("output") && profile.OutputDir != "" {
		env.OutputDir = profile.OutputDir
	}
	return env
}

// resolveParameters reads the --params file when given; otherwise it prompts
// for the manifest parameters, or takes their defaults without a terminal.
// A profile config file is passed on as config_path.
func resolveParameters(cmd *cobra.Command, simName string, profile *config.Profile) (map[string]interface{}, error) {
	var params map[string]interface{}

	if path, _ := cmd.Flags().GetString("params"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read parameters file: %w", err)
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return nil, fmt.Errorf("failed to parse parameters file: %w", err)
		}
	} else {
		simInfos, err := utils.DiscoverSimulations()
		if err != nil {
			return nil, fmt.Errorf("failed to discover simulations: %w", err)
		}
		info, ok := utils.FindSimulation(simInfos, simName)
		if !ok {
			logger.Warnf("No simulation.yaml for %s, using its built-in defaults", simName)
			params = map[string]interface{}{}
		} else if params, err = utils.PromptForParameters(info.Config.Parameters); err != nil {
			return nil, err
		}
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if profile != nil && profile.ConfigFile != "" {
		if v, ok := params["config_path"]; !ok || v == "" {
			params["config_path"] = profile.ConfigFile
		}
	}
	return params, nil
}

func selectSimulation(cmd *cobra.Command, args []string, profile *config.Profile) (string, error) {
	// Positional argument, then flag, then profile
	if len(args) == 1 {
		return args[0], nil
	}
	if simName, _ := cmd.Flags().GetString("simulation"); simName != "" {
		return simName, nil
	}
	if profile != nil && profile.Simulation != "" {
		return profile.Simulation, nil
	}

	names := simulation.DefaultRegistry.List()
	if len(names) == 0 {
		return "", fmt.Errorf("no simulations registered")
	}
	if len(names) == 1 || !utils.Interactive() {
		return names[0], nil
	}

	descriptions := make(map[string]string)
	for _, name := range names {
		if sim, err := simulation.DefaultRegistry.Get(name); err == nil {
			descriptions[name] = sim.Description()
		}
	}

	// Interactive selection
	var selected string
	prompt := &survey.Select{
		Message: "Select simulation:",
		Options: names,
		Description: func(value string, index int) string {
			return descriptions[value]
		},
	}

	if err := survey.AskOne(prompt, &selected); err != nil {
		return "", err
	}

	return selected, nil
}
