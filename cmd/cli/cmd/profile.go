package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/picogrid/swarm-autonomy/pkg/config"
	"github.com/picogrid/swarm-autonomy/pkg/simulation"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage run profiles",
	Long:  `Manage named sets of run options stored in $HOME/.swarm-sim/profiles.yaml`,
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	RunE:  listProfiles,
}

var profileAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or replace a profile",
	RunE:  addProfile,
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Remove a profile",
	Args:  cobra.MaximumNArgs(1),
	RunE:  removeProfile,
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Select the profile applied to every run",
	Args:  cobra.ExactArgs(1),
	RunE:  useProfile,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileUseCmd)
}

func listProfiles(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(cfg.Profiles) == 0 {
		fmt.Println("No profiles configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "\tNAME\tSIMULATION\tSEED\tMAX TICKS\tMIRROR\tOUTPUT")
	_, _ = fmt.Fprintln(w, "\t----\t----------\t----\t---------\t------\t------")

	for _, p := range cfg.Profiles {
		marker := ""
		if p.Name == cfg.Selected {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			marker, p.Name, orDash(p.Simulation), p.Seed, p.MaxTicks, orDash(p.MirrorAddr), orDash(p.OutputDir))
	}

	return w.Flush()
}

func addProfile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	var p config.Profile

	// Prompt for name
	namePrompt := &survey.Input{
		Message: "Profile name:",
	}
	if err := survey.AskOne(namePrompt, &p.Name, survey.WithValidator(survey.Required)); err != nil {
		return err
	}

	if _, exists := cfg.Find(p.Name); exists {
		var replace bool
		if err := survey.AskOne(&survey.Confirm{
			Message: fmt.Sprintf("Profile %s exists. Replace it?", p.Name),
		}, &replace); err != nil {
			return err
		}
		if !replace {
			fmt.Println("Nothing changed")
			return nil
		}
	}

	// Prompt for simulation
	simPrompt := &survey.Select{
		Message: "Simulation:",
		Options: simulation.DefaultRegistry.List(),
	}
	if err := survey.AskOne(simPrompt, &p.Simulation); err != nil {
		return err
	}

	configPrompt := &survey.Input{
		Message: "Simulation config file (optional):",
		Help:    "YAML file passed to the simulation as config_path",
	}
	if err := survey.AskOne(configPrompt, &p.ConfigFile); err != nil {
		return err
	}

	var seed string
	if err := survey.AskOne(&survey.Input{Message: "Seed:", Default: "1"}, &seed, survey.WithValidator(isInteger)); err != nil {
		return err
	}
	p.Seed, _ = strconv.ParseInt(seed, 10, 64)

	var ticks string
	if err := survey.AskOne(&survey.Input{Message: "Max ticks (0 keeps the configured limit):", Default: "0"}, &ticks, survey.WithValidator(isInteger)); err != nil {
		return err
	}
	p.MaxTicks, _ = strconv.Atoi(ticks)

	if err := survey.AskOne(&survey.Input{
		Message: "Mirror address (empty disables it):",
		Help:    "host:port observers connect to, e.g. 127.0.0.1:8765",
	}, &p.MirrorAddr); err != nil {
		return err
	}

	if err := survey.AskOne(&survey.Input{Message: "Output directory:", Default: "runs"}, &p.OutputDir); err != nil {
		return err
	}

	cfg.Upsert(p)

	// Save config
	if err := config.SaveProfiles(cfg); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	fmt.Printf("Profile %s saved\n", p.Name)
	return nil
}

func removeProfile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}

	if len(cfg.Profiles) == 0 {
		fmt.Println("No profiles to remove")
		return nil
	}

	var selected string
	if len(args) == 1 {
		selected = args[0]
	} else {
		// Build list of profile names
		names := make([]string, len(cfg.Profiles))
		for i, p := range cfg.Profiles {
			names[i] = p.Name
		}

		prompt := &survey.Select{
			Message: "Select profile to remove:",
			Options: names,
		}
		if err := survey.AskOne(prompt, &selected); err != nil {
			return err
		}

		// Confirm removal
		var confirm bool
		confirmPrompt := &survey.Confirm{
			Message: fmt.Sprintf("Are you sure you want to remove %s?", selected),
			Default: false,
		}
		if err := survey.AskOne(confirmPrompt, &confirm); err != nil {
			return err
		}
		if !confirm {
			fmt.Println("Removal cancelled")
			return nil
		}
	}

	if !cfg.Remove(selected) {
		return fmt.Errorf("profile %s not found", selected)
	}

	// Save config
	if err := config.SaveProfiles(cfg); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}

	fmt.Printf("Profile %s removed\n", selected)
	return nil
}

func useProfile(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProfiles()
	if err != nil {
		return fmt.Errorf("failed to load profiles: %w", err)
	}
	if _, ok := cfg.Find(args[0]); !ok {
		return fmt.Errorf("profile %s not found", args[0])
	}
	cfg.Selected = args[0]
	if err := config.SaveProfiles(cfg); err != nil {
		return fmt.Errorf("failed to save profiles: %w", err)
	}
	fmt.Printf("Using profile %s\n", args[0])
	return nil
}

func isInteger(val interface{}) error {
	s, _ := val.(string)
	if _, err := strconv.ParseInt(s, 10, 64); err != nil {
		return fmt.Errorf("must be a whole number")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
