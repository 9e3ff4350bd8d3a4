package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is a named set of run options that can be selected instead of
// passing the same flags on every run.
type Profile struct {
	Name       string `yaml:"name"`
	Simulation string `yaml:"simulation,omitempty"`
	ConfigFile string `yaml:"config_file,omitempty"`
	Seed       int64  `yaml:"seed,omitempty"`
	MaxTicks   int    `yaml:"max_ticks,omitempty"`
	MirrorAddr string `yaml:"mirror_addr,omitempty"`
	OutputDir  string `yaml:"output_dir,omitempty"`
}

// Config holds the profile configurations
type Config struct {
	Profiles []Profile `yaml:"profiles"`
	Selected string    `yaml:"selected,omitempty"`
}

// DefaultDir returns the per-user configuration directory
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".swarm-sim"), nil
}

// LoadProfiles loads profiles from the default location
func LoadProfiles() (*Config, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return LoadProfilesFromFile(filepath.Join(dir, "profiles.yaml"))
}

// LoadProfilesFromFile loads profiles from a specific file
func LoadProfilesFromFile(path string) (*Config, error) {
	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return getDefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file: %w", err)
	}

	return &config, nil
}

// SaveProfiles saves profiles to the default location
func SaveProfiles(config *Config) error {
	dir, err := DefaultDir()
	if err != nil {
		return err
	}
	return SaveProfilesToFile(config, filepath.Join(dir, "profiles.yaml"))
}

// SaveProfilesToFile saves profiles to a specific file
func SaveProfilesToFile(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write profiles file: %w", err)
	}

	return nil
}

// Find returns the profile with the given name
func (c *Config) Find(name string) (*Profile, bool) {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i], true
		}
	}
	return nil, false
}

// Upsert adds the profile or replaces the one with the same name
func (c *Config) Upsert(p Profile) {
	if existing, ok := c.Find(p.Name); ok {
		*existing = p
		return
	}
	c.Profiles = append(c.Profiles, p)
}

// Remove deletes the named profile and clears the selection if it pointed at it
func (c *Config) Remove(name string) bool {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			c.Profiles = append(c.Profiles[:i], c.Profiles[i+1:]...)
			if c.Selected == name {
				c.Selected = ""
			}
			return true
		}
	}
	return false
}

// Active returns the selected profile, if any
func (c *Config) Active() (*Profile, bool) {
	if c.Selected == "" {
		return nil, false
	}
	return c.Find(c.Selected)
}

// getDefaultConfig returns a default configuration
func getDefaultConfig() *Config {
	return &Config{
		Profiles: []Profile{
			{
				Name:       "Local",
				Simulation: "coop-uav",
				Seed:       1,
				OutputDir:  "runs",
			},
			{
				Name:       "Observed",
				Simulation: "coop-uav",
				Seed:       1,
				MirrorAddr: "127.0.0.1:8765",
				OutputDir:  "runs",
			},
		},
	}
}
