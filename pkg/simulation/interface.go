package simulation

import (
	"context"
)

// RunEnvironment carries process-level options that apply to every simulation
// run, independent of its own parameters.
type RunEnvironment struct {
	// Seed drives every random draw of the run. Zero means "use the
	// simulation's configured seed".
	Seed int64

	// MaxTicks overrides the configured tick limit when positive.
	MaxTicks int

	// MirrorAddr is the listen address of the observer mirror. Empty disables it.
	MirrorAddr string

	// OutputDir receives reports, recordings and the run index.
	OutputDir string
}

// Simulation defines the interface that all simulations must implement
type Simulation interface {
	// Name returns the name of the simulation
	Name() string

	// Description returns a brief description of what the simulation does
	Description() string

	// Configure sets up the simulation with the provided parameters
	Configure(params map[string]interface{}) error

	// Run executes the simulation until it finishes or ctx is cancelled
	Run(ctx context.Context, env RunEnvironment) error

	// Stop gracefully shuts down the simulation
	Stop() error
}
