package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/pkg/config"
)

func TestRunEnvironmentFromProfile(t *testing.T) {
	profile := &config.Profile{
		Name:       "observed",
		Seed:       9,
		MaxTicks:   20,
		MirrorAddr: "127.0.0.1:9000",
		OutputDir:  "out",
	}

	env := runEnvironment(&cobra.Command{}, profile)
	assert.Equal(t, int64(9), env.Seed)
	assert.Equal(t, 20, env.MaxTicks)
	assert.Equal(t, "127.0.0.1:9000", env.MirrorAddr)
	assert.Equal(t, "out", env.OutputDir)
}

func TestResolveParametersFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_agents: 4\nrelay_probability: 0.5\n"), 0o644))

	c := &cobra.Command{}
	c.Flags().String("params", "", "")
	require.NoError(t, c.Flags().Set("params", path))

	params, err := resolveParameters(c, "coop-uav", &config.Profile{ConfigFile: "swarm.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 4, params["num_agents"])
	assert.Equal(t, 0.5, params["relay_probability"])
	assert.Equal(t, "swarm.yaml", params["config_path"])
}

func TestSelectSimulationPrecedence(t *testing.T) {
	c := &cobra.Command{}
	c.Flags().String("simulation", "", "")

	name, err := selectSimulation(c, []string{"relay-chain"}, &config.Profile{Simulation: "coop-uav"})
	require.NoError(t, err)
	assert.Equal(t, "relay-chain", name)

	name, err = selectSimulation(c, nil, &config.Profile{Simulation: "coop-uav"})
	require.NoError(t, err)
	assert.Equal(t, "coop-uav", name)

	require.NoError(t, c.Flags().Set("simulation", "relay-chain"))
	name, err = selectSimulation(c, nil, &config.Profile{Simulation: "coop-uav"})
	require.NoError(t, err)
	assert.Equal(t, "relay-chain", name)
}
