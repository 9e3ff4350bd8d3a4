package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picogrid/swarm-autonomy/pkg/simulation"
)

func TestDiscoverSimulationsIn(t *testing.T) {
	cmdDir := t.TempDir()
	good := filepath.Join(cmdDir, "coop")
	bad := filepath.Join(cmdDir, "broken")
	require.NoError(t, os.MkdirAll(good, 0755))
	require.NoError(t, os.MkdirAll(bad, 0755))

	manifest := "name: Demo\ndescription: test\nparameters:\n  - name: seed\n    type: integer\n    default: 3\n"
	require.NoError(t, os.WriteFile(filepath.Join(good, "simulation.yaml"), []byte(manifest), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(bad, "simulation.yaml"), []byte("name: [unterminated"), 0644))

	sims, err := DiscoverSimulationsIn(cmdDir)
	require.NoError(t, err)
	require.Len(t, sims, 1)
	assert.Equal(t, good, sims[0].Path)

	info, ok := FindSimulation(sims, "Demo")
	require.True(t, ok)
	assert.Equal(t, 3, info.Config.Parameters[0].Default)

	_, ok = FindSimulation(sims, "Other")
	assert.False(t, ok)
}

func TestResolveParameter(t *testing.T) {
	t.Setenv("SWARM_RELAY_PROBABILITY", "0.25")

	v, err := ResolveParameter(simulation.Parameter{Name: "relay_probability", Type: "float", Default: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)

	v, err = ResolveParameter(simulation.Parameter{Name: "agents", Type: "integer", Default: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	v, err = ResolveParameter(simulation.Parameter{Name: "label", Type: "string"})
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = ResolveParameter(simulation.Parameter{Name: "must", Type: "string", Required: true})
	assert.Error(t, err)
}

func TestPromptForParametersNonInteractive(t *testing.T) {
	t.Setenv("SWARM_SKIP_PROMPTS", "true")
	t.Setenv("SWARM_MAX_TICKS", "90")

	got, err := PromptForParameters([]simulation.Parameter{
		{Name: "max_ticks", Type: "integer", Default: 10},
		{Name: "compress", Type: "boolean", Default: true},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"max_ticks": 90, "compress": true}, got)
}
