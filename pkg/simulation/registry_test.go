package simulation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSimulation struct{ name string }

func (s *stubSimulation) Name() string        { return s.name }
func (s *stubSimulation) Description() string { return "stub" }
func (s *stubSimulation) Stop() error         { return nil }

func (s *stubSimulation) Configure(map[string]interface{}) error { return nil }

func (s *stubSimulation) Run(context.Context, RunEnvironment) error { return nil }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("b", func() Simulation { return &stubSimulation{name: "b"} }))
	require.NoError(t, r.Register("a", func() Simulation { return &stubSimulation{name: "a"} }))

	err := r.Register("a", func() Simulation { return &stubSimulation{} })
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, r.List())

	sim, err := r.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "b", sim.Name())

	_, err = r.Get("missing")
	assert.Error(t, err)

	assert.Panics(t, func() {
		r.MustRegister("a", func() Simulation { return &stubSimulation{} })
	})
}

func TestParameterDefaults(t *testing.T) {
	cfg := SimulationConfig{Parameters: []Parameter{
		{Name: "seed", Type: "integer", Default: 42},
		{Name: "config_file", Type: "string"},
	}}

	defaults := cfg.ParameterDefaults()
	assert.Equal(t, map[string]interface{}{"seed": 42}, defaults)
}
