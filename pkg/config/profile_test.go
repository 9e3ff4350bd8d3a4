package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadProfilesMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadProfilesFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Profiles)
	_, ok := cfg.Active()
	assert.False(t, ok)
}

func TestProfilesRoundTripAndEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.yaml")

	cfg := &Config{}
	cfg.Upsert(Profile{Name: "fast", Seed: 7, MaxTicks: 100})
	cfg.Upsert(Profile{Name: "slow", Seed: 8})
	cfg.Upsert(Profile{Name: "fast", Seed: 9})
	cfg.Selected = "fast"
	require.NoError(t, SaveProfilesToFile(cfg, path))

	loaded, err := LoadProfilesFromFile(path)
	require.NoError(t, err)
	require.Len(t, loaded.Profiles, 2)

	active, ok := loaded.Active()
	require.True(t, ok)
	assert.Equal(t, int64(9), active.Seed)
	assert.Equal(t, 0, active.MaxTicks)

	assert.True(t, loaded.Remove("fast"))
	assert.False(t, loaded.Remove("fast"))
	assert.Empty(t, loaded.Selected)
	assert.Len(t, loaded.Profiles, 1)
}
