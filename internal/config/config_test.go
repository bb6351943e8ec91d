package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nexus-arch/coresim/internal/logging"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, body string) string {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestTypedLookupsAcrossGroups(t *testing.T) {
	path := writeTemp(t, `
[sim]
max_phases = 1000
strict_unused = false

[process0]
core_id = 0
name = "core0"

[process0.cache]
num_sets = 64
size_double = 1.5
`)
	c, err := Load(path, logging.Nop())
	require.NoError(t, err)

	require.EqualValues(t, 1000, c.Uint64("sim.max_phases", 0))
	require.EqualValues(t, 0, c.Uint32("process0.core_id", 99))
	require.Equal(t, "core0", c.String("process0.name", ""))
	require.EqualValues(t, 64, c.Uint32("process0.cache.num_sets", 0))
	require.InDelta(t, 1.5, c.Float64("process0.cache.size_double", 0), 0.0001)
}

func TestMissingKeyReturnsDefault(t *testing.T) {
	path := writeTemp(t, "[sim]\nstrict_unused = false\n")
	c, err := Load(path, logging.Nop())
	require.NoError(t, err)
	require.EqualValues(t, 7, c.Uint64("sim.nonexistent", 7))
}

func TestStrictModeFailsOnUnusedSetting(t *testing.T) {
	path := writeTemp(t, `
[sim]
strict_unused = true
max_phases = 10
`)
	c, err := Load(path, logging.Nop())
	require.NoError(t, err)
	// max_phases is never fetched by a typed getter.
	require.Error(t, c.Freeze())
}

func TestNonStrictModeWarnsOnly(t *testing.T) {
	path := writeTemp(t, `
[sim]
strict_unused = false
max_phases = 10
`)
	c, err := Load(path, logging.Nop())
	require.NoError(t, err)
	require.NoError(t, c.Freeze())
}

func TestFreezePassesWhenAllKeysUsed(t *testing.T) {
	path := writeTemp(t, `
[sim]
strict_unused = true
max_phases = 10
`)
	c, err := Load(path, logging.Nop())
	require.NoError(t, err)
	c.Uint64("sim.max_phases", 0)
	require.NoError(t, c.Freeze())
}
