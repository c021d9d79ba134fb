package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestDiscover_PythonPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cpu-plugin", "cpu-plugin.py"), "# stub\n")
	writeFile(t, filepath.Join(dir, "not-a-plugin", "README.md"), "nothing here\n")

	m, err := Discover(context.Background(), DiscoverConfig{PythonPluginDir: dir, DefaultWeight: 1})
	require.NoError(t, err)

	handles := m.Get([]string{"cpu-plugin", "missing-plugin"})
	require.Len(t, handles, 1)
	assert.Equal(t, "cpu-plugin", handles[0].Name)
}

func TestDiscover_SkipsDisabledPlugins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cpu-plugin", "cpu-plugin.py"), "# stub\n")
	writeFile(t, filepath.Join(dir, "mem-plugin", "mem-plugin.py"), "# stub\n")

	m, err := Discover(context.Background(), DiscoverConfig{
		PythonPluginDir: dir,
		DefaultWeight:   1,
		Disabled:        []string{"mem-plugin"},
	})
	require.NoError(t, err)

	handles := m.Get([]string{"cpu-plugin", "mem-plugin"})
	require.Len(t, handles, 1)
	assert.Equal(t, "cpu-plugin", handles[0].Name)
}

func TestManager_WeightFallsBackToDefault(t *testing.T) {
	m := &Manager{weights: map[string]float64{"p1": 3}, defaultWeight: 1}
	assert.Equal(t, float64(3), m.Weight("p1"))
	assert.Equal(t, float64(1), m.Weight("unknown"))
}
