package license

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineIDFrom(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "machine-id")
	second := filepath.Join(dir, "dbus-machine-id")
	require.NoError(t, os.WriteFile(second, []byte("abc123\n"), 0644))

	id := machineIDFrom([]string{first, second}, "host-fallback")
	assert.Len(t, id, 64)
	assert.Equal(t, id, machineIDFrom([]string{second}, "other-fallback"), "id must come from the file, not the fallback")

	fallback := machineIDFrom([]string{first}, "host-fallback")
	assert.NotEqual(t, id, fallback)
	assert.Equal(t, fallback, machineIDFrom(nil, "host-fallback"))
}

func TestMachineIDFrom_EmptyFileFallsThrough(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))

	assert.Equal(t, machineIDFrom(nil, "host-1"), machineIDFrom([]string{empty}, "host-1"))
}
