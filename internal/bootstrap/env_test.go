package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadenv_MissingFile(t *testing.T) {
	loaded, err := Loadenv(filepath.Join(t.TempDir(), ".env"))

	require.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadenv_DoesNotOverrideExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORTAL_TEST_A=file\nPORTAL_TEST_B=file\n"), 0o600))
	t.Setenv("PORTAL_TEST_A", "process")
	t.Setenv("PORTAL_TEST_B", "")
	require.NoError(t, os.Unsetenv("PORTAL_TEST_B"))

	loaded, err := Loadenv(path)

	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "process", os.Getenv("PORTAL_TEST_A"))
	assert.Equal(t, "file", os.Getenv("PORTAL_TEST_B"))
}
