package backend

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectInMemoryOverridesEverything(t *testing.T) {
	sel, err := Detect(&settings.Settings{
		InMemory:       true,
		DisableKeyring: true,
		ConfigDir:      "/should/not/be/created",
	})
	require.NoError(t, err)

	assert.Equal(t, Memory{}, sel.Config)
	assert.Equal(t, Memory{}, sel.Secrets)
	assert.Equal(t, Memory{}, sel.Permissions)
	assert.True(t, sel.InMemory())
	assert.Empty(t, sel.Dir)
	_, statErr := os.Stat("/should/not/be/created")
	assert.True(t, os.IsNotExist(statErr))
}

func TestDetectKeyringByDefault(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "kura")

	sel, err := Detect(&settings.Settings{ConfigDir: dir, KeyringService: "kura-test"})
	require.NoError(t, err)

	assert.Equal(t, File{Path: filepath.Join(dir, ConfigFileName)}, sel.Config)
	assert.Equal(t, Keyring{Service: "kura-test"}, sel.Secrets)
	assert.Equal(t, PermissionDir{Dir: dir}, sel.Permissions)
	assert.False(t, sel.InMemory())

	info, err := os.Stat(dir)
	require.NoError(t, err, "config dir must be created")
	assert.True(t, info.IsDir())
}

func TestDetectKeyringDisabledUsesSiblingFile(t *testing.T) {
	dir := t.TempDir()

	sel, err := Detect(&settings.Settings{ConfigDir: dir, DisableKeyring: true})
	require.NoError(t, err)

	cfg, ok := sel.Config.(File)
	require.True(t, ok)
	sec, ok := sel.Secrets.(File)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, SecretsFileName), sec.Path)
	assert.NotEqual(t, cfg.Path, sec.Path, "config and secrets never share a file")
	assert.Equal(t, filepath.Dir(cfg.Path), filepath.Dir(sec.Path))
}

func TestDetectDirectoryFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := Detect(&settings.Settings{ConfigDir: filepath.Join(blocker, "kura")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kuraErrors.ErrDirectory))
}

func TestPermissionDirPaths(t *testing.T) {
	p := PermissionDir{Dir: "/tmp/kura"}
	assert.Equal(t, filepath.Join("/tmp/kura", "tool_permissions.json"), p.Path())
	assert.Equal(t, filepath.Join("/tmp/kura", "tool_permissions.tmp"), p.TempPath())
}
