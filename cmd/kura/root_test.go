package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/kura/internal/backend"
	"github.com/harunnryd/kura/internal/config"
	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/settings"
	"github.com/harunnryd/kura/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKuraEnv(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range append([]string{settings.EnvInMemory, settings.EnvDisableKeyring, "KURA_CONFIG_DIR"}, names...) {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

// run executes the CLI against dir with the keyring disabled.
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config_dir", dir, "--disable-keyring", "--no-color"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigSetGetDelete(t *testing.T) {
	clearKuraEnv(t, "PORT", "HOST")
	dir := t.TempDir()

	_, err := run(t, dir, "config", "set", "port", "8080")
	require.NoError(t, err)
	_, err = run(t, dir, "config", "set", "host", "localhost")
	require.NoError(t, err)

	out, err := run(t, dir, "config", "get", "port")
	require.NoError(t, err)
	assert.Equal(t, "8080\n", out)

	data, err := os.ReadFile(filepath.Join(dir, backend.ConfigFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "port: 8080")
	assert.Contains(t, string(data), "host: localhost")

	_, err = run(t, dir, "config", "delete", "port")
	require.NoError(t, err)

	_, err = run(t, dir, "config", "get", "port")
	require.Error(t, err)

	out, err = run(t, dir, "config", "get", "host")
	require.NoError(t, err)
	assert.Equal(t, "localhost\n", out)
}

func TestConfigSetStringFlag(t *testing.T) {
	clearKuraEnv(t, "ZIP")
	dir := t.TempDir()

	_, err := run(t, dir, "config", "set", "--string", "zip", "01234")
	require.NoError(t, err)

	cfg, err := config.NewWithFileSecrets(filepath.Join(dir, backend.ConfigFileName), filepath.Join(dir, backend.SecretsFileName))
	require.NoError(t, err)
	zip, err := config.GetParam[string](cfg, "zip")
	require.NoError(t, err)
	assert.Equal(t, "01234", zip)
}

func TestConfigGetPrefersEnvironment(t *testing.T) {
	clearKuraEnv(t)
	dir := t.TempDir()

	_, err := run(t, dir, "config", "set", "cli_region", "eu")
	require.NoError(t, err)

	t.Setenv("CLI_REGION", "us")
	out, err := run(t, dir, "config", "get", "cli_region")
	require.NoError(t, err)
	assert.Equal(t, "us\n", out)
}

func TestConfigList(t *testing.T) {
	clearKuraEnv(t)
	dir := t.TempDir()

	out, err := run(t, dir, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No configuration values stored.")

	_, err = run(t, dir, "config", "set", "server", `{"host":"a","port":1}`)
	require.NoError(t, err)

	out, err = run(t, dir, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "server:")
	assert.Contains(t, out, "  host: a")
}

func TestConfigPath(t *testing.T) {
	clearKuraEnv(t)
	dir := t.TempDir()

	out, err := run(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, backend.ConfigFileName))
	assert.Contains(t, out, filepath.Join(dir, backend.SecretsFileName))
	assert.Contains(t, out, filepath.Join(dir, backend.PermissionsFileName))
}

func TestSecretsStayOutOfConfig(t *testing.T) {
	clearKuraEnv(t, "API_KEY")
	dir := t.TempDir()

	_, err := run(t, dir, "secret", "set", "api_key", "sk-test")
	require.NoError(t, err)

	out, err := run(t, dir, "secret", "get", "api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-test\n", out)

	_, err = run(t, dir, "config", "get", "api_key")
	require.Error(t, err)

	out, err = run(t, dir, "secret", "list")
	require.NoError(t, err)
	assert.Equal(t, "api_key\n", out)

	_, err = run(t, dir, "secret", "delete", "api_key")
	require.NoError(t, err)
	_, err = run(t, dir, "secret", "get", "api_key")
	require.Error(t, err)
}

func TestPermissionRecordCheckList(t *testing.T) {
	clearKuraEnv(t)
	dir := t.TempDir()

	out, err := run(t, dir, "permission", "check", "shell", `{"cmd":"ls"}`)
	require.NoError(t, err)
	assert.Equal(t, "unknown\n", out)

	_, err = run(t, dir, "permission", "record", "--allow", "shell", `{"cmd":"ls"}`)
	require.NoError(t, err)
	_, err = run(t, dir, "permission", "record", "--deny", "--ttl", "1h", "shell", `{"cmd":"rm"}`)
	require.NoError(t, err)

	out, err = run(t, dir, "permission", "check", "shell", `{"cmd":"ls"}`)
	require.NoError(t, err)
	assert.Equal(t, "allowed\n", out)

	out, err = run(t, dir, "permission", "check", "shell", `{"cmd":"rm"}`)
	require.NoError(t, err)
	assert.Equal(t, "denied\n", out)

	out, err = run(t, dir, "permission", "list", "shell")
	require.NoError(t, err)
	assert.Contains(t, out, "TOOL")
	assert.Contains(t, out, `Tool: shell, Args: {"cmd":"ls"}`)
	assert.Contains(t, out, "Total: 2 decision(s)")

	out, err = run(t, dir, "permission", "cleanup")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "2 tool call(s)"))

	_, err = os.Stat(filepath.Join(dir, backend.PermissionsFileName))
	assert.NoError(t, err)
}

func TestPermissionRecordRequiresDecision(t *testing.T) {
	clearKuraEnv(t)
	dir := t.TempDir()

	_, err := run(t, dir, "permission", "record", "shell")
	assert.Error(t, err)
	_, err = run(t, dir, "permission", "record", "--allow", "--deny", "shell")
	assert.Error(t, err)
	_, err = run(t, dir, "permission", "record", "--allow", "--ttl", "soon", "shell")
	assert.Error(t, err)
}

func TestInMemoryLeavesDirectoryUntouched(t *testing.T) {
	clearKuraEnv(t)
	dir := filepath.Join(t.TempDir(), "never")

	_, err := run(t, dir, "--in-memory", "config", "set", "mem_only", "1")
	require.NoError(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReportErrorShowsCategory(t *testing.T) {
	clearKuraEnv(t, "MISSING_KEY")
	dir := t.TempDir()

	root := newRootCmd()
	var errOut bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&errOut)
	root.SetArgs([]string{"--config_dir", dir, "--disable-keyring", "--no-color", "config", "get", "missing_key"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)

	reportError(root, err)
	assert.Contains(t, errOut.String(), "Error (NotFound)")
}

func TestPermissionReadsWaitForLock(t *testing.T) {
	clearKuraEnv(t)
	t.Setenv("KURA_LOCK_TIMEOUT", "100ms")
	t.Setenv("KURA_LOCK_RETRY", "10ms")
	t.Setenv("KURA_LOCK_MAX_RETRY", "5")
	dir := t.TempDir()

	held, err := store.NewFileLock(context.Background(), dir, nil)
	require.NoError(t, err)

	for _, args := range [][]string{
		{"permission", "check", "shell"},
		{"permission", "list"},
		{"permission", "cleanup"},
	} {
		_, err := run(t, dir, args...)
		assert.Error(t, err, "%v must not open the store while another process holds the lock", args)
	}

	held.Unlock()
	out, err := run(t, dir, "permission", "check", "shell")
	require.NoError(t, err)
	assert.Equal(t, "unknown\n", out)
}

func TestConfigPathDoesNotTouchPermissions(t *testing.T) {
	clearKuraEnv(t)
	dir := t.TempDir()

	held, err := store.NewFileLock(context.Background(), dir, nil)
	require.NoError(t, err)
	defer held.Unlock()

	out, err := run(t, dir, "config", "path")
	require.NoError(t, err)
	assert.Contains(t, out, "(not created yet)")
}

func TestSecretClear(t *testing.T) {
	clearKuraEnv(t, "TOKEN_A", "TOKEN_B")
	dir := t.TempDir()

	_, err := run(t, dir, "secret", "set", "token_a", "a")
	require.NoError(t, err)
	_, err = run(t, dir, "secret", "set", "token_b", "b")
	require.NoError(t, err)

	_, err = run(t, dir, "secret", "clear")
	require.NoError(t, err)

	out, err := run(t, dir, "secret", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No secrets stored.")
	_, statErr := os.Stat(filepath.Join(dir, backend.SecretsFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestReportErrorKeepsValidationErrorsUncategorized(t *testing.T) {
	root := newRootCmd()
	var errOut bytes.Buffer
	root.SetErr(&errOut)

	reportError(root, errors.New("negative permission ttl -1s"))
	assert.Equal(t, "Error: negative permission ttl -1s\n", errOut.String())

	errOut.Reset()
	reportError(root, kuraErrors.Vault(errors.New("locked")))
	assert.Contains(t, errOut.String(), "Error (VaultError)")
	assert.Contains(t, errOut.String(), "could not be read or written")
}
