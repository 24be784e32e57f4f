package settings

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/kura/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

const (
	AppName = "kura"

	// EnvPrefix namespaces the process settings in the environment.
	EnvPrefix = "KURA_"

	// EnvInMemory switches config, secrets and permissions to in-memory storage when present.
	EnvInMemory = "KURA_IN_MEMORY_CONFIG"

	// EnvDisableKeyring moves secrets from the system keyring to secrets.yaml when present.
	EnvDisableKeyring = "KURA_DISABLE_KEYRING"

	SettingsFileName = "settings.yaml"
)

const (
	DefaultLogLevel       = "info"
	DefaultKeyringService = "kura"
	DefaultKeyringUser    = "secrets"
	DefaultPermissionTTL  = "0s"
	DefaultLockTimeout    = "5s"
	DefaultLockRetry      = "100ms"
	DefaultLockMaxRetry   = 50
)

// Settings configure the process, not the values kura stores.
type Settings struct {
	LogLevel       string `koanf:"log_level"`
	ConfigDir      string `koanf:"config_dir"`
	KeyringService string `koanf:"keyring_service"`
	PermissionTTL  string `koanf:"permission_ttl"`
	LockTimeout    string `koanf:"lock_timeout"`
	LockRetry      string `koanf:"lock_retry"`
	LockMaxRetry   int    `koanf:"lock_max_retry"`

	// Presence signals; the value of the variable is irrelevant.
	InMemory       bool `koanf:"-"`
	DisableKeyring bool `koanf:"-"`
}

// Load layers hard defaults, <config_dir>/settings.yaml, KURA_ environment
// variables and, when cmd is non-nil, its flags.
func Load(cmd *cobra.Command) (*Settings, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log_level":       DefaultLogLevel,
		"keyring_service": DefaultKeyringService,
		"permission_ttl":  DefaultPermissionTTL,
		"lock_timeout":    DefaultLockTimeout,
		"lock_retry":      DefaultLockRetry,
		"lock_max_retry":  DefaultLockMaxRetry,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	envLoader := env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		switch key {
		case "in_memory_config", "disable_keyring":
			return ""
		}
		return key
	})

	// The settings file lives in the config dir, which env may relocate.
	probe := koanf.New(".")
	probe.Load(envLoader, nil)
	if cmd != nil {
		probe.Load(posflag.Provider(cmd.Flags(), ".", probe), nil)
	}
	dir, err := resolveConfigDir(probe.String("config_dir"))
	if err == nil {
		settingsPath := filepath.Join(dir, SettingsFileName)
		if _, statErr := os.Stat(settingsPath); statErr == nil {
			if err := k.Load(file.Provider(settingsPath), yaml.Parser()); err != nil {
				return nil, err
			}
		}
	} else {
		slog.Debug("Config dir not resolvable while loading settings", "error", err)
	}

	k.Load(envLoader, nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, err
	}

	_, s.InMemory = os.LookupEnv(EnvInMemory)
	_, s.DisableKeyring = os.LookupEnv(EnvDisableKeyring)
	if cmd != nil {
		if flag := cmd.Flags().Lookup("in-memory"); flag != nil && flag.Changed && flag.Value.String() == "true" {
			s.InMemory = true
		}
		if flag := cmd.Flags().Lookup("disable-keyring"); flag != nil && flag.Changed && flag.Value.String() == "true" {
			s.DisableKeyring = true
		}
	}

	if strings.TrimSpace(s.KeyringService) == "" {
		s.KeyringService = DefaultKeyringService
	}
	if s.LockMaxRetry <= 0 {
		s.LockMaxRetry = DefaultLockMaxRetry
	}

	configDir, err := expandConfiguredPath(s.ConfigDir)
	if err != nil {
		return nil, err
	}
	s.ConfigDir = configDir

	return &s, nil
}

// ResolveConfigDir returns the configured directory or the platform default.
func (s *Settings) ResolveConfigDir() (string, error) {
	return resolveConfigDir(s.ConfigDir)
}

func resolveConfigDir(configured string) (string, error) {
	expanded, err := expandConfiguredPath(configured)
	if err != nil {
		return "", err
	}
	if expanded != "" {
		return expanded, nil
	}
	return pathutil.AppConfigDir(AppName)
}

func expandConfiguredPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	return pathutil.Expand(trimmed)
}
