// Package config resolves configuration values and secrets.
//
// Values are looked up with the following precedence:
//  1. an environment variable named after the uppercased key
//     (openai_api_key -> OPENAI_API_KEY)
//  2. the persisted store: config.yaml for config, and for secrets either
//     the system keyring (one JSON credential holding every secret) or
//     secrets.yaml when the keyring is disabled
//
// Setting KURA_IN_MEMORY_CONFIG, or building with NewInMemory, keeps both
// namespaces in process memory only. Keys are conventionally snake_case.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/harunnryd/kura/internal/backend"
	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/metrics"
	"github.com/harunnryd/kura/internal/vault"
)

const (
	nsConfig = "config"
	nsSecret = "secret"
)

// Config is the resolver over one config store and one secret store.
// The two never share a backend instance.
type Config struct {
	values  valueStore
	secrets valueStore

	// serializes load-modify-save within this instance
	mu sync.Mutex
}

type options struct {
	keyring vault.Keyring
}

// Option customizes construction.
type Option func(*options)

// WithKeyring replaces the system keyring, mainly for tests.
func WithKeyring(kr vault.Keyring) Option {
	return func(o *options) {
		o.keyring = kr
	}
}

// FromSelection builds a Config over the storage chosen by the backend selector.
func FromSelection(sel backend.Selection, opts ...Option) (*Config, error) {
	o := options{keyring: vault.NewSystem()}
	for _, opt := range opts {
		opt(&o)
	}

	values, err := newConfigStore(sel.Config)
	if err != nil {
		return nil, err
	}
	secrets, err := newSecretStore(sel.Secrets, o.keyring)
	if err != nil {
		return nil, err
	}
	return &Config{values: values, secrets: secrets}, nil
}

// New creates a Config with a file-backed config at configPath and secrets in
// the keyring under service.
func New(configPath string, service string, opts ...Option) (*Config, error) {
	return FromSelection(backend.Selection{
		Config:  backend.File{Path: configPath},
		Secrets: backend.Keyring{Service: service},
	}, opts...)
}

// NewWithFileSecrets creates a Config whose secrets live in their own YAML file.
func NewWithFileSecrets(configPath, secretsPath string) (*Config, error) {
	if configPath == secretsPath {
		return nil, fmt.Errorf("config and secrets must use distinct paths: %s", configPath)
	}
	return FromSelection(backend.Selection{
		Config:  backend.File{Path: configPath},
		Secrets: backend.File{Path: secretsPath},
	})
}

// NewInMemory creates a Config backed by the process-wide in-memory maps.
func NewInMemory() *Config {
	return &Config{
		values:  memoryStore{m: configValues},
		secrets: memoryStore{m: secretValues},
	}
}

var global = sync.OnceValues(func() (*Config, error) {
	sel, err := backend.Select()
	if err != nil {
		return nil, err
	}
	return FromSelection(sel)
})

// Global returns the process-wide Config, building it from the environment on
// first call.
func Global() (*Config, error) {
	return global()
}

// Exists reports whether the config file exists. In-memory config always exists.
func (c *Config) Exists() bool {
	return c.values.exists()
}

// Clear removes the config file, or wipes the in-memory config.
func (c *Config) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values.clear()
}

// SecretsExist reports whether the secrets file or keyring credential exists.
// In-memory secrets always exist.
func (c *Config) SecretsExist() bool {
	return c.secrets.exists()
}

// ClearSecrets removes every stored secret: the secrets file, the keyring
// credential, or the in-memory map.
func (c *Config) ClearSecrets() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secrets.clear()
}

// Path returns the config file path, or "<in-memory>".
func (c *Config) Path() string {
	return c.values.path()
}

// SecretsPath describes where secrets are kept.
func (c *Config) SecretsPath() string {
	return c.secrets.path()
}

// LoadValues returns every persisted config value. The environment is not consulted.
func (c *Config) LoadValues() (map[string]any, error) {
	return c.values.load()
}

// LoadSecrets returns every persisted secret. The environment is not consulted.
func (c *Config) LoadSecrets() (map[string]any, error) {
	return c.secrets.load()
}

// Get resolves key from the secret or config namespace without a target type.
func (c *Config) Get(key string, isSecret bool) (any, error) {
	if isSecret {
		return resolve(c.secrets, nsSecret, key)
	}
	return resolve(c.values, nsConfig, key)
}

// Set writes value into the secret or config namespace.
func (c *Config) Set(key string, value any, isSecret bool) error {
	if isSecret {
		return c.SetSecret(key, value)
	}
	return c.SetParam(key, value)
}

// SetParam writes a config value. The whole mapping is rewritten; environment
// variables are never touched.
func (c *Config) SetParam(key string, value any) error {
	return c.put(c.values, nsConfig, key, value)
}

// SetSecret writes a secret alongside the existing ones.
func (c *Config) SetSecret(key string, value any) error {
	return c.put(c.secrets, nsSecret, key, value)
}

// Delete removes a config value. Other keys are preserved.
func (c *Config) Delete(key string) error {
	return c.remove(c.values, nsConfig, key)
}

// DeleteSecret removes a secret. Other secrets are preserved.
func (c *Config) DeleteSecret(key string) error {
	return c.remove(c.secrets, nsSecret, key)
}

// GetParam resolves a config value into T.
func GetParam[T any](c *Config, key string) (T, error) {
	return get[T](c.values, nsConfig, key)
}

// GetSecret resolves a secret into T.
func GetSecret[T any](c *Config, key string) (T, error) {
	return get[T](c.secrets, nsSecret, key)
}

// EnvKey is the environment variable that shadows key.
func EnvKey(key string) string {
	return strings.ToUpper(key)
}

func get[T any](store valueStore, ns, key string) (T, error) {
	v, err := resolve(store, ns, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](key, v)
}

// resolve returns the environment value when the variable exists, even if it
// is empty or not JSON; the persisted store is only read otherwise.
func resolve(store valueStore, ns, key string) (any, error) {
	if raw, ok := os.LookupEnv(EnvKey(key)); ok {
		metrics.ConfigLookups.WithLabelValues(ns, metrics.SourceEnv).Inc()
		return parseEnvValue(raw), nil
	}

	values, err := store.load()
	if err != nil {
		return nil, err
	}

	v, ok := values[key]
	if !ok {
		metrics.ConfigLookups.WithLabelValues(ns, metrics.SourceMissing).Inc()
		return nil, kuraErrors.NotFound(key)
	}
	metrics.ConfigLookups.WithLabelValues(ns, metrics.SourceStore).Inc()
	return v, nil
}

func (c *Config) put(store valueStore, ns, key string, value any) error {
	model, err := toJSONModel(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := store.load()
	if err != nil {
		return err
	}
	values[key] = model
	if err := store.save(values); err != nil {
		return err
	}

	slog.Debug("Value stored", "namespace", ns, "key", key, "store", store.path())
	return nil
}

func (c *Config) remove(store valueStore, ns, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	values, err := store.load()
	if err != nil {
		return err
	}
	delete(values, key)
	if err := store.save(values); err != nil {
		return err
	}

	slog.Debug("Value deleted", "namespace", ns, "key", key, "store", store.path())
	return nil
}
