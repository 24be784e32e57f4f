package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/harunnryd/kura/internal/backend"
	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/settings"
	"github.com/harunnryd/kura/internal/vault"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

// valueStore persists one flat key -> value mapping as a whole.
type valueStore interface {
	load() (map[string]any, error)
	save(values map[string]any) error
	path() string
	exists() bool
	clear() error
}

// memoryMap is a process-wide mapping shared by every in-memory store of the
// same namespace.
type memoryMap struct {
	mu     sync.Mutex
	values map[string]any
}

var (
	configValues = &memoryMap{values: make(map[string]any)}
	secretValues = &memoryMap{values: make(map[string]any)}
)

type memoryStore struct {
	m *memoryMap
}

// load and save deep-copy so nested maps and slices never alias the shared state.
func (s memoryStore) load() (map[string]any, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return normalize(s.m.values).(map[string]any), nil
}

func (s memoryStore) save(values map[string]any) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.values = normalize(values).(map[string]any)
	return nil
}

func (memoryStore) path() string { return backend.InMemoryPath }

func (memoryStore) exists() bool { return true }

func (s memoryStore) clear() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	clear(s.m.values)
	return nil
}

// fileStore keeps the mapping as a YAML document.
type fileStore struct {
	file string
}

func (s fileStore) load() (map[string]any, error) {
	data, err := os.ReadFile(s.file)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, kuraErrors.File(err)
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, kuraErrors.Deserialize(fmt.Errorf("%s: %w", s.file, err))
	}

	values, ok := normalize(doc).(map[string]any)
	if !ok {
		return make(map[string]any), nil
	}
	return values, nil
}

func (s fileStore) save(values map[string]any) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return kuraErrors.Deserialize(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.file), 0755); err != nil {
		return kuraErrors.Directory(err)
	}

	if err := atomic.WriteFile(s.file, bytes.NewReader(data)); err != nil {
		return kuraErrors.File(err)
	}
	return nil
}

func (s fileStore) path() string { return s.file }

func (s fileStore) exists() bool {
	_, err := os.Stat(s.file)
	return err == nil
}

func (s fileStore) clear() error {
	if err := os.Remove(s.file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return kuraErrors.File(err)
	}
	return nil
}

// keyringStore packs every secret into a single JSON credential.
type keyringStore struct {
	service string
	user    string
	kr      vault.Keyring
}

func (s keyringStore) load() (map[string]any, error) {
	content, err := s.kr.Get(s.service, s.user)
	if errors.Is(err, vault.ErrNotFound) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, kuraErrors.Vault(err)
	}

	doc, err := decodeJSON([]byte(content))
	if err != nil {
		return nil, err
	}
	values, ok := doc.(map[string]any)
	if !ok {
		return nil, kuraErrors.Deserialize(fmt.Errorf("keyring entry %s/%s is not a JSON object", s.service, s.user))
	}
	return values, nil
}

func (s keyringStore) save(values map[string]any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return kuraErrors.Deserialize(err)
	}
	if err := s.kr.Set(s.service, s.user, string(data)); err != nil {
		return kuraErrors.Vault(err)
	}
	return nil
}

func (s keyringStore) path() string {
	return "keyring:" + s.service + "/" + s.user
}

func (s keyringStore) exists() bool {
	_, err := s.kr.Get(s.service, s.user)
	return err == nil
}

func (s keyringStore) clear() error {
	if err := s.kr.Delete(s.service, s.user); err != nil {
		return kuraErrors.Vault(err)
	}
	return nil
}

func newConfigStore(storage backend.ConfigStorage) (valueStore, error) {
	switch st := storage.(type) {
	case backend.Memory:
		return memoryStore{m: configValues}, nil
	case backend.File:
		return fileStore{file: st.Path}, nil
	default:
		return nil, fmt.Errorf("unsupported config storage %T", storage)
	}
}

func newSecretStore(storage backend.SecretStorage, kr vault.Keyring) (valueStore, error) {
	switch st := storage.(type) {
	case backend.Memory:
		return memoryStore{m: secretValues}, nil
	case backend.File:
		return fileStore{file: st.Path}, nil
	case backend.Keyring:
		return keyringStore{service: st.Service, user: settings.DefaultKeyringUser, kr: kr}, nil
	default:
		return nil, fmt.Errorf("unsupported secret storage %T", storage)
	}
}
