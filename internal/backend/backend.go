// Package backend decides, once per process, where configuration, secrets and
// permission records live.
//
// Each storage kind is a closed sum type: the marker methods are unexported,
// so only the variants declared here satisfy the interfaces and call sites can
// switch over them exhaustively.
package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/settings"
)

const (
	ConfigFileName      = "config.yaml"
	SecretsFileName     = "secrets.yaml"
	PermissionsFileName = "tool_permissions.json"

	InMemoryPath = "<in-memory>"
)

// Memory keeps values in process-wide maps for the lifetime of the process.
type Memory struct{}

// File persists a YAML mapping at Path.
type File struct {
	Path string
}

// Keyring packs all secrets into one JSON credential owned by Service.
type Keyring struct {
	Service string
}

// PermissionDir persists the permission store as tool_permissions.json inside Dir.
type PermissionDir struct {
	Dir string
}

// ConfigStorage is one of Memory or File.
type ConfigStorage interface {
	configStorage()
}

// SecretStorage is one of Memory, File or Keyring.
type SecretStorage interface {
	secretStorage()
}

// PermissionStorage is one of Memory or PermissionDir.
type PermissionStorage interface {
	permissionStorage()
}

func (Memory) configStorage()     {}
func (Memory) secretStorage()     {}
func (Memory) permissionStorage() {}

func (File) configStorage() {}
func (File) secretStorage() {}

func (Keyring) secretStorage() {}

func (PermissionDir) permissionStorage() {}

// Path returns the permission file inside the directory.
func (p PermissionDir) Path() string {
	return filepath.Join(p.Dir, PermissionsFileName)
}

// TempPath returns the sibling used for atomic replacement.
func (p PermissionDir) TempPath() string {
	return filepath.Join(p.Dir, "tool_permissions.tmp")
}

// Selection is the storage decision for one process.
type Selection struct {
	Dir         string
	Config      ConfigStorage
	Secrets     SecretStorage
	Permissions PermissionStorage
}

// InMemory reports whether every backend was forced into memory.
func (s Selection) InMemory() bool {
	_, cfg := s.Config.(Memory)
	_, sec := s.Secrets.(Memory)
	return cfg && sec
}

// Detect applies the decision table to s. The in-memory signal overrides
// everything; otherwise config is file-backed and secrets use the keyring
// unless the keyring is disabled. The config directory is created when
// file-backed storage is selected.
func Detect(s *settings.Settings) (Selection, error) {
	if s.InMemory {
		return Selection{
			Config:      Memory{},
			Secrets:     Memory{},
			Permissions: Memory{},
		}, nil
	}

	dir, err := s.ResolveConfigDir()
	if err != nil {
		return Selection{}, kuraErrors.Directory(fmt.Errorf("determine config dir: %w", err))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Selection{}, kuraErrors.Directory(fmt.Errorf("create %s: %w", dir, err))
	}

	sel := Selection{
		Dir:         dir,
		Config:      File{Path: filepath.Join(dir, ConfigFileName)},
		Permissions: PermissionDir{Dir: dir},
	}
	if s.DisableKeyring {
		sel.Secrets = File{Path: filepath.Join(dir, SecretsFileName)}
	} else {
		sel.Secrets = Keyring{Service: s.KeyringService}
	}
	return sel, nil
}

var selectOnce = sync.OnceValues(func() (Selection, error) {
	s, err := settings.Load(nil)
	if err != nil {
		return Selection{}, err
	}
	return Detect(s)
})

// Select returns the process-wide selection, computed from the environment on
// first use and memoized afterwards.
func Select() (Selection, error) {
	return selectOnce()
}
