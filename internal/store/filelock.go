// Package store serializes mutating kura commands that share a config
// directory. The config and permission packages themselves take no
// cross-process locks; this guard is opt-in for callers that want it.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	kuraErrors "github.com/harunnryd/kura/internal/errors"
	"github.com/harunnryd/kura/internal/settings"

	"github.com/gofrs/flock"
)

// LockFileName is created inside the config directory.
const LockFileName = "kura.lock"

// FileLock is an advisory lock on <dir>/kura.lock.
type FileLock struct {
	fileLock   *flock.Flock
	lockPath   string
	acquiredAt time.Time
	mu         sync.RWMutex
}

type FileLockConfig struct {
	LockTimeout  time.Duration
	LockRetry    time.Duration
	LockMaxRetry int
}

// DefaultFileLockConfig uses the built-in lock defaults.
func DefaultFileLockConfig() *FileLockConfig {
	cfg, _ := FileLockConfigFrom(&settings.Settings{})
	return cfg
}

// FileLockConfigFrom reads the lock_* settings, falling back to defaults for
// empty values.
func FileLockConfigFrom(s *settings.Settings) (*FileLockConfig, error) {
	timeout, err := settings.DurationOrDefault(s.LockTimeout, settings.DefaultLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("lock_timeout: %w", err)
	}
	retry, err := settings.DurationOrDefault(s.LockRetry, settings.DefaultLockRetry)
	if err != nil {
		return nil, fmt.Errorf("lock_retry: %w", err)
	}
	maxRetry := s.LockMaxRetry
	if maxRetry <= 0 {
		maxRetry = settings.DefaultLockMaxRetry
	}
	return &FileLockConfig{
		LockTimeout:  timeout,
		LockRetry:    retry,
		LockMaxRetry: maxRetry,
	}, nil
}

// NewFileLock blocks until the lock in dir is held, ctx is done, the timeout
// passes or LockMaxRetry attempts have failed. dir is created if missing.
func NewFileLock(ctx context.Context, dir string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, kuraErrors.Directory(err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.LockTimeout)
	defer cancel()

	if err := fl.acquireWithRetry(ctx, cfg); err != nil {
		return nil, err
	}

	fl.acquiredAt = time.Now()
	slog.Debug("File lock acquired", "path", lockPath)
	return fl, nil
}

func (fl *FileLock) acquireWithRetry(ctx context.Context, cfg *FileLockConfig) error {
	for i := 0; i < cfg.LockMaxRetry; i++ {
		locked, err := fl.fileLock.TryLock()
		if err != nil {
			return kuraErrors.File(fmt.Errorf("attempt lock %s: %w", fl.lockPath, err))
		}
		if locked {
			return nil
		}
		if i == cfg.LockMaxRetry-1 {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s is held by another kura process: %w", fl.lockPath, ctx.Err())
		case <-time.After(cfg.LockRetry):
		}
	}

	return fmt.Errorf("%s is held by another kura process (gave up after %d attempts)",
		fl.lockPath, cfg.LockMaxRetry)
}

// Unlock releases the lock. Calling it again is a no-op.
func (fl *FileLock) Unlock() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.fileLock == nil {
		return
	}

	if err := fl.fileLock.Unlock(); err != nil {
		slog.Warn("Failed to release file lock", "path", fl.lockPath, "error", err)
	} else {
		slog.Debug("File lock released", "path", fl.lockPath, "held_ms", time.Since(fl.acquiredAt).Milliseconds())
	}
	fl.fileLock = nil
}

func (fl *FileLock) IsLocked() bool {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	return fl.fileLock != nil
}

func (fl *FileLock) Path() string {
	return fl.lockPath
}
