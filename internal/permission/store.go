// Package permission remembers authorization decisions for tool calls.
//
// Decisions are keyed by tool name plus a content hash of the call's
// arguments, so the same tool invoked with different arguments is a
// different question. Each key holds an append-only history of records with
// optional expiry; the most recently appended record that has not expired
// answers Check.
package permission

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harunnryd/kura/internal/backend"
	"github.com/harunnryd/kura/internal/metrics"
)

// Store is the permission cache. A single Store should own its backing file;
// concurrent writers in other processes are not coordinated with.
type Store struct {
	mu          sync.RWMutex
	permissions map[string][]Record
	version     int
	persister   persister
	now         func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewInMemory returns an empty store that never touches disk.
func NewInMemory(opts ...Option) *Store {
	s := newStore(memoryPersister{}, opts)
	return s
}

// Load opens the store selected for this process: in memory when
// KURA_IN_MEMORY_CONFIG is set, otherwise tool_permissions.json in the
// config directory.
func Load(opts ...Option) (*Store, error) {
	sel, err := backend.Select()
	if err != nil {
		return nil, err
	}
	return Open(sel.Permissions, opts...)
}

// Open loads the store from storage and prunes expired records before
// returning it. A missing file yields an empty store; a malformed one is an
// error.
func Open(storage backend.PermissionStorage, opts ...Option) (*Store, error) {
	switch st := storage.(type) {
	case backend.Memory:
		return NewInMemory(opts...), nil
	case backend.PermissionDir:
		return openFile(st, opts)
	default:
		return nil, fmt.Errorf("unsupported permission storage %T", storage)
	}
}

// OpenDir is Open for a file-backed store in dir.
func OpenDir(dir string, opts ...Option) (*Store, error) {
	return openFile(backend.PermissionDir{Dir: dir}, opts)
}

func openFile(dir backend.PermissionDir, opts []Option) (*Store, error) {
	fp := filePersister{dir: dir}
	s := newStore(fp, opts)

	doc, found, err := fp.read()
	if err != nil {
		return nil, err
	}
	if found {
		s.permissions = doc.Permissions
		s.version = doc.Version
	}

	if err := s.CleanupExpired(); err != nil {
		return nil, err
	}
	return s, nil
}

func newStore(p persister, opts []Option) *Store {
	s := &Store{
		permissions: make(map[string][]Record),
		version:     CurrentVersion,
		persister:   p,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check returns the newest unexpired decision for req. ok is false when no
// applicable decision exists.
func (s *Store) Check(req Request) (allowed bool, ok bool) {
	key, _, err := lookupKey(req)
	if err != nil {
		slog.Warn("Permission check on unhashable arguments", "tool", req.ToolName(), "error", err)
		metrics.PermissionChecks.WithLabelValues(metrics.ResultMiss).Inc()
		return false, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	records := s.permissions[key]
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Valid(now) {
			if records[i].Allowed {
				metrics.PermissionChecks.WithLabelValues(metrics.ResultAllowed).Inc()
			} else {
				metrics.PermissionChecks.WithLabelValues(metrics.ResultDenied).Inc()
			}
			return records[i].Allowed, true
		}
	}

	metrics.PermissionChecks.WithLabelValues(metrics.ResultMiss).Inc()
	return false, false
}

// Record appends a decision for req and persists the whole store. A ttl of
// zero records a decision that never expires. If persisting fails the store
// is left as it was.
func (s *Store) Record(req Request, allowed bool, ttl time.Duration) error {
	if ttl < 0 {
		return fmt.Errorf("negative permission ttl %s", ttl)
	}

	key, hash, err := lookupKey(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().Unix()
	record := Record{
		ToolName:    req.ToolName(),
		Allowed:     allowed,
		ContextHash: hash,
		Timestamp:   now,
	}
	if d, ok := req.(Describer); ok {
		record.ReadableContext = d.Readable()
	}
	if ttl > 0 {
		expiry := now + int64(ttl/time.Second)
		record.Expiry = &expiry
	}

	prev, existed := s.permissions[key]
	s.permissions[key] = append(prev[:len(prev):len(prev)], record)

	if err := s.saveLocked(); err != nil {
		if existed {
			s.permissions[key] = prev
		} else {
			delete(s.permissions, key)
		}
		return err
	}

	result := metrics.ResultDenied
	if allowed {
		result = metrics.ResultAllowed
	}
	metrics.PermissionRecords.WithLabelValues(result).Inc()
	slog.Debug("Permission recorded", "tool", record.ToolName, "allowed", allowed, "ttl", ttl)
	return nil
}

// CleanupExpired drops expired records and keys left without records. The
// store is persisted only when something was removed.
func (s *Store) CleanupExpired() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	pruned := 0
	next := make(map[string][]Record, len(s.permissions))
	for key, records := range s.permissions {
		kept := make([]Record, 0, len(records))
		for _, r := range records {
			if r.Valid(now) {
				kept = append(kept, r)
			} else {
				pruned++
			}
		}
		if len(kept) > 0 {
			next[key] = kept
		}
	}

	if pruned == 0 {
		return nil
	}

	prev := s.permissions
	s.permissions = next
	if err := s.saveLocked(); err != nil {
		s.permissions = prev
		return err
	}

	metrics.PermissionPruned.Add(float64(pruned))
	slog.Debug("Pruned expired permissions", "count", pruned)
	return nil
}

func (s *Store) saveLocked() error {
	return s.persister.persist(document{
		Permissions: s.permissions,
		Version:     s.version,
	})
}

// Records returns the full history for toolName across every argument hash,
// oldest first. An empty toolName returns every record.
func (s *Store) Records(toolName string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, records := range s.permissions {
		for _, r := range records {
			if toolName == "" || r.ToolName == toolName {
				out = append(out, r)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ToolName < out[j].ToolName
	})
	return out
}

// Len is the number of lookup keys with at least one record.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.permissions)
}

// Version is the schema version carried by the store.
func (s *Store) Version() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Path is the backing file, or "<in-memory>".
func (s *Store) Path() string {
	return s.persister.path()
}

func lookupKey(req Request) (key string, hash string, err error) {
	hash, err = ContextHash(req.ToolArguments())
	if err != nil {
		return "", "", fmt.Errorf("hash arguments for %s: %w", req.ToolName(), err)
	}
	return LookupKey(req.ToolName(), hash), hash, nil
}
