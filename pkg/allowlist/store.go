package allowlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	lockTimeout    = 5 * time.Second
	lockRetryDelay = 50 * time.Millisecond
)

var ErrLockTimeout = errors.New("timed out acquiring allowlist file lock")

// Snapshot is an immutable view of the allowlist. It is never modified after
// construction.
type Snapshot struct {
	clients map[string][]string
	ranges  map[string]Ranges
}

// NewSnapshot builds a snapshot from the wire form. Malformed entries are
// logged and ignored for matching but kept for persistence.
func NewSnapshot(log *zap.SugaredLogger, clients map[string][]string) *Snapshot {
	s := &Snapshot{
		clients: make(map[string][]string, len(clients)),
		ranges:  make(map[string]Ranges, len(clients)),
	}
	for clientID, entries := range clients {
		s.clients[clientID] = append([]string(nil), entries...)
		ranges, invalid := ParseRanges(entries)
		if len(invalid) > 0 && log != nil {
			log.Warnw("Ignoring invalid allowlist entries", "clientId", clientID, "entries", invalid)
		}
		s.ranges[clientID] = ranges
	}
	return s
}

// IsAllowed returns false for unknown clients. For a known client it reports
// whether any of its entries contains sourceIP.
func (s *Snapshot) IsAllowed(clientID, sourceIP string) bool {
	ranges, ok := s.ranges[clientID]
	if !ok {
		return false
	}
	return ranges.Contains(sourceIP)
}

// Len returns the number of clients in the snapshot.
func (s *Snapshot) Len() int { return len(s.clients) }

// Clients returns a copy of the wire form.
func (s *Snapshot) Clients() map[string][]string {
	out := make(map[string][]string, len(s.clients))
	for k, v := range s.clients {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Store holds the active snapshot and its file persistence. Reads are lock
// free; only the refresher replaces the snapshot and writes the file.
type Store struct {
	log      *zap.SugaredLogger
	path     string
	snapshot atomic.Pointer[Snapshot]
}

func NewStore(log *zap.SugaredLogger, path string) *Store {
	s := &Store{log: log, path: path}
	s.snapshot.Store(NewSnapshot(log, nil))
	return s
}

func (s *Store) Path() string { return s.path }

// Snapshot returns the active snapshot.
func (s *Store) Snapshot() *Snapshot { return s.snapshot.Load() }

// IsAllowed checks sourceIP against the active snapshot.
func (s *Store) IsAllowed(clientID, sourceIP string) bool {
	return s.snapshot.Load().IsAllowed(clientID, sourceIP)
}

// Replace swaps in a new snapshot built from clients.
func (s *Store) Replace(clients map[string][]string) *Snapshot {
	next := NewSnapshot(s.log, clients)
	s.snapshot.Store(next)
	return next
}

// Initialize loads the persisted allowlist, keeping the empty snapshot when
// the file is missing or unreadable, and then writes the active snapshot back
// to confirm the storage path is writable. Only the write-back error is
// returned.
func (s *Store) Initialize(ctx context.Context) error {
	s.log.Infof("Loading the list of allowed IP-address ranges from file %q", s.path)
	if err := s.Load(ctx); err != nil {
		s.log.Infof("Unable to load the list of allowed IP-address ranges from file %q: %v", s.path, err)
	}
	s.log.Infof("Saving the list of allowed IP-address ranges to file %q to check writability", s.path)
	return s.Save(ctx)
}

// Load replaces the active snapshot with the content of the storage file.
func (s *Store) Load(ctx context.Context) error {
	unlock, err := s.lock(ctx, true)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read allowlist file: %w", err)
	}
	var clients map[string][]string
	if err := json.Unmarshal(data, &clients); err != nil {
		return fmt.Errorf("decode allowlist file: %w", err)
	}
	s.Replace(clients)
	return nil
}

// Save writes the active snapshot to the storage file. The file is replaced
// atomically via a temporary file in the same directory. Map keys are written
// sorted, so equal snapshots produce byte-identical files.
func (s *Store) Save(ctx context.Context) error {
	data, err := json.Marshal(s.Snapshot().Clients())
	if err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}

	unlock, err := s.lock(ctx, false)
	if err != nil {
		return fmt.Errorf("unable to save the list of allowed IP-address ranges to file %q: %w", s.path, err)
	}
	defer unlock()

	if err := writeFileAtomic(s.path, data); err != nil {
		return fmt.Errorf("unable to save the list of allowed IP-address ranges to file %q: %w", s.path, err)
	}
	return nil
}

func (s *Store) lock(ctx context.Context, shared bool) (func(), error) {
	fileLock := flock.New(s.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if shared {
		locked, err = fileLock.TryRLockContext(lockCtx, lockRetryDelay)
	} else {
		locked, err = fileLock.TryLockContext(lockCtx, lockRetryDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("acquire allowlist file lock: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	return func() { _ = fileLock.Unlock() }, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
