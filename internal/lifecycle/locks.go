package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 20 * time.Millisecond

// nameLocks serializes operations per index name: an in-process RWMutex per
// name plus an flock on a per-name lock file for other processes.
type nameLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
	pathFor func(name string) string
	timeout time.Duration
}

type lockEntry struct {
	rw   sync.RWMutex
	refs int
}

func newNameLocks(pathFor func(string) string, timeout time.Duration) *nameLocks {
	return &nameLocks{
		entries: make(map[string]*lockEntry),
		pathFor: pathFor,
		timeout: timeout,
	}
}

// lock acquires name exclusively (writers) or shared (readers) and returns the release func.
func (l *nameLocks) lock(ctx context.Context, name string, exclusive bool) (func(), error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	entry := l.ref(name)
	try := entry.rw.TryRLock
	unlock := entry.rw.RUnlock
	if exclusive {
		try, unlock = entry.rw.TryLock, entry.rw.Unlock
	}
	if err := poll(ctx, try); err != nil {
		l.unref(name)
		return nil, fmt.Errorf("%w %q: %v", ErrLockTimeout, name, err)
	}

	fl, err := lockFile(ctx, l.pathFor(name), exclusive)
	if err != nil {
		unlock()
		l.unref(name)
		return nil, fmt.Errorf("%w %q: %v", ErrLockTimeout, name, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = fl.Unlock()
			unlock()
			l.unref(name)
		})
	}, nil
}

// lockFile takes an flock on path, polling until ctx is done.
func lockFile(ctx context.Context, path string, exclusive bool) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	fl := flock.New(path)
	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
	} else {
		locked, err = fl.TryRLockContext(ctx, lockRetryDelay)
	}
	if err == nil && !locked {
		err = ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return fl, nil
}

// lockRoot takes the storage-root lock. Commits and deletes hold it shared
// while they use the staging and trash directories; Recover holds it
// exclusively while it purges them.
func (m *Manager) lockRoot(ctx context.Context, exclusive bool) (func(), error) {
	if m.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.LockTimeout)
		defer cancel()
	}
	fl, err := lockFile(ctx, m.layout.RootLockPath(), exclusive)
	if err != nil {
		return nil, fmt.Errorf("%w on storage root: %v", ErrLockTimeout, err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (l *nameLocks) ref(name string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[name]
	if !ok {
		e = &lockEntry{}
		l.entries[name] = e
	}
	e.refs++
	return e
}

func (l *nameLocks) unref(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[name]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, name)
	}
}

func poll(ctx context.Context, try func() bool) error {
	if try() {
		return nil
	}
	t := time.NewTicker(lockRetryDelay)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			if try() {
				return nil
			}
		}
	}
}
