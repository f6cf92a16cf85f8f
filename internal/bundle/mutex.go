package bundle

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/mrz1836/smartspec/internal/domain"
	sserrors "github.com/mrz1836/smartspec/internal/errors"
	"github.com/mrz1836/smartspec/internal/flock"
)

// Mutex serializes governed-artifact writers per spec bundle. It layers an
// in-process registry over an advisory file lock: the registry catches
// same-process contention (flock is per file description and two goroutines
// sharing one descriptor would both succeed), the file lock catches other
// processes. Acquisition never blocks; contention returns BundleBusyError.
type Mutex struct {
	layout *Layout

	mu   sync.Mutex
	held map[string]*os.File
}

// NewMutex creates a Mutex over the given layout.
func NewMutex(layout *Layout) *Mutex {
	return &Mutex{
		layout: layout,
		held:   make(map[string]*os.File),
	}
}

// Acquire takes the writer lock for one spec bundle. The returned release
// function is idempotent. A held lock returns *errors.BundleBusyError.
func (m *Mutex) Acquire(id domain.SpecID) (func(), error) {
	key := id.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.held[key]; taken {
		return nil, &sserrors.BundleBusyError{SpecID: key}
	}

	lockPath := m.layout.LockFile(id)
	if err := os.MkdirAll(filepath.Dir(lockPath), dirPerm); err != nil {
		return nil, sserrors.Wrap(err, "creating locks directory")
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, filePerm) //#nosec G304 -- path is constructed from a validated spec id
	if err != nil {
		return nil, sserrors.Wrap(err, "opening bundle lock file")
	}

	if err := flock.Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		return nil, &sserrors.BundleBusyError{SpecID: key}
	}

	m.held[key] = f

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			_ = flock.Unlock(f.Fd())
			_ = f.Close()
			delete(m.held, key)
		})
	}
	return release, nil
}

// Held reports whether this process currently holds the lock for a spec.
func (m *Mutex) Held(id domain.SpecID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, taken := m.held[id.String()]
	return taken
}
