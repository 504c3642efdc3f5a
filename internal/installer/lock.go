package installer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"zortoshub/internal/logger"
)

// ErrLocked is returned when another zortoshub process is installing.
var ErrLocked = errors.New("another zortoshub install is already running")

const lockName = ".zortoshub.lock"

// acquireLock takes the process-wide install lock in dir.
// The returned func releases it.
func acquireLock(dir string) (func(), error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}
	lock := flock.New(filepath.Join(dir, lockName))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire install lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("[WARN] Failed to release install lock: %v\n", err)
		}
	}, nil
}
