package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// fileLock guards the registry read-modify-write cycle across
// processes. The lock file holds the owner's pid.
type fileLock struct {
	path string
}

// acquireLock creates the lock file with O_EXCL. A lock older than
// staleAfter is treated as left over from a crashed run and broken
// once.
func acquireLock(path string, staleAfter time.Duration, logger *slog.Logger) (*fileLock, error) {
	for attempt := 0; ; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("acquire registry lock %s: %w", path, err)
		}
		if attempt > 0 {
			return nil, fmt.Errorf("acquire registry lock %s: held by another run", path)
		}
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < staleAfter {
			return nil, fmt.Errorf("acquire registry lock %s: held by another run", path)
		}
		logger.Warn("breaking stale registry lock", "path", path, "age", time.Since(info.ModTime()).Round(time.Second))
		os.Remove(path)
	}
}

func (l *fileLock) release() {
	os.Remove(l.path)
}
