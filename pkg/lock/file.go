package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"signal_bot/pkg/logger"

	"github.com/gofrs/flock"
)

const retryDelay = 50 * time.Millisecond

// File — flock(2) на файле рядом с журналами.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Lock(ctx context.Context) (func(), error) {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// новый дескриптор на каждый вызов, иначе flock внутри одного процесса реентерабелен
	fl := flock.New(f.path)
	ok, err := fl.TryLockContext(ctx, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("flock %s: %w", f.path, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			logger.Error("[LOCK] unlock %s: %v", f.path, err)
		}
	}, nil
}
