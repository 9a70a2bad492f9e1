package lock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Lock guards the dump+compress phase for one database so two runs never race
// on the same artifact path. It is released once the artifact is finalized;
// uploads proceed without it.
type Lock struct {
	file *flock.Flock
}

// Acquire takes a filesystem lock scoped to one database inside the artifact
// directory. It fails immediately instead of blocking when another run holds
// the lock.
func Acquire(dir, database string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf(".%s.lock", database))
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("another backup of %s is already running (lock: %s)", database, path)
	}
	return &Lock{file: fl}, nil
}

// Release frees the lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Unlock()
}
