package pipeline

import (
	"context"
	"fmt"

	"github.com/gofrs/flock"

	"github.com/amishk599/leadsync/internal/model"
)

// FileLock is a host-wide RunLock backed by an advisory lock on a file.
type FileLock struct {
	path string
}

// NewFileLock returns a lock on the file at path. The file is created if needed.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Acquire takes the lock without waiting.
func (l *FileLock) Acquire(_ context.Context) (func(), error) {
	fl := flock.New(l.path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring run lock %s: %w", l.path, err)
	}
	if !ok {
		return nil, model.ErrRunInProgress
	}
	return func() { _ = fl.Unlock() }, nil
}
