package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"syscall"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockTimeout    = 3 * time.Second
	lockRetryDelay = 100 * time.Millisecond
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileBackend stores each key as <dir>/<key>.json. Writers and readers in
// other processes are excluded by a lock file per key; writes go through a
// temp file and a rename so a crash never leaves a half-written slot.
type FileBackend struct {
	dir string
}

// NewFileBackend creates dir if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

func (f *FileBackend) path(key string) string {
	return filepath.Join(f.dir, unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (f *FileBackend) lock(ctx context.Context, key string) (*flock.Flock, error) {
	fl := flock.New(f.path(key) + ".lock")

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("acquire lock for %s: %w", key, err)
	}
	if !locked {
		return nil, fmt.Errorf("acquire lock for %s: timed out", key)
	}
	return fl, nil
}

func (f *FileBackend) Put(ctx context.Context, key string, value []byte) error {
	fl, err := f.lock(ctx, key)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	target := f.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		os.Remove(tmp)
		return classifyWriteErr(err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return classifyWriteErr(err)
	}
	return nil
}

func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	fl, err := f.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer fl.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	fl, err := f.lock(ctx, key)
	if err != nil {
		return err
	}
	defer fl.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f *FileBackend) Close() error { return nil }

func classifyWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %w", ErrStorageFull, err)
	}
	return err
}
