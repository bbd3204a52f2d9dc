package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/mitchellh/go-homedir"
)

const lockRetryDelay = 250 * time.Millisecond

// DBLock is an advisory writer lock held in a sibling "<db>.lock" file.
// Readers never take it; SQLite WAL handles them.
type DBLock struct {
	fl   *flock.Flock
	file string
}

func NewDBLock(dbPath string) (*DBLock, error) {
	abs, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return &DBLock{fl: flock.New(abs + ".lock"), file: abs + ".lock"}, nil
}

// Lock blocks until the lock is held or ctx is done. When another process
// holds it, a single notice is logged before waiting.
func (l *DBLock) Lock(ctx context.Context) error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("locking %s: %w", l.file, err)
	}
	if ok {
		return nil
	}

	Log.Warnf("Another tabscope process holds %s, waiting...", l.file)
	ok, err = l.fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", l.file, err)
	}
	if !ok {
		return fmt.Errorf("waiting for %s: %w", l.file, ctx.Err())
	}
	return nil
}

func (l *DBLock) Unlock() error {
	err := l.fl.Unlock()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlocking %s: %w", l.file, err)
	}
	return nil
}

// GetAbsDBPath expands "~" and makes dbPath absolute. An empty path means
// ~/.config/tabscope/tabscope.sqlite.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		dbPath = filepath.Join("~", ".config", "tabscope", "tabscope.sqlite")
	}
	expanded, err := homedir.Expand(dbPath)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
