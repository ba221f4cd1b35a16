// SPDX-License-Identifier: MPL-2.0

//go:build unix

// Package namelock serializes install and uninstall work on a module name
// across processes. The zero-byte lock file is harmless if orphaned — the
// kernel releases the flock automatically when the fd is closed (including
// on process crash).
package namelock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/modhub/modhub/pkg/hubmod"
)

// Lock holds a blocking exclusive flock on a per-name file, providing
// cross-process serialization of operations on that module name.
type Lock struct {
	file *os.File
}

// Acquire opens (or creates) the lock file for name under dir and acquires
// a blocking exclusive flock. The call blocks until the lock is available.
// Two names that normalize to the same on-disk form share one lock.
func Acquire(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory %s: %w", dir, err)
	}
	lockPath := filepath.Join(dir, hubmod.NormalizeName(name)+".lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", lockPath, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}

	return &Lock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to
// call multiple times — subsequent calls are no-ops.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// Unlock before Close for explicitness; Close also releases the flock.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
