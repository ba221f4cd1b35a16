// SPDX-License-Identifier: MPL-2.0

//go:build unix

package namelock

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestAcquireCreatesNormalizedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lock, err := Acquire(dir, "demo-module")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer lock.Release()

	// Dashed and normalized spellings share the same lock file.
	lockPath := filepath.Join(dir, "demo_module.lock")
	if _, statErr := os.Stat(lockPath); statErr != nil {
		t.Errorf("lock file not found at %s: %v", lockPath, statErr)
	}
}

func TestAcquireBlocksConcurrent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lockA, err := Acquire(dir, "demo")
	if err != nil {
		t.Fatalf("Acquire() A error = %v", err)
	}

	var acquired atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		lockB, bErr := Acquire(dir, "demo")
		if bErr != nil {
			t.Errorf("Acquire() B error = %v", bErr)
			return
		}
		acquired.Store(true)
		lockB.Release()
	}()

	// Give goroutine B time to attempt the lock. It should be blocked.
	time.Sleep(100 * time.Millisecond)
	if acquired.Load() {
		t.Fatal("second Acquire succeeded while the lock was held")
	}

	lockA.Release()

	select {
	case <-done:
		if !acquired.Load() {
			t.Fatal("second Acquire never succeeded after release")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the second Acquire")
	}
}

func TestDistinctNamesDoNotBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	lockA, err := Acquire(dir, "alpha")
	if err != nil {
		t.Fatalf("Acquire(alpha) error = %v", err)
	}
	defer lockA.Release()

	lockB, err := Acquire(dir, "beta")
	if err != nil {
		t.Fatalf("Acquire(beta) error = %v", err)
	}
	lockB.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()

	lock, err := Acquire(t.TempDir(), "demo")
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// Double-release must not panic.
	lock.Release()
	lock.Release()

	var nilLock *Lock
	nilLock.Release()
}
