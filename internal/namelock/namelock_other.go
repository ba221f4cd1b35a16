// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package namelock

// Lock is the non-unix stub. flock is unavailable, so cross-process
// serialization falls back to the manager's in-process mutex.
type Lock struct{}

// Acquire is a no-op on platforms without flock.
func Acquire(dir, name string) (*Lock, error) {
	return &Lock{}, nil
}

// Release is a no-op on platforms without flock.
func (l *Lock) Release() {}
