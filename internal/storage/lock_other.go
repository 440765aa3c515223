//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package storage

import "os"

// lockFile is a no-op where flock is unavailable.
func lockFile(_ *os.File, _ bool) error {
	return nil
}

func unlockFile(_ *os.File) error {
	return nil
}
