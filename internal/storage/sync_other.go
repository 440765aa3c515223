//go:build !linux && !freebsd

package storage

import "os"

func datasync(f *os.File) error {
	return f.Sync()
}
