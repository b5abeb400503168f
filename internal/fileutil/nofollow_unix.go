//go:build unix

package fileutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// SecureOpenNoFollow opens a file read-only without following symlinks on
// its final path component, using O_NOFOLLOW. Used when reading per-message
// files out of a directory tree owned by another application.
func SecureOpenNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY|unix.O_NOFOLLOW, 0)
}
