//go:build !unix

package fileutil

import "os"

// SecureOpenNoFollow is a best-effort fallback on platforms without
// O_NOFOLLOW support; it does not enforce no-follow semantics. Callers
// should validate the file's content (size, expected shape) after opening.
func SecureOpenNoFollow(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_RDONLY, 0)
}
