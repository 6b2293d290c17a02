//go:build unix

package system

import (
	"os"

	"golang.org/x/sys/unix"
)

// RedirectStdio appends stdout and stderr to the file at path. Empty path is
// a no-op.
func RedirectStdio(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	// Duplicate the descriptor so panics and writes from every goroutine land
	// in the file.
	if err := unix.Dup2(int(f.Fd()), int(os.Stdout.Fd())); err != nil {
		return err
	}
	return unix.Dup2(int(f.Fd()), int(os.Stderr.Fd()))
}
