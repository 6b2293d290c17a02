//go:build !unix

package system

import "os"

// RedirectStdio replaces os.Stdout and os.Stderr with the file at path.
// Runtime panics still go to the original stderr on this platform.
func RedirectStdio(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	os.Stdout = f
	os.Stderr = f
	return nil
}
