//go:build !linux

package main

import "os"

// rawTerminal is a no-op outside Linux; --tty still opens and uses the
// file, just without raw-mode line discipline changes.
func rawTerminal(f *os.File) (restore func(), err error) {
	return func() {}, nil
}
