//go:build linux

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// rawTerminal puts the file backing f into raw mode (no line discipline,
// no echo), the way gdb configures the inferior's controlling terminal
// before handing it `--tty`. Grounded in the corpus's own termios ioctl
// handling (Daedaluz-goserial's TCGETS/TCSETS numbers, here reached
// through golang.org/x/sys/unix's wrapped ioctls instead of hand-rolled
// syscall numbers). restore undoes it; callers defer the result.
func rawTerminal(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	orig, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("tty: get termios: %w", err)
	}
	raw := *orig
	raw.Iflag &^= unix.ICRNL | unix.IXON | unix.BRKINT | unix.ISTRIP | unix.INPCK
	raw.Oflag &^= unix.OPOST
	raw.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	raw.Cflag |= unix.CS8
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, fmt.Errorf("tty: set termios: %w", err)
	}
	return func() {
		unix.IoctlSetTermios(fd, unix.TCSETS, orig)
	}, nil
}
