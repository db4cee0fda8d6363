//go:build darwin || freebsd || netbsd || openbsd

package logger

import "golang.org/x/sys/unix"

const ioctlReadTermios = unix.TIOCGETA
