//go:build windows

package server

import "syscall"

// sighup doesn't really matter, Windows can't do it.
const sighup = syscall.SIGHUP
