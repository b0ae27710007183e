//go:build !windows

package server

import "syscall"

// sighup triggers a config-reload-in-place (log level only; P2P settings
// are immutable for the life of a running node).
const sighup = syscall.SIGHUP
