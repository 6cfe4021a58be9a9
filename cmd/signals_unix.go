//go:build !windows

package cmd

import (
	"os"
	"syscall"
)

var (
	stopSignals   = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	toggleSignals = []os.Signal{syscall.SIGUSR1}
)
